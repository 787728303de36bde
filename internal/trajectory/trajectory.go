// Package trajectory extracts fixed-shape numeric features from a raw
// swipe gesture (C3): resampling to a fixed length, computing velocity and
// acceleration, and assigning a nearest-key index per step.
package trajectory

import (
	"fmt"
	"math"

	"github.com/cleverkeys/swipedecoder/internal/geometry"
	"github.com/cleverkeys/swipedecoder/internal/swipeerr"
)

// L is the fixed sequence length every feature tensor is resampled to.
const L = 150

// Channels per trajectory step: x_norm, y_norm, vx, vy, ax, ay.
const Channels = 6

// Sample is one raw touch point.
type Sample struct {
	X, Y float32
	TMs  int64
}

// Features is the fixed-shape output of Extract.
//
//	Traj      [L][Channels]float32  — (x_norm, y_norm, vx, vy, ax, ay)
//	Keys      [L]int64              — nearest-key token id, PAD for padding
//	SrcMask   [L]bool               — true for real steps
//	ActualLen int                   — number of real (non-padding) steps
type Features struct {
	Traj      [L][Channels]float32
	Keys      [L]int64
	SrcMask   [L]bool
	ActualLen int
}

// Extract resamples gestures longer than L down to exactly L points
// (arc-length-uniform — see SPEC_FULL.md for why this is the chosen policy
// over time-uniform resampling); gestures of at most L samples are kept
// as-is and the tail is padded. It then computes velocity/acceleration and
// fills the nearest-key column from the layout snapshot geo.
//
// Errors: swipeerr.ErrTooShort if len(samples) < 2; swipeerr.ErrBadTime if
// timestamps are not non-decreasing. Both are also wrapped in
// swipeerr.ErrInvalidGesture.
func Extract(samples []Sample, w, h float32, geo *geometry.Layout) (*Features, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("trajectory: %w: %w", swipeerr.ErrInvalidGesture, swipeerr.ErrTooShort)
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].TMs < samples[i-1].TMs {
			return nil, fmt.Errorf("trajectory: %w: %w", swipeerr.ErrInvalidGesture, swipeerr.ErrBadTime)
		}
	}

	clamped := make([]Sample, len(samples))
	for i, s := range samples {
		clamped[i] = Sample{
			X:   clamp(s.X, 0, w),
			Y:   clamp(s.Y, 0, h),
			TMs: s.TMs,
		}
	}

	// Per spec.md §3: samples exceeding L are resampled down to exactly L;
	// fewer samples are kept as-is (actual_len == len(samples)) and the
	// tail is padded by the caller loop below.
	var xs, ys []float32
	var ts []int64
	if len(clamped) > L {
		xs, ys, ts = resampleArcLength(clamped, L)
	} else {
		xs = make([]float32, len(clamped))
		ys = make([]float32, len(clamped))
		ts = make([]int64, len(clamped))
		for i, s := range clamped {
			xs[i], ys[i], ts[i] = s.X, s.Y, s.TMs
		}
	}
	actualLen := len(xs)
	if actualLen == 0 {
		return nil, fmt.Errorf("trajectory: %w: %w", swipeerr.ErrInvalidGesture, swipeerr.ErrTooShort)
	}

	var f Features
	f.ActualLen = actualLen

	for i := 0; i < actualLen; i++ {
		f.Traj[i][0] = xs[i] / w
		f.Traj[i][1] = ys[i] / h
		if geo == nil {
			// Geometry missing: nearest-key column is all-PAD and these
			// steps are marked as not-real per spec.
			f.Keys[i] = 0
			f.SrcMask[i] = false
			continue
		}
		f.SrcMask[i] = true
		f.Keys[i] = int64(geo.NearestKeyIndex(xs[i], ys[i]))
	}
	// Padding tail: SrcMask stays false, Keys stays 0 (PAD), Traj stays zero.

	fillVelocityAcceleration(&f, ts, actualLen)

	return &f, nil
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// resampleArcLength produces exactly n points evenly spaced along the
// polyline's arc length. If the input has more than n points this
// downsamples; if fewer, it upsamples by linear interpolation. Either way
// the output always has exactly n points when len(in) >= 2, and timestamps
// are interpolated alongside x/y so later finite differences stay
// physically meaningful.
//
// This resampling choice (arc-length, not time-uniform) is deliberate and
// documented in SPEC_FULL.md / DESIGN.md: it is invariant to touchscreen
// sampling-rate jitter, which time-uniform resampling is not.
func resampleArcLength(samples []Sample, n int) (xs, ys []float32, ts []int64) {
	cum := make([]float64, len(samples))
	for i := 1; i < len(samples); i++ {
		dx := float64(samples[i].X - samples[i-1].X)
		dy := float64(samples[i].Y - samples[i-1].Y)
		cum[i] = cum[i-1] + math.Hypot(dx, dy)
	}
	total := cum[len(cum)-1]

	xs = make([]float32, n)
	ys = make([]float32, n)
	ts = make([]int64, n)

	if total == 0 {
		// Degenerate (near-stationary) gesture: replicate the first point,
		// interpolate time linearly so later finite differences are zero,
		// not division-by-zero.
		for i := 0; i < n; i++ {
			xs[i] = samples[0].X
			ys[i] = samples[0].Y
			frac := float64(i) / float64(n-1)
			ts[i] = samples[0].TMs + int64(frac*float64(samples[len(samples)-1].TMs-samples[0].TMs))
		}
		return xs, ys, ts
	}

	segIdx := 0
	for i := 0; i < n; i++ {
		target := total * float64(i) / float64(n-1)
		for segIdx < len(cum)-2 && cum[segIdx+1] < target {
			segIdx++
		}
		segStart, segEnd := cum[segIdx], cum[segIdx+1]
		var frac float64
		if segEnd > segStart {
			frac = (target - segStart) / (segEnd - segStart)
		}
		a, b := samples[segIdx], samples[segIdx+1]
		xs[i] = lerp(a.X, b.X, frac)
		ys[i] = lerp(a.Y, b.Y, frac)
		ts[i] = int64(lerp(float32(a.TMs), float32(b.TMs), frac))
	}
	return xs, ys, ts
}

func lerp(a, b float32, frac float64) float32 {
	return a + float32(frac)*(b-a)
}

// fillVelocityAcceleration computes finite-difference velocity and
// acceleration in normalized-units/second over f.Traj[:actualLen][0:2],
// replicating the first/last delta to pad the boundary.
func fillVelocityAcceleration(f *Features, ts []int64, actualLen int) {
	if actualLen < 2 {
		return
	}
	vx := make([]float32, actualLen)
	vy := make([]float32, actualLen)

	for i := 0; i < actualLen-1; i++ {
		dt := float32(ts[i+1]-ts[i]) / 1000.0
		if dt <= 0 {
			dt = 1.0 / 1000.0 // avoid divide-by-zero on duplicate timestamps
		}
		vx[i] = (f.Traj[i+1][0] - f.Traj[i][0]) / dt
		vy[i] = (f.Traj[i+1][1] - f.Traj[i][1]) / dt
	}
	vx[actualLen-1] = vx[actualLen-2]
	vy[actualLen-1] = vy[actualLen-2]

	for i := 0; i < actualLen; i++ {
		f.Traj[i][2] = vx[i]
		f.Traj[i][3] = vy[i]
	}

	ax := make([]float32, actualLen)
	ay := make([]float32, actualLen)
	for i := 0; i < actualLen-1; i++ {
		dt := float32(ts[i+1]-ts[i]) / 1000.0
		if dt <= 0 {
			dt = 1.0 / 1000.0
		}
		ax[i] = (vx[i+1] - vx[i]) / dt
		ay[i] = (vy[i+1] - vy[i]) / dt
	}
	ax[actualLen-1] = ax[actualLen-2]
	ay[actualLen-1] = ay[actualLen-2]

	for i := 0; i < actualLen; i++ {
		f.Traj[i][4] = ax[i]
		f.Traj[i][5] = ay[i]
	}
}
