// Package swipe is the prediction facade (C9): it owns the encoder and
// decoder sessions, the tensor pool, the vocabulary, the key geometry, and
// the pipeline scheduler, and exposes the single public entry point the
// host calls. The ownership shape mirrors the teacher's internal/index.Index:
// one struct holds every long-lived resource, Open/Close (here Init/Shutdown)
// bracket their lifetime, and every other method is a thin, locked or
// lock-free wrapper around them.
package swipe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cleverkeys/swipedecoder/internal/decoder"
	"github.com/cleverkeys/swipedecoder/internal/encoder"
	"github.com/cleverkeys/swipedecoder/internal/geometry"
	"github.com/cleverkeys/swipedecoder/internal/onnxrt"
	"github.com/cleverkeys/swipedecoder/internal/pipeline"
	"github.com/cleverkeys/swipedecoder/internal/rerank"
	"github.com/cleverkeys/swipedecoder/internal/swipeerr"
	"github.com/cleverkeys/swipedecoder/internal/tensorpool"
	"github.com/cleverkeys/swipedecoder/internal/trajectory"
	"github.com/cleverkeys/swipedecoder/internal/vocab"
)

// Point is a single touch sample in keyboard space plus its timestamp.
type Point struct {
	X, Y float32
	TMs  int64
}

// Gesture is the host-supplied raw swipe input.
type Gesture struct {
	Points      []Point
	BBoxW       float32
	BBoxH       float32
	TouchedKeys []rune // optional hint, currently unused by C3
}

// PredictConfig mirrors spec.md §4.9's recognized options.
type PredictConfig struct {
	BeamWidth           int
	MaxLen              int
	ConfidenceThreshold float64
	SeqWindow           int
	PoolCapPerShape     int
	QueueCap            int
}

// DefaultPredictConfig returns the spec's recommended defaults.
func DefaultPredictConfig() PredictConfig {
	d := decoder.DefaultConfig()
	return PredictConfig{
		BeamWidth:           d.BeamWidth,
		MaxLen:              d.MaxLen,
		ConfidenceThreshold: d.ConfThreshold,
		SeqWindow:           d.SeqWindow,
		PoolCapPerShape:     tensorpool.DefaultMaxPoolPerShape,
		QueueCap:            4,
	}
}

// validate checks the decode-affecting config invariants from spec.md
// §4.9 before a config reaches the decoder, so a direct library caller
// fails fast instead of relying on the CLI's clamp in
// cmd/swipedecoder/main.go. It is the check every Predict call runs.
func (c PredictConfig) validate() error {
	if c.BeamWidth < 1 || c.BeamWidth > 16 {
		return fmt.Errorf("swipe: beam_width %d out of range [1,16]: %w", c.BeamWidth, swipeerr.ErrInvalidGesture)
	}
	if c.MaxLen < 10 || c.MaxLen > 50 {
		return fmt.Errorf("swipe: max_len %d out of range [10,50]: %w", c.MaxLen, swipeerr.ErrInvalidGesture)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("swipe: confidence_threshold %g out of range [0,1]: %w", c.ConfidenceThreshold, swipeerr.ErrInvalidGesture)
	}
	if c.SeqWindow < c.MaxLen+1 {
		return fmt.Errorf("swipe: seq_window %d must be >= max_len+1 (%d): %w", c.SeqWindow, c.MaxLen+1, swipeerr.ErrInvalidGesture)
	}
	return nil
}

// validateInit additionally checks the resource-sizing fields that only
// matter at Init time (pool and queue capacities have already been
// defaulted by the caller at this point).
func (c PredictConfig) validateInit() error {
	if err := c.validate(); err != nil {
		return err
	}
	if c.PoolCapPerShape < 1 {
		return fmt.Errorf("swipe: pool_cap_per_shape %d must be >= 1: %w", c.PoolCapPerShape, swipeerr.ErrInvalidGesture)
	}
	if c.QueueCap < 1 {
		return fmt.Errorf("swipe: queue_cap %d must be >= 1: %w", c.QueueCap, swipeerr.ErrInvalidGesture)
	}
	return nil
}

func (c PredictConfig) toBeamConfig() decoder.Config {
	return decoder.Config{
		BeamWidth:     c.BeamWidth,
		MaxLen:        c.MaxLen,
		ConfThreshold: c.ConfidenceThreshold,
		SeqWindow:     c.SeqWindow,
	}
}

// Stats reports pool hit rate, average model latency, and queue depths, per
// spec.md §6's stats() contract.
type Stats struct {
	Pool             tensorpool.Stats
	AvgEncoderMillis float64
	AvgDecoderMillis float64
	EncoderQueueLen  int
	DecoderQueueLen  int
}

// Facade is the top-level prediction engine.
type Facade struct {
	mu       sync.RWMutex
	healthy  bool
	v        *vocab.Vocabulary
	geo      *geometry.Geometry
	pool     *tensorpool.Pool
	enc      *encoder.Encoder
	dec      *decoder.Decoder
	sched    *pipeline.Scheduler
	queueCap int
}

// New constructs an uninitialized facade. Call Init before Predict.
func New() *Facade {
	return &Facade{v: vocab.New(), geo: geometry.New()}
}

// Init loads the two model sessions, the tokenizer (if tokenizerPath is
// non-empty; otherwise the built-in a..z map is used), and the lexicon
// files, then starts the pipeline scheduler. hEnc is not checked against
// the encoder model here or in Predict; a mismatch surfaces only as the
// encoder session's run error on the first Predict call, wrapped in
// swipeerr.ErrEncoder.
func (f *Facade) Init(encoderPath, decoderPath, tokenizerPath string, lexiconPaths []string, hEnc int64, ortOpts onnxrt.Options, cfg PredictConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	poolCap := cfg.PoolCapPerShape
	if poolCap < 1 {
		poolCap = tensorpool.DefaultMaxPoolPerShape
	}
	queueCap := cfg.QueueCap
	if queueCap < 1 {
		queueCap = 4
	}
	cfg.PoolCapPerShape = poolCap
	cfg.QueueCap = queueCap
	if err := cfg.validateInit(); err != nil {
		return fmt.Errorf("swipe: init: %w", err)
	}

	if tokenizerPath != "" {
		if err := f.v.LoadTokenizer(tokenizerPath); err != nil {
			return fmt.Errorf("swipe: init: %w", err)
		}
	}
	if len(lexiconPaths) > 0 {
		if err := f.v.LoadLexicon(lexiconPaths...); err != nil {
			return fmt.Errorf("swipe: init: %w", err)
		}
	}

	enc, err := encoder.New(encoderPath, hEnc, ortOpts)
	if err != nil {
		return fmt.Errorf("swipe: init: %w", err)
	}
	dec, err := decoder.New(decoderPath, ortOpts)
	if err != nil {
		enc.Close()
		return fmt.Errorf("swipe: init: %w", err)
	}

	f.pool = tensorpool.New(poolCap, tensorpool.DefaultMaxReuse)
	f.enc = enc
	f.dec = dec
	f.queueCap = queueCap
	f.sched = pipeline.New(enc, dec, f.v, f.pool, queueCap)
	f.healthy = true
	return nil
}

// SetLayout installs a new key geometry, replacing any previous one. Safe
// to call concurrently with Predict: the geometry is swapped atomically and
// a job snapshots it on enqueue (see internal/geometry).
func (f *Facade) SetLayout(centers map[rune]geometry.Point, w, h float32) error {
	f.mu.RLock()
	v := f.v
	f.mu.RUnlock()
	if err := f.geo.SetLayout(v, centers, w, h); err != nil {
		return fmt.Errorf("swipe: set layout: %w", err)
	}
	return nil
}

// Predict runs a gesture through the full pipeline and returns a ranked
// candidate list. The call blocks until a result, cancellation (via ctx),
// or error.
func (f *Facade) Predict(ctx context.Context, g Gesture, cfg PredictConfig) ([]rerank.Result, error) {
	f.mu.RLock()
	healthy := f.healthy
	sched := f.sched
	f.mu.RUnlock()

	if !healthy || sched == nil {
		return nil, fmt.Errorf("swipe: predict: %w", swipeerr.ErrNotInitialized)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("swipe: predict: %w", err)
	}

	samples := make([]trajectory.Sample, len(g.Points))
	for i, p := range g.Points {
		samples[i] = trajectory.Sample{X: p.X, Y: p.Y, TMs: p.TMs}
	}

	snap := f.geo.Snapshot()
	feats, err := trajectory.Extract(samples, g.BBoxW, g.BBoxH, snap)
	if err != nil {
		return nil, fmt.Errorf("swipe: predict: %w", err)
	}

	pathLen := pathLength(samples)
	durSec := duration(samples)
	gctx := rerank.GestureContext{PathLength: pathLen, DurationSec: durSec}

	results, err := sched.Submit(ctx, feats, gctx, cfg.toBeamConfig())
	if err != nil {
		if !errors.Is(err, swipeerr.ErrCancelled) {
			f.markUnhealthyOnInternal(err)
		}
		return nil, err
	}
	return results, nil
}

func pathLength(samples []trajectory.Sample) float64 {
	var total float64
	for i := 1; i < len(samples); i++ {
		dx := float64(samples[i].X - samples[i-1].X)
		dy := float64(samples[i].Y - samples[i-1].Y)
		total += math.Sqrt(dx*dx + dy*dy)
	}
	return total
}

func duration(samples []trajectory.Sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	return float64(samples[len(samples)-1].TMs-samples[0].TMs) / 1000.0
}

func (f *Facade) markUnhealthyOnInternal(err error) {
	// Internal errors (pool/queue invariant violations) mark the facade
	// unhealthy until re-initialized, per spec.md §9's panic-to-Internal
	// policy; other error classes (InvalidGesture, EncoderError,
	// DecoderError) are surfaced without affecting health.
	if !errors.Is(err, swipeerr.ErrInternal) {
		return
	}
	f.mu.Lock()
	f.healthy = false
	f.mu.Unlock()
}

// Stats reports current pool and queue statistics.
func (f *Facade) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var s Stats
	if f.pool != nil {
		s.Pool = f.pool.Stats()
	}
	if f.sched != nil {
		s.EncoderQueueLen, s.DecoderQueueLen = f.sched.QueueDepths()
		s.AvgEncoderMillis, s.AvgDecoderMillis = f.sched.LatencyStats()
	}
	return s
}

// Shutdown stops the scheduler and releases both model sessions. Predict
// returns swipeerr.ErrNotInitialized after Shutdown.
func (f *Facade) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sched != nil {
		f.sched.Shutdown()
	}
	if f.enc != nil {
		f.enc.Close()
	}
	if f.dec != nil {
		f.dec.Close()
	}
	f.healthy = false
}
