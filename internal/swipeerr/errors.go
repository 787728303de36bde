// Package swipeerr defines the typed error taxonomy returned by the
// prediction facade. Every error a caller can observe from Predict is one
// of the sentinels below, wrapped with context via fmt.Errorf("...: %w").
package swipeerr

import "errors"

// Sentinels. Use errors.Is against these, never string matching.
var (
	// ErrNotInitialized is returned when Predict is called before Init,
	// after Shutdown, or after an ErrInternal failure has marked the facade
	// unhealthy. Worker panics are not recovered or converted to ErrInternal.
	ErrNotInitialized = errors.New("swipedecoder: not initialized")

	// ErrInvalidGesture covers malformed input: too few samples,
	// non-monotonic timestamps, or an empty result after resampling.
	ErrInvalidGesture = errors.New("swipedecoder: invalid gesture")

	// ErrCancelled is returned when a job's cancellation token trips before
	// completion. No partial result is ever attached.
	ErrCancelled = errors.New("swipedecoder: cancelled")

	// ErrEncoder covers encoder session failures (shape mismatch, runtime error).
	ErrEncoder = errors.New("swipedecoder: encoder error")

	// ErrDecoder covers decoder session failures, including non-finite logits.
	ErrDecoder = errors.New("swipedecoder: decoder error")

	// ErrInternal marks a violated pool/queue invariant — a bug, not a
	// user-facing condition. Seeing this should fail a test.
	ErrInternal = errors.New("swipedecoder: internal error")
)

// Shape-specific sub-errors, distinguished with errors.Is against both the
// sentinel below and the broader ErrEncoder/ErrDecoder/ErrInvalidGesture.
var (
	ErrShape       = errors.New("shape mismatch")
	ErrNonFinite   = errors.New("non-finite logits")
	ErrTooShort    = errors.New("fewer than 2 samples")
	ErrBadTime     = errors.New("timestamps not non-decreasing")
	ErrUnknownChar = errors.New("character has no token id")
)
