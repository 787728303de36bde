// Package onnxrt centralizes ONNX Runtime session setup shared by the
// encoder and decoder runners. The session-options wiring (intra/inter-op
// thread counts, shared library path) is copied in spirit from the
// teacher's internal/embed/embedder.go New — the same conservative
// threading rationale applies: more threads rarely help on small CPUs and
// cause contention when both intra- and inter-op pools spawn goroutines.
package onnxrt

import (
	"fmt"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// Session wraps a DynamicAdvancedSession together with the names it was
// built with, so callers can validate input/output shapes against what the
// model actually expects.
type Session struct {
	*ort.DynamicAdvancedSession
	InputNames  []string
	OutputNames []string
}

// Options mirrors the CLI-tunable knobs sift exposes (--ort-lib, --threads).
type Options struct {
	OrtLibPath string
	NumThreads int
}

var initialized bool

// EnsureEnvironment initializes the ONNX Runtime environment exactly once
// per process, pointing it at ortLibPath if given. Safe to call repeatedly.
func EnsureEnvironment(ortLibPath string) error {
	if initialized {
		return nil
	}
	if ortLibPath != "" {
		ort.SetSharedLibraryPath(ortLibPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnxrt: init environment: %w", err)
	}
	initialized = true
	return nil
}

// NewSession loads an ONNX model from modelPath with the given input and
// output tensor names (the external wire contract in spec.md §6 is
// bit-exact on these names).
func NewSession(modelPath string, inputNames, outputNames []string, opts Options) (*Session, error) {
	if err := EnsureEnvironment(opts.OrtLibPath); err != nil {
		return nil, err
	}

	numThreads := opts.NumThreads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
		if numThreads > 4 {
			numThreads = 4
		}
	}

	so, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnxrt: session options: %w", err)
	}
	defer so.Destroy()

	if err := so.SetIntraOpNumThreads(numThreads); err != nil {
		return nil, fmt.Errorf("onnxrt: set intra threads: %w", err)
	}
	if err := so.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("onnxrt: set inter threads: %w", err)
	}

	sess, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, so)
	if err != nil {
		return nil, fmt.Errorf("onnxrt: create session %s: %w", modelPath, err)
	}

	return &Session{DynamicAdvancedSession: sess, InputNames: inputNames, OutputNames: outputNames}, nil
}

// Close destroys the underlying session.
func (s *Session) Close() {
	if s != nil && s.DynamicAdvancedSession != nil {
		s.DynamicAdvancedSession.Destroy()
	}
}
