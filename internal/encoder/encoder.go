// Package encoder runs the trajectory encoder model once per gesture (C5),
// producing the memory tensor the decoder attends to. Session lifecycle
// mirrors the teacher's embed.Embedder: load once, run many times,
// Destroy on Close.
package encoder

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/cleverkeys/swipedecoder/internal/onnxrt"
	"github.com/cleverkeys/swipedecoder/internal/swipeerr"
	"github.com/cleverkeys/swipedecoder/internal/tensorpool"
	"github.com/cleverkeys/swipedecoder/internal/trajectory"
)

// Names are bit-exact per spec.md §6.
var (
	inputNames  = []string{"trajectory_features", "nearest_keys", "src_mask"}
	outputNames = []string{"memory"}
)

// Encoder wraps the encoder ONNX session.
type Encoder struct {
	sess *onnxrt.Session
	hEnc int64
}

// New loads the encoder model. hEnc is the expected hidden size (256 or
// 512, an implementation constant matching the shipped model). New does not
// compare hEnc with the model. Run allocates its output as [1, L, hEnc]
// before calling the session, and its output-shape check reads that
// preallocated shape, so a width mismatch is not reported as
// swipeerr.ErrShape; it surfaces only as the session's Run error, wrapped
// in swipeerr.ErrEncoder.
func New(modelPath string, hEnc int64, opts onnxrt.Options) (*Encoder, error) {
	sess, err := onnxrt.NewSession(modelPath, inputNames, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	return &Encoder{sess: sess, hEnc: hEnc}, nil
}

// Close releases the encoder session.
func (e *Encoder) Close() {
	if e != nil {
		e.sess.Close()
	}
}

// Output is the encoder's result: the single-gesture memory tensor, owned
// by the caller (a plain Go slice, not a pool handle — the pooled output
// tensor is copied out and released immediately since the decoder worker
// needs a *replicated* [B, L, HEnc] tensor anyway, built fresh from the
// pool on every step in internal/decoder).
type Output struct {
	Memory []float32 // flattened [1, L, HEnc]
	HEnc   int64
}

// Run executes the encoder once on f, acquiring input/output tensors from
// pool. Pure function of f: may be called concurrently with a decoder call
// on a different session (the pipeline scheduler's whole overlap point).
func (e *Encoder) Run(f *trajectory.Features, pool *tensorpool.Pool) (*Output, error) {
	trajHandle, trajTensor, err := pool.Float32([]int64{1, trajectory.L, trajectory.Channels})
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	defer trajHandle.Release()
	data := trajTensor.GetData()
	for i := 0; i < trajectory.L; i++ {
		for c := 0; c < trajectory.Channels; c++ {
			data[i*trajectory.Channels+c] = f.Traj[i][c]
		}
	}

	keysHandle, keysTensor, err := pool.Int64([]int64{1, trajectory.L})
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	defer keysHandle.Release()
	kd := keysTensor.GetData()
	for i := 0; i < trajectory.L; i++ {
		kd[i] = f.Keys[i]
	}

	maskHandle, maskTensor, err := pool.Bool([]int64{1, trajectory.L})
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	defer maskHandle.Release()
	md := maskTensor.GetData()
	for i := 0; i < trajectory.L; i++ {
		md[i] = f.SrcMask[i]
	}

	outHandle, outTensor, err := pool.Float32([]int64{1, trajectory.L, e.hEnc})
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}

	defer outHandle.Release()

	inputs := []ort.Value{trajTensor, keysTensor, maskTensor}
	outputs := []ort.Value{outTensor}
	if err := e.sess.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("encoder: run: %w: %w", swipeerr.ErrEncoder, err)
	}

	outData := outTensor.GetData()
	outShape := outTensor.GetShape()
	if len(outShape) != 3 || outShape[0] != 1 || outShape[1] != trajectory.L {
		return nil, fmt.Errorf("encoder: output shape %v: %w: %w", outShape, swipeerr.ErrEncoder, swipeerr.ErrShape)
	}

	memCopy := make([]float32, len(outData))
	copy(memCopy, outData)

	return &Output{Memory: memCopy, HEnc: outShape[2]}, nil
}
