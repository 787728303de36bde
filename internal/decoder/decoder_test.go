package decoder

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/cleverkeys/swipedecoder/internal/onnxrt"
	"github.com/cleverkeys/swipedecoder/internal/swipeerr"
	"github.com/cleverkeys/swipedecoder/internal/tensorpool"
	"github.com/cleverkeys/swipedecoder/internal/trajectory"
	"github.com/cleverkeys/swipedecoder/internal/vocab"
)

func TestNewMissingModel(t *testing.T) {
	_, err := New("/tmp/nonexistent-decoder-model.onnx", onnxrt.Options{})
	if err == nil {
		t.Fatal("expected error for missing model file")
	}
}

func TestStripSpecialDropsSosEosPad(t *testing.T) {
	got := stripSpecial([]int{vocab.SOS, 5, 6, vocab.EOS, vocab.PAD})
	if len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Errorf("stripSpecial = %v, want [5 6]", got)
	}
}

func TestIsAlphabeticRejectsEmpty(t *testing.T) {
	if isAlphabetic("") {
		t.Error("empty string must not be alphabetic")
	}
	if !isAlphabetic("cat") {
		t.Error("cat should be alphabetic")
	}
	if isAlphabetic("can't") {
		t.Error("apostrophe must be rejected by the default char map")
	}
}

func TestRunRejectsSeqWindowBelowMaxLenPlusOne(t *testing.T) {
	d := &Decoder{}
	cfg := DefaultConfig()
	cfg.MaxLen = 40
	cfg.SeqWindow = 20

	_, _, err := d.Run(context.Background(), nil, 256, nil, vocab.New(), tensorpool.New(0, 0), cfg)
	if err == nil {
		t.Fatal("expected error for seq_window < max_len+1")
	}
	if !errors.Is(err, swipeerr.ErrInvalidGesture) {
		t.Errorf("expected swipeerr.ErrInvalidGesture, got %v", err)
	}
}

func TestRunReturnsCancelledOnAlreadyCancelledContext(t *testing.T) {
	d := &Decoder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := d.Run(ctx, nil, 256, nil, vocab.New(), tensorpool.New(0, 0), DefaultConfig())
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, swipeerr.ErrCancelled) {
		t.Errorf("expected swipeerr.ErrCancelled, got %v", err)
	}
}

// TestRunAgainstRealModel exercises the full beam search path if a decoder
// model is available at the conventional test fixture location; otherwise
// it skips.
func TestRunAgainstRealModel(t *testing.T) {
	const modelPath = "../../models/decoder.onnx"
	if _, err := os.Stat(modelPath); err != nil {
		t.Skipf("skipping: decoder model not found at %s: %v", modelPath, err)
	}

	dec, err := New(modelPath, onnxrt.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer dec.Close()

	const hEnc = 256
	memory := make([]float32, trajectory.L*hEnc)
	srcMask := make([]bool, trajectory.L)
	for i := range srcMask[:10] {
		srcMask[i] = true
	}

	v := vocab.New()
	pool := tensorpool.New(0, 0)

	cands, truncated, err := dec.Run(context.Background(), memory, hEnc, srcMask, v, pool, DefaultConfig())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	t.Logf("candidates: %+v truncated=%v", cands, truncated)
	if pool.Stats().Outstanding != 0 {
		t.Errorf("pool outstanding after Run = %d, want 0", pool.Stats().Outstanding)
	}
}
