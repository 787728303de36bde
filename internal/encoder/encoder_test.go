package encoder

import (
	"os"
	"testing"

	"github.com/cleverkeys/swipedecoder/internal/geometry"
	"github.com/cleverkeys/swipedecoder/internal/onnxrt"
	"github.com/cleverkeys/swipedecoder/internal/tensorpool"
	"github.com/cleverkeys/swipedecoder/internal/trajectory"
	"github.com/cleverkeys/swipedecoder/internal/vocab"
)

// TestNewMissingModel ensures New returns a useful error for a missing
// model file, mirroring embedder_test.go's TestEmbedderNew.
func TestNewMissingModel(t *testing.T) {
	_, err := New("/tmp/nonexistent-encoder-model.onnx", 256, onnxrt.Options{})
	if err == nil {
		t.Fatal("expected error for missing model file")
	}
}

// TestRunAgainstRealModel exercises the full encoder path if a model is
// available at the conventional test fixture location; otherwise it skips,
// matching embedder_test.go's TestEmbedSemanticSimilarity pattern.
func TestRunAgainstRealModel(t *testing.T) {
	const modelPath = "../../models/encoder.onnx"
	if _, err := os.Stat(modelPath); err != nil {
		t.Skipf("skipping: encoder model not found at %s: %v", modelPath, err)
	}

	enc, err := New(modelPath, 256, onnxrt.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer enc.Close()

	g := geometry.New()
	v := vocab.New()
	g.SetLayout(v, map[rune]geometry.Point{'a': {X: 540, Y: 180}}, 1080, 360)

	samples := []trajectory.Sample{
		{X: 100, Y: 180, TMs: 0},
		{X: 900, Y: 180, TMs: 100},
	}
	feats, err := trajectory.Extract(samples, 1080, 360, g.Snapshot())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	pool := tensorpool.New(0, 0)
	out, err := enc.Run(feats, pool)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.HEnc != 256 {
		t.Errorf("HEnc = %d, want 256", out.HEnc)
	}
	if len(out.Memory) != trajectory.L*int(out.HEnc) {
		t.Errorf("len(Memory) = %d, want %d", len(out.Memory), trajectory.L*int(out.HEnc))
	}
	if pool.Stats().Outstanding != 0 {
		t.Errorf("pool outstanding after Run = %d, want 0", pool.Stats().Outstanding)
	}
}
