package tensorpool

import (
	"os"
	"sync"
	"testing"

	ort "github.com/yalue/onnxruntime_go"
)

// TestMain initializes the ONNX Runtime environment once for the package,
// mirroring embed.New's "no-op if already initialized" comment in the
// teacher repo. Tests assume onnxruntime.so is resolvable the same way the
// teacher's embedder_test.go does.
func TestMain(m *testing.M) {
	_ = ort.InitializeEnvironment()
	os.Exit(m.Run())
}

// TestAcquireReleaseReturnsToBaseline checks the §8 invariant: the pool's
// outstanding count returns to its pre-job value after release.
func TestAcquireReleaseReturnsToBaseline(t *testing.T) {
	p := New(0, 0)
	before := p.Stats().Outstanding

	h, tensor, err := p.Float32([]int64{1, 150, 6})
	if err != nil {
		t.Fatalf("Float32: %v", err)
	}
	if tensor == nil {
		t.Fatal("expected non-nil tensor")
	}
	if got := p.Stats().Outstanding; got != before+1 {
		t.Errorf("Outstanding = %d, want %d", got, before+1)
	}
	h.Release()
	if got := p.Stats().Outstanding; got != before {
		t.Errorf("Outstanding after release = %d, want %d", got, before)
	}
}

func TestSecondAcquireIsHit(t *testing.T) {
	p := New(0, 0)
	h1, _, err := p.Int64([]int64{1, 150})
	if err != nil {
		t.Fatalf("Int64: %v", err)
	}
	h1.Release()

	_, _, err = p.Int64([]int64{1, 150})
	if err != nil {
		t.Fatalf("Int64 (2nd): %v", err)
	}
	s := p.Stats()
	if s.Hits != 1 {
		t.Errorf("Hits = %d, want 1", s.Hits)
	}
	if s.Misses != 1 {
		t.Errorf("Misses = %d, want 1", s.Misses)
	}
}

func TestPerShapeBoundRespected(t *testing.T) {
	p := New(2, 0)
	var handles []*Handle
	for i := 0; i < 5; i++ {
		h, _, err := p.Bool([]int64{1, 150})
		if err != nil {
			t.Fatalf("Bool acquire %d: %v", i, err)
		}
		handles = append(handles, h)
	}
	for _, h := range handles {
		h.Release()
	}
	// Only maxPerShape (2) should remain free; the rest were destroyed.
	p.mu.Lock()
	free := len(p.free[keyFor(Bool, []int64{1, 150})])
	p.mu.Unlock()
	if free != 2 {
		t.Errorf("free list len = %d, want 2", free)
	}
}

func TestConcurrentAcquireRelease(t *testing.T) {
	p := New(0, 0)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, _, err := p.Float32([]int64{1, 150, 6})
			if err != nil {
				t.Errorf("Float32: %v", err)
				return
			}
			h.Release()
		}()
	}
	wg.Wait()
	if got := p.Stats().Outstanding; got != 0 {
		t.Errorf("Outstanding after concurrent use = %d, want 0", got)
	}
}
