package geometry

import (
	"testing"

	"github.com/cleverkeys/swipedecoder/internal/vocab"
)

func TestNearestKeyIndexUnsetReturnsPAD(t *testing.T) {
	g := New()
	if got := g.NearestKeyIndex(10, 10); got != vocab.PAD {
		t.Errorf("NearestKeyIndex on unset layout = %d, want PAD", got)
	}
}

func TestNearestKeyIndexPicksClosest(t *testing.T) {
	g := New()
	v := vocab.New()
	centers := map[rune]Point{
		'a': {X: 0, Y: 0},
		'b': {X: 100, Y: 0},
		'c': {X: 100, Y: 100},
	}
	if err := g.SetLayout(v, centers, 1080, 360); err != nil {
		t.Fatalf("SetLayout: %v", err)
	}
	aID, _ := v.Encode("a")
	got := g.NearestKeyIndex(5, 5)
	if got != aID[0] {
		t.Errorf("NearestKeyIndex(5,5) = %d, want id of 'a' (%d)", got, aID[0])
	}
}

func TestNearestKeyIndexTieBreaksBySmallerID(t *testing.T) {
	g := New()
	v := vocab.New()
	// 'a' (id 4) and 'b' (id 5) equidistant from (50, 0).
	centers := map[rune]Point{
		'b': {X: 100, Y: 0},
		'a': {X: 0, Y: 0},
	}
	g.SetLayout(v, centers, 1080, 360)
	aID, _ := v.Encode("a")
	got := g.NearestKeyIndex(50, 0)
	if got != aID[0] {
		t.Errorf("tie-break got %d, want smaller id %d", got, aID[0])
	}
}

func TestSetLayoutAtomicSwapKeepsOldSnapshot(t *testing.T) {
	g := New()
	v := vocab.New()
	g.SetLayout(v, map[rune]Point{'a': {X: 0, Y: 0}}, 1080, 360)
	snap := g.Snapshot()

	g.SetLayout(v, map[rune]Point{'b': {X: 500, Y: 500}}, 1080, 360)

	bID, _ := v.Encode("b")
	if got := g.NearestKeyIndex(500, 500); got != bID[0] {
		t.Errorf("current layout not updated")
	}
	aID, _ := v.Encode("a")
	if got := snap.NearestKeyIndex(0, 0); got != aID[0] {
		t.Errorf("old snapshot should still resolve to 'a', got %d", got)
	}
}
