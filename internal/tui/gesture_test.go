package tui

import "testing"

func TestSynthesizeGestureProducesMonotonicTimestamps(t *testing.T) {
	g := SynthesizeGesture("cat")
	if len(g.Points) < 2 {
		t.Fatalf("expected multiple points, got %d", len(g.Points))
	}
	for i := 1; i < len(g.Points); i++ {
		if g.Points[i].TMs <= g.Points[i-1].TMs {
			t.Fatalf("timestamps not strictly increasing at %d", i)
		}
	}
}

func TestSynthesizeGestureEmptyForUnknownChars(t *testing.T) {
	g := SynthesizeGesture("123")
	if len(g.Points) != 0 {
		t.Errorf("expected no points for digits, got %d", len(g.Points))
	}
}

func TestQwertyLayoutCoversAllLetters(t *testing.T) {
	layout := QwertyLayout()
	for _, row := range qwertyRows {
		for _, r := range row {
			if _, ok := layout[r]; !ok {
				t.Errorf("missing layout entry for %q", r)
			}
		}
	}
}
