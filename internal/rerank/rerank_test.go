package rerank

import (
	"os"
	"testing"

	"github.com/cleverkeys/swipedecoder/internal/decoder"
	"github.com/cleverkeys/swipedecoder/internal/vocab"
)

func newTestVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	v := vocab.New()
	words := "the\nquick\nbrown\nfox\ncat\n"
	tmp := t.TempDir() + "/words.txt"
	if err := os.WriteFile(tmp, []byte(words), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := v.LoadLexicon(tmp); err != nil {
		t.Fatalf("LoadLexicon: %v", err)
	}
	return v
}

func TestRankDropsWordsNotInLexicon(t *testing.T) {
	v := newTestVocab(t)
	cands := []decoder.Candidate{{Word: "zzzznotaword", Confidence: 0.9}}
	got := Rank(cands, v, GestureContext{PathLength: 100, DurationSec: 0.3})
	if len(got) != 0 {
		t.Errorf("expected no results for unknown word, got %+v", got)
	}
}

func TestRankOrdersByFinalScoreDesc(t *testing.T) {
	v := newTestVocab(t)
	cands := []decoder.Candidate{
		{Word: "fox", Confidence: 0.5},
		{Word: "the", Confidence: 0.9},
	}
	got := Rank(cands, v, GestureContext{PathLength: 150, DurationSec: 0.45})
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Word != "the" {
		t.Errorf("expected 'the' (higher freq+confidence) first, got %q", got[0].Word)
	}
}

func TestRankTieBreaksByLongerThenLexicographic(t *testing.T) {
	v := vocab.New()
	// Each word is the first line of its own file, so all three get
	// frequency 1.0 and the same common/top5000 boosts.
	dir := t.TempDir()
	var paths []string
	for i, w := range []string{"cd", "ab", "xyz"} {
		path := dir + "/w" + string(rune('0'+i)) + ".txt"
		if err := os.WriteFile(path, []byte(w+"\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		paths = append(paths, path)
	}
	if err := v.LoadLexicon(paths...); err != nil {
		t.Fatalf("LoadLexicon: %v", err)
	}
	cands := []decoder.Candidate{
		{Word: "cd", Confidence: 1},
		{Word: "ab", Confidence: 1},
		{Word: "xyz", Confidence: 1},
	}
	// A long path and duration push both context priors to their floors
	// (0.5 and 0.7) for every word length, so all three final scores tie.
	got := Rank(cands, v, GestureContext{PathLength: 10000, DurationSec: 100})
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	want := []string{"xyz", "ab", "cd"}
	for i, w := range want {
		if got[i].Word != w {
			t.Errorf("got[%d] = %q, want %q (order %+v)", i, got[i].Word, w, got)
		}
	}
}
