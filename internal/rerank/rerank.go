// Package rerank implements the vocabulary and gesture-shape re-ranker
// (C8), the final stage before a prediction is returned to the caller. The
// scoring-then-sort shape mirrors the teacher's internal/index.Index.Search:
// compute a score per candidate, drop invalid ones, then sort deterministically.
package rerank

import (
	"math"
	"sort"

	"github.com/cleverkeys/swipedecoder/internal/decoder"
	"github.com/cleverkeys/swipedecoder/internal/vocab"
)

// GestureContext carries the two gesture-shape priors the re-ranker needs:
// the raw path length in pixels and the gesture duration in seconds.
type GestureContext struct {
	PathLength  float64
	DurationSec float64
}

// Result is a single ranked candidate, score scaled to a stable integer so
// callers can compare/sort without float drift across platforms.
type Result struct {
	Word  string
	Score int32
}

// scoreScale matches spec.md's score_i32 = round(final * 1000).
const scoreScale = 1000.0

// Rank scores and sorts candidates per spec.md §4.8. Words not present in v's
// lexicon are dropped. Ties in final score are broken by (-len(w), w) ascending.
func Rank(cands []decoder.Candidate, v *vocab.Vocabulary, gctx GestureContext) []Result {
	type scored struct {
		word  string
		final float64
	}

	var kept []scored
	for _, c := range cands {
		if !v.IsWord(c.Word) {
			continue
		}
		vs := vocabScore(v, c.Word)
		cs := contextScore(c.Word, gctx)
		final := c.Confidence * vs * cs
		kept = append(kept, scored{word: c.Word, final: final})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.final != b.final {
			return a.final > b.final
		}
		if len(a.word) != len(b.word) {
			return len(a.word) > len(b.word) // -len(w) ascending == len(w) descending
		}
		return a.word < b.word
	})

	out := make([]Result, len(kept))
	for i, s := range kept {
		out[i] = Result{Word: s.word, Score: int32(math.Round(s.final * scoreScale))}
	}
	return out
}

func vocabScore(v *vocab.Vocabulary, w string) float64 {
	freq := float64(v.Freq(w))
	score := freq*1000 + 1
	if v.IsCommon(w) {
		score *= 2.0
	} else {
		score *= 1.0
	}
	if v.IsTop5000(w) {
		score *= 1.5
	} else {
		score *= 1.0
	}
	if len(w) > 12 {
		score *= 0.5
	}
	return score
}

func contextScore(w string, g GestureContext) float64 {
	lengthPrior := 1 - math.Abs(float64(len(w))-g.PathLength/50)*0.1
	if lengthPrior < 0.5 {
		lengthPrior = 0.5
	}
	durationPrior := 1 - math.Abs(g.DurationSec-0.15*float64(len(w)))*0.2
	if durationPrior < 0.7 {
		durationPrior = 0.7
	}
	return lengthPrior * durationPrior
}
