// Package decoder implements the step-synchronous batched beam search
// decoder (C6). The per-step top-k candidate extraction reuses the
// teacher's container/heap candidate-pool shape from internal/hnsw.Graph
// (a bounded min-heap of (id, score) pairs), generalized from "graph node +
// similarity" to "vocabulary token + log-probability".
package decoder

import (
	"container/heap"
	"math"
)

// Config holds the beam search parameters from spec.md §4.6.
type Config struct {
	BeamWidth        int     // default 8, range 1..16
	MaxLen           int     // default 35, range 10..50 (decoder steps, excludes SOS)
	ConfThreshold    float64 // default 0.1
	SeqWindow        int     // T, fixed token window, >= MaxLen+1
}

// DefaultConfig returns the spec's recommended defaults.
func DefaultConfig() Config {
	return Config{BeamWidth: 8, MaxLen: 35, ConfThreshold: 0.1, SeqWindow: 40}
}

// beam is a partial decoded sequence.
type beam struct {
	tokens   []int
	score    float64
	finished bool
}

// tokCandidate is a single (vocab token, log-prob) pair considered during
// expansion — the same {id, dist} shape as the teacher's HNSW candidate,
// just renamed to the decoding domain.
type tokCandidate struct {
	token int
	logp  float64
}

// candHeap is a bounded min-heap (root = worst logp) used to keep only the
// best BeamWidth candidates while scanning the full vocabulary — the same
// technique as internal/hnsw.Graph's searchLayer W-set, just simpler since
// VocabSize is small and fixed.
type candHeap []tokCandidate

func (h candHeap) Len() int            { return len(h) }
func (h candHeap) Less(i, j int) bool  { return h[i].logp < h[j].logp }
func (h candHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candHeap) Push(x interface{}) { *h = append(*h, x.(tokCandidate)) }
func (h *candHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topK returns the k highest-logp candidates from logp, sorted descending.
// Ties among equal log-probs are broken by smaller token id, matching the
// deterministic tie-break the rest of the step needs.
func topK(logp []float64, k int) []tokCandidate {
	if k > len(logp) {
		k = len(logp)
	}
	h := make(candHeap, 0, k)
	heap.Init(&h)
	for tok, lp := range logp {
		c := tokCandidate{token: tok, logp: lp}
		if h.Len() < k {
			heap.Push(&h, c)
			continue
		}
		if lp > h[0].logp || (lp == h[0].logp && tok < h[0].token) {
			heap.Pop(&h)
			heap.Push(&h, c)
		}
	}
	out := make([]tokCandidate, len(h))
	copy(out, h)
	sortCandidatesDesc(out)
	return out
}

func sortCandidatesDesc(c []tokCandidate) {
	for i := 1; i < len(c); i++ {
		j := i
		for j > 0 && less(c[j], c[j-1]) {
			c[j-1], c[j] = c[j], c[j-1]
			j--
		}
	}
}

// less reports whether a should sort before b: higher logp first, ties
// broken by smaller token id.
func less(a, b tokCandidate) bool {
	if a.logp != b.logp {
		return a.logp > b.logp
	}
	return a.token < b.token
}

// logSoftmax computes a numerically-stable log-softmax over logits.
func logSoftmax(logits []float32) []float64 {
	maxV := float64(logits[0])
	for _, v := range logits[1:] {
		if float64(v) > maxV {
			maxV = float64(v)
		}
	}
	var sum float64
	shifted := make([]float64, len(logits))
	for i, v := range logits {
		shifted[i] = float64(v) - maxV
		sum += math.Exp(shifted[i])
	}
	logSum := math.Log(sum)
	out := make([]float64, len(logits))
	for i := range shifted {
		out[i] = shifted[i] - logSum
	}
	return out
}

// selectTop selects the top n beams by (score desc, len asc, tokens lex asc)
// — the deterministic tie-break required by spec.md §4.6 step 5.
func selectTop(beams []beam, n int) []beam {
	sortBeamsDesc(beams)
	if len(beams) > n {
		beams = beams[:n]
	}
	return beams
}

func sortBeamsDesc(b []beam) {
	for i := 1; i < len(b); i++ {
		j := i
		for j > 0 && beamLess(b[j], b[j-1]) {
			b[j-1], b[j] = b[j], b[j-1]
			j--
		}
	}
}

// beamLess reports whether a sorts before b under the tie-break rule:
// higher score first; on equal score, fewer tokens first; on equal length,
// lexicographically smaller token sequence first.
func beamLess(a, b beam) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if len(a.tokens) != len(b.tokens) {
		return len(a.tokens) < len(b.tokens)
	}
	for i := range a.tokens {
		if a.tokens[i] != b.tokens[i] {
			return a.tokens[i] < b.tokens[i]
		}
	}
	return false
}
