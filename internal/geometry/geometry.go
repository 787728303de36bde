// Package geometry implements key geometry lookups (C2): mapping a
// keyboard-space coordinate to the nearest key's token id. The layout is
// swapped atomically so in-flight predictions keep using the snapshot they
// started with, mirroring the teacher's mutex-guarded mutable graph
// (internal/hnsw.Graph) — a lookup/insert never holds the lock across an
// expensive call, just across the map swap itself.
package geometry

import (
	"sync"
	"sync/atomic"

	"github.com/cleverkeys/swipedecoder/internal/vocab"
)

// Point is a keyboard-space position.
type Point struct {
	X, Y float32
}

// Layout is an immutable snapshot of key centers plus keyboard bounds.
type Layout struct {
	centers map[rune]Point
	ids     map[rune]int // char -> token id, keyed off vocab at SetLayout time
	order   []keyPos     // stable iteration order for deterministic tie-break
	W, H    float32
}

type keyPos struct {
	id int
	p  Point
}

// Geometry holds the current layout snapshot behind an atomic pointer so
// readers never block on SetLayout and SetLayout never blocks on readers.
type Geometry struct {
	mu      sync.Mutex // serializes writers only
	current atomic.Pointer[Layout]
}

// New returns a Geometry with no layout set; NearestKeyIndex returns PAD
// until SetLayout is called.
func New() *Geometry {
	return &Geometry{}
}

// SetLayout atomically replaces the key geometry. v resolves each character
// to its token id; characters with no token id are skipped (never matched).
func (g *Geometry) SetLayout(v *vocab.Vocabulary, centers map[rune]Point, w, h float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	l := &Layout{
		centers: make(map[rune]Point, len(centers)),
		ids:     make(map[rune]int, len(centers)),
		W:       w,
		H:       h,
	}
	for r, p := range centers {
		ids, err := v.Encode(string(r))
		if err != nil || len(ids) != 1 {
			continue
		}
		l.centers[r] = p
		l.ids[r] = ids[0]
		l.order = append(l.order, keyPos{id: ids[0], p: p})
	}
	// Sort by token id so nearest-key ties are broken by smaller id,
	// deterministically, regardless of map iteration order.
	for i := 1; i < len(l.order); i++ {
		j := i
		for j > 0 && l.order[j-1].id > l.order[j].id {
			l.order[j-1], l.order[j] = l.order[j], l.order[j-1]
			j--
		}
	}

	g.current.Store(l)
	return nil
}

// Snapshot returns the current layout (possibly nil if unset). Callers that
// need a stable view across a whole job should take the snapshot once and
// reuse it, rather than calling NearestKeyIndex directly.
func (g *Geometry) Snapshot() *Layout {
	return g.current.Load()
}

// NearestKeyIndex returns the token id of the nearest key to (x, y) in
// keyboard space, ties broken by smaller token id. Returns vocab.PAD if no
// layout has been set.
func (g *Geometry) NearestKeyIndex(x, y float32) int {
	l := g.current.Load()
	if l == nil {
		return vocab.PAD
	}
	return l.NearestKeyIndex(x, y)
}

// NearestKeyIndex resolves against this specific layout snapshot.
func (l *Layout) NearestKeyIndex(x, y float32) int {
	if l == nil || len(l.order) == 0 {
		return vocab.PAD
	}
	best := l.order[0]
	bestDist := sqDist(x, y, best.p)
	for _, k := range l.order[1:] {
		d := sqDist(x, y, k.p)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}
	return best.id
}

func sqDist(x, y float32, p Point) float32 {
	dx := x - p.X
	dy := y - p.Y
	return dx*dx + dy*dy
}
