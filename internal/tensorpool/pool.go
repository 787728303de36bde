// Package tensorpool implements a typed, shape-keyed pool of reusable ONNX
// tensors (C4), eliminating per-step allocation in beam search. It
// generalizes the scoped-acquire/defer-release idiom the teacher already
// uses per-call in internal/embed/embedder.go (ort.NewTensor / defer
// t.Destroy()) into a long-lived, thread-safe pool keyed by (dtype, shape).
package tensorpool

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// DType identifies which typed sub-pool a tensor belongs to.
type DType int

const (
	F32 DType = iota
	I64
	Bool
)

// Defaults from spec.md §4.4.
const (
	DefaultMaxPoolPerShape = 16
	DefaultMaxReuse        = 1000
)

// shapeKey identifies a sub-pool: dtype plus the flattened shape.
type shapeKey struct {
	dtype DType
	dims  string // Shape formatted as "d0xd1x...xdn" — comparable map key
}

func keyFor(dtype DType, shape []int64) shapeKey {
	s := ""
	for i, d := range shape {
		if i > 0 {
			s += "x"
		}
		s += fmt.Sprintf("%d", d)
	}
	return shapeKey{dtype: dtype, dims: s}
}

// entry wraps a tensor with its reuse counter.
type entry struct {
	f32Tensor  *ort.Tensor[float32]
	i64Tensor  *ort.Tensor[int64]
	boolTensor *ort.Tensor[bool]
	reuses     int
}

// Pool is a thread-safe, shape-keyed tensor pool. The lock is only ever
// held for the duration of a slice append/pop on the per-shape free list —
// never across a model call — matching the locking discipline the teacher
// applies to internal/hnsw.Graph.
type Pool struct {
	mu            sync.Mutex
	free          map[shapeKey][]*entry
	maxPerShape   int
	maxReuse      int
	stats         Stats
}

// Stats is a snapshot of pool activity, exposed for observability (§4.4, §6 stats()).
type Stats struct {
	Acquisitions int64
	Hits         int64
	Misses       int64
	ActivePools  int
	// Outstanding is the number of acquired-but-not-yet-released handles.
	// Must return to its pre-job value after completion, cancellation, or
	// error (§8 invariant).
	Outstanding int64
}

// New creates an empty pool. maxPerShape and maxReuse default to the
// spec's recommended bounds when <= 0.
func New(maxPerShape, maxReuse int) *Pool {
	if maxPerShape <= 0 {
		maxPerShape = DefaultMaxPoolPerShape
	}
	if maxReuse <= 0 {
		maxReuse = DefaultMaxReuse
	}
	return &Pool{
		free:        map[shapeKey][]*entry{},
		maxPerShape: maxPerShape,
		maxReuse:    maxReuse,
	}
}

// Handle is a scoped, pool-backed tensor. Release must be called on every
// exit path (success, error, cancellation) — callers should `defer h.Release()`
// immediately after a successful Float32, Int64 or Bool call.
type Handle struct {
	pool  *Pool
	key   shapeKey
	entry *entry
}

// Float32 acquires an [shape]float32 tensor, zeroed to zeros unless reused
// from the pool (callers must overwrite all elements they care about).
func (p *Pool) Float32(shape []int64) (*Handle, *ort.Tensor[float32], error) {
	key := keyFor(F32, shape)
	e, hit := p.take(key)
	if hit && e.f32Tensor != nil {
		p.recordHitMiss(true)
		return &Handle{pool: p, key: key, entry: e}, e.f32Tensor, nil
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	data := make([]float32, n)
	t, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, nil, fmt.Errorf("tensorpool: new f32 tensor %v: %w", shape, err)
	}
	p.recordHitMiss(false)
	ne := &entry{f32Tensor: t}
	return &Handle{pool: p, key: key, entry: ne}, t, nil
}

// Int64 acquires an [shape]int64 tensor.
func (p *Pool) Int64(shape []int64) (*Handle, *ort.Tensor[int64], error) {
	key := keyFor(I64, shape)
	e, hit := p.take(key)
	if hit && e.i64Tensor != nil {
		p.recordHitMiss(true)
		return &Handle{pool: p, key: key, entry: e}, e.i64Tensor, nil
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	data := make([]int64, n)
	t, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, nil, fmt.Errorf("tensorpool: new i64 tensor %v: %w", shape, err)
	}
	p.recordHitMiss(false)
	ne := &entry{i64Tensor: t}
	return &Handle{pool: p, key: key, entry: ne}, t, nil
}

// Bool acquires an [shape]bool tensor.
func (p *Pool) Bool(shape []int64) (*Handle, *ort.Tensor[bool], error) {
	key := keyFor(Bool, shape)
	e, hit := p.take(key)
	if hit && e.boolTensor != nil {
		p.recordHitMiss(true)
		return &Handle{pool: p, key: key, entry: e}, e.boolTensor, nil
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	data := make([]bool, n)
	t, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, nil, fmt.Errorf("tensorpool: new bool tensor %v: %w", shape, err)
	}
	p.recordHitMiss(false)
	ne := &entry{boolTensor: t}
	return &Handle{pool: p, key: key, entry: ne}, t, nil
}

func (p *Pool) take(key shapeKey) (*entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Acquisitions++
	list := p.free[key]
	if len(list) == 0 {
		return nil, false
	}
	e := list[len(list)-1]
	p.free[key] = list[:len(list)-1]
	return e, true
}

func (p *Pool) recordHitMiss(hit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if hit {
		p.stats.Hits++
	} else {
		p.stats.Misses++
	}
	p.stats.Outstanding++
}

// Release returns the tensor to its sub-pool, unless the per-shape bound
// or per-tensor reuse cap has been hit, in which case the tensor is
// destroyed instead. Safe to call from any worker; never blocks on a model
// call.
func (h *Handle) Release() {
	if h == nil || h.entry == nil {
		return
	}
	p := h.pool
	e := h.entry
	e.reuses++

	p.mu.Lock()
	list := p.free[h.key]
	overCap := len(list) >= p.maxPerShape || e.reuses >= p.maxReuse
	if !overCap {
		p.free[h.key] = append(list, e)
	} else if len(p.free[h.key]) == 0 {
		delete(p.free, h.key)
	}
	p.stats.Outstanding--
	p.mu.Unlock()

	if overCap {
		destroy(e)
	}
}

func destroy(e *entry) {
	if e.f32Tensor != nil {
		e.f32Tensor.Destroy()
	}
	if e.i64Tensor != nil {
		e.i64Tensor.Destroy()
	}
	if e.boolTensor != nil {
		e.boolTensor.Destroy()
	}
}

// Stats returns a snapshot of pool activity.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.ActivePools = len(p.free)
	return s
}
