package search

import (
	"container/heap"
	"context"
	"math"

	"github.com/arx-os/vecindex/internal/relation"
	"github.com/arx-os/vecindex/internal/tuple"
)

// Promoted is one candidate that survived exact-distance reranking at a
// given level: its exact distance plus whichever identity the next level
// (or the final result stream) needs.
type Promoted struct {
	Distance   float32
	Payload    uint64
	ChildFirst relation.PageID
	Centroid   tuple.Pointer
	Vector     []float32 // the resolved centroid/leaf vector, for residual correction at the next level
}

// boundedCache is a max-heap over Distance, capped at a fixed capacity: it
// keeps the `capacity` smallest distances seen, evicting the current worst
// when a strictly smaller one arrives once full.
type boundedCache struct {
	items    []Promoted
	capacity int
}

func (c *boundedCache) Len() int            { return len(c.items) }
func (c *boundedCache) Less(i, j int) bool  { return c.items[i].Distance > c.items[j].Distance }
func (c *boundedCache) Swap(i, j int)       { c.items[i], c.items[j] = c.items[j], c.items[i] }
func (c *boundedCache) Push(x interface{})  { c.items = append(c.items, x.(Promoted)) }
func (c *boundedCache) Pop() interface{} {
	old := c.items
	n := len(old)
	it := old[n-1]
	c.items = old[:n-1]
	return it
}

// worst returns the largest kept distance, or +Inf if not yet full. A
// non-positive capacity accepts nothing, per PromoteLevel's probe=0 case.
func (c *boundedCache) worst() float32 {
	if c.capacity <= 0 {
		return float32NegInf
	}
	if len(c.items) < c.capacity {
		return float32Inf
	}
	return c.items[0].Distance
}

func (c *boundedCache) offer(p Promoted) {
	if len(c.items) < c.capacity {
		heap.Push(c, p)
		return
	}
	if p.Distance < c.items[0].Distance {
		c.items[0] = p
		heap.Fix(c, 0)
	}
}

var float32Inf = float32(math.Inf(1))
var float32NegInf = float32(math.Inf(-1))

// ExactFn computes the exact distance and resolved vector for one item,
// using its precomputed rawVector (e.g. from a Stream prefetcher) when
// present, else fetching it itself.
type ExactFn func(ctx context.Context, it item) (distance float32, vector []float32, err error)

// PromoteLevel drains pre via the Pull/Emit pattern spec.md §4.7 step 3
// describes, keeping the k=capacity best (smallest exact distance)
// promotions, and returns them sorted ascending by distance.
func PromoteLevel(ctx context.Context, pre Prefetcher, capacity int, exact ExactFn) ([]Promoted, error) {
	cache := &boundedCache{capacity: capacity}
	for {
		it, ok := pre.PopIf(func(lb float32) bool { return lb < cache.worst() })
		if !ok {
			break
		}
		dist, vec, err := exact(ctx, it)
		if err != nil {
			return nil, err
		}
		cache.offer(Promoted{
			Distance:   dist,
			Payload:    it.payload,
			ChildFirst: it.childFirst,
			Centroid:   it.centroid,
			Vector:     vec,
		})
	}
	out := make([]Promoted, len(cache.items))
	// Pop in ascending order (max-heap pops largest first, so fill back to front).
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(cache).(Promoted)
	}
	return out, nil
}

// unboundedMinCache is a plain min-heap over Distance, used by Reranker to
// hold every exact distance pulled so far until it is safe to emit.
type unboundedMinCache []Promoted

func (c unboundedMinCache) Len() int            { return len(c) }
func (c unboundedMinCache) Less(i, j int) bool  { return c[i].Distance < c[j].Distance }
func (c unboundedMinCache) Swap(i, j int)       { c[i], c[j] = c[j], c[i] }
func (c *unboundedMinCache) Push(x interface{}) { *c = append(*c, x.(Promoted)) }
func (c *unboundedMinCache) Pop() interface{} {
	old := *c
	n := len(old)
	it := old[n-1]
	*c = old[:n-1]
	return it
}

// Reranker drives spec.md §4.7.2's Pull/Emit state machine over the final
// leaf-level candidate stream, guaranteeing non-decreasing output distance.
type Reranker struct {
	pre   Prefetcher
	cache unboundedMinCache
	exact ExactFn
}

func NewReranker(pre Prefetcher, exact ExactFn) *Reranker {
	return &Reranker{pre: pre, exact: exact}
}

// pull materializes exact distances for every queued candidate whose lower
// bound is still smaller than the best (smallest) distance resolved so
// far — such a candidate could still beat it.
func (r *Reranker) pull(ctx context.Context) error {
	for {
		bound := float32Inf
		if len(r.cache) > 0 {
			bound = r.cache[0].Distance
		}
		it, ok := r.pre.PopIf(func(lb float32) bool { return lb < bound })
		if !ok {
			return nil
		}
		dist, vec, err := r.exact(ctx, it)
		if err != nil {
			return err
		}
		heap.Push(&r.cache, Promoted{Distance: dist, Payload: it.payload, Centroid: it.centroid, ChildFirst: it.childFirst, Vector: vec})
	}
}

// Next pulls until either the prefetcher is exhausted or its smallest
// remaining lower bound is >= the cache's smallest distance (the
// emit-safety invariant), then emits that distance. Returns ok=false once
// both the prefetcher and cache are drained.
func (r *Reranker) Next(ctx context.Context) (Promoted, bool, error) {
	if err := r.pull(ctx); err != nil {
		return Promoted{}, false, err
	}
	if len(r.cache) == 0 {
		return Promoted{}, false, nil
	}
	return heap.Pop(&r.cache).(Promoted), true, nil
}

// Finish returns the remaining prefetcher and cached-but-unemitted
// candidates, per spec.md §4.7.2's finish(), for multi-probe continuation.
func (r *Reranker) Finish() (Prefetcher, []Promoted) {
	rest := make([]Promoted, len(r.cache))
	copy(rest, r.cache)
	return r.pre, rest
}
