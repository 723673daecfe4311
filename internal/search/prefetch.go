// Package search implements spec.md §4.7 (C8): beam descent through the
// centroid tree with per-level lower-bound pruning, three interchangeable
// prefetch strategies, and a Pull/Emit reranker that guarantees
// non-decreasing exact-distance output.
//
// Grounded on the container/heap priority-queue idiom other_examples'
// hnsw_prq_index.go uses for the same shape of problem (a bounded
// candidate frontier ordered by a score).
package search

import (
	"container/heap"
	"context"

	"github.com/arx-os/vecindex/internal/relation"
	"github.com/arx-os/vecindex/internal/tuple"
)

// item is one pending candidate in a prefetcher: a lower bound plus enough
// identity to resolve its exact distance later (a centroid pointer for
// internal levels, or a payload/mean-pointer pair for leaves).
type item struct {
	lowerBound float32
	seq        int // insertion order, for stable tie-breaking
	centroid   tuple.Pointer
	childFirst relation.PageID
	payload    uint64
	meanPtr    tuple.Pointer
	rawVector  []float32 // precomputed, e.g. by Stream's batched read
}

// itemHeap is a min-heap by lowerBound (smallest lower bound on top),
// ties broken by insertion order.
type itemHeap []item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].lowerBound != h[j].lowerBound {
		return h[i].lowerBound < h[j].lowerBound
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(item)) }
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Prefetcher is the shared interface spec.md §4.7.1 describes: PopIf pops
// the smallest-lowerbound item if predicate accepts its lower bound, else
// leaves the heap untouched and reports ok=false.
type Prefetcher interface {
	// PopIf returns (item, ok). ok is false if the heap is empty or
	// predicate rejects the current minimum.
	PopIf(predicate func(lowerBound float32) bool) (item, bool)
	// Len reports the number of items still queued.
	Len() int
}

// WindowSize bounds the Simple prefetcher's lookahead, per spec.md §4.7.1.
const WindowSize = 32

// PlainPrefetcher is a bare max-... (min-by-lowerbound) heap pop with no
// read-ahead: the reader fetches pages on demand when exact-evaluating.
type PlainPrefetcher struct {
	heap itemHeap
}

func NewPlainPrefetcher(items []item) *PlainPrefetcher {
	h := make(itemHeap, len(items))
	copy(h, items)
	heap.Init(&h)
	return &PlainPrefetcher{heap: h}
}

func (p *PlainPrefetcher) Len() int { return p.heap.Len() }

func (p *PlainPrefetcher) PopIf(predicate func(float32) bool) (item, bool) {
	if p.heap.Len() == 0 {
		return item{}, false
	}
	top := p.heap[0]
	if !predicate(top.lowerBound) {
		return item{}, false
	}
	return heap.Pop(&p.heap).(item), true
}

// SimplePrefetcher maintains a WindowSize lookahead window, issuing
// rel.Prefetch hints for every page a windowed item will touch (its
// centroid page and, for leaves, its mean-pointer page) before popping.
type SimplePrefetcher struct {
	heap      itemHeap
	rel       relation.Relation
	hinted    map[relation.PageID]bool
	internalLevel bool // true when items carry centroid pointers rather than mean pointers
}

func NewSimplePrefetcher(rel relation.Relation, items []item, internalLevel bool) *SimplePrefetcher {
	h := make(itemHeap, len(items))
	copy(h, items)
	heap.Init(&h)
	p := &SimplePrefetcher{heap: h, rel: rel, hinted: make(map[relation.PageID]bool), internalLevel: internalLevel}
	p.primeWindow()
	return p
}

func (p *SimplePrefetcher) primeWindow() {
	n := p.heap.Len()
	if n > WindowSize {
		n = WindowSize
	}
	// heap[0:n] is not a sorted prefix, but it's the right bounded set of
	// "upcoming" items to hint regardless of pop order.
	for i := 0; i < n; i++ {
		it := p.heap[i]
		page := it.centroid.Page
		if !p.internalLevel {
			page = it.meanPtr.Page
		}
		if !p.hinted[page] {
			p.rel.Prefetch(page)
			p.hinted[page] = true
		}
	}
}

func (p *SimplePrefetcher) Len() int { return p.heap.Len() }

func (p *SimplePrefetcher) PopIf(predicate func(float32) bool) (item, bool) {
	if p.heap.Len() == 0 {
		return item{}, false
	}
	top := p.heap[0]
	if !predicate(top.lowerBound) {
		return item{}, false
	}
	popped := heap.Pop(&p.heap).(item)
	p.primeWindow()
	return popped, true
}

// StreamPrefetcher batches exact-distance reads through rel.ReadBatch,
// resolving every queued item's backing vector up front into rawVector so
// later PopIf calls never block on I/O.
type StreamPrefetcher struct {
	heap itemHeap
}

// NewStreamPrefetcher issues one batched read across every item's relevant
// page (centroid pointer for internal levels, mean pointer for leaves),
// attaching each item's resolved vector before priming the heap.
func NewStreamPrefetcher(ctx context.Context, rel relation.Relation, items []item, internalLevel bool) (*StreamPrefetcher, error) {
	ids := make([]relation.PageID, len(items))
	for i, it := range items {
		if internalLevel {
			ids[i] = it.centroid.Page
		} else {
			ids[i] = it.meanPtr.Page
		}
	}
	guards, err := rel.ReadBatch(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, g := range guards {
		g.Release()
	}

	resolved := make([]item, len(items))
	copy(resolved, items)
	for i := range resolved {
		var ptr tuple.Pointer
		if internalLevel {
			ptr = resolved[i].centroid
		} else {
			ptr = resolved[i].meanPtr
		}
		vec, _, err := tuple.ReadVectorChain(ctx, rel, ptr)
		if err != nil {
			return nil, err
		}
		resolved[i].rawVector = vec
	}

	h := make(itemHeap, len(resolved))
	copy(h, resolved)
	heap.Init(&h)
	return &StreamPrefetcher{heap: h}, nil
}

func (p *StreamPrefetcher) Len() int { return p.heap.Len() }

func (p *StreamPrefetcher) PopIf(predicate func(float32) bool) (item, bool) {
	if p.heap.Len() == 0 {
		return item{}, false
	}
	top := p.heap[0]
	if !predicate(top.lowerBound) {
		return item{}, false
	}
	return heap.Pop(&p.heap).(item), true
}

// Strategy selects a Prefetcher variant, per spec.md §4.7's
// `{plain, simple, stream}` selector.
type Strategy int

const (
	Plain Strategy = iota
	Simple
	Stream
)

// NewPrefetcher builds the requested Prefetcher variant over items.
func NewPrefetcher(ctx context.Context, rel relation.Relation, strategy Strategy, items []item, internalLevel bool) (Prefetcher, error) {
	switch strategy {
	case Simple:
		return NewSimplePrefetcher(rel, items, internalLevel), nil
	case Stream:
		return NewStreamPrefetcher(ctx, rel, items, internalLevel)
	default:
		return NewPlainPrefetcher(items), nil
	}
}
