package search

import (
	"context"

	"github.com/arx-os/vecindex/internal/codec"
	"github.com/arx-os/vecindex/internal/common/logger"
	"github.com/arx-os/vecindex/internal/relation"
	"github.com/arx-os/vecindex/internal/tuple"
	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

var log = logger.With("component", "search")

// RerankStrategy selects how level-0 exact distances are computed, per
// spec.md §4.7's Index|Heap selector.
type RerankStrategy int

const (
	RerankIndex RerankStrategy = iota // read the stored vector via the H0 slot's mean pointer
	RerankHeap                        // re-fetch the original vector from the host's external heap by payload
)

// HeapFetch resolves a payload to its original (unrotated) vector from the
// host's external heap, used only by RerankHeap.
type HeapFetch func(ctx context.Context, payload uint64) ([]float32, error)

// Options configures one Search call, per spec.md §4.7's input list.
type Options struct {
	Probes        []int // per-level beam width: Probes[L-1] is used at internal level L (1..H-1)
	Eps           float64
	MaxScanTuples int // 0 means unbounded
	Radius        *float32
	Prefetch      Strategy
	Rerank        RerankStrategy
	HeapFetch     HeapFetch // required when Rerank == RerankHeap
}

// Result is one emitted (distance, payload) pair.
type Result struct {
	Distance float32
	Payload  uint64
}

// Cursor is the lazy, non-decreasing-distance result sequence spec.md
// §4.7 describes. Next returns ok=false once exhausted or a Radius/
// MaxScanTuples stopping condition is hit.
type Cursor struct {
	reranker      *Reranker
	radius        *float32
	maxScan       int
	scanned       int
	done          bool
}

// Next advances the cursor. It is safe to call after done; it keeps
// returning ok=false.
func (c *Cursor) Next(ctx context.Context) (Result, bool, error) {
	if c.done {
		return Result{}, false, nil
	}
	if c.maxScan > 0 && c.scanned >= c.maxScan {
		c.done = true
		return Result{}, false, nil
	}
	p, ok, err := c.reranker.Next(ctx)
	if err != nil {
		return Result{}, false, err
	}
	if !ok {
		c.done = true
		return Result{}, false, nil
	}
	c.scanned++
	if c.radius != nil && p.Distance >= *c.radius {
		c.done = true
		return Result{}, false, nil
	}
	return Result{Distance: p.Distance, Payload: p.Payload}, true, nil
}

// Search rotates q, descends the tree per spec.md §4.7, and returns a
// Cursor over leaf candidates in ascending exact distance.
func Search(ctx context.Context, rel relation.Relation, rotator *codec.Rotator, query []float32, opts Options) (*Cursor, error) {
	meta, err := tuple.ReadMeta(ctx, rel)
	if err != nil {
		return nil, err
	}
	if int(meta.Dims) != len(query) {
		return nil, apperrors.InvalidInput("query dimensionality mismatch", nil).
			WithDetails("expected", meta.Dims).WithDetails("got", len(query))
	}
	if len(opts.Probes)+1 != int(meta.HeightOfRoot) {
		return nil, apperrors.InvalidInput("probes length must equal height_of_root-1", nil).
			WithDetails("probes_len", len(opts.Probes)).WithDetails("height_of_root", meta.HeightOfRoot)
	}
	if opts.Rerank == RerankHeap && opts.HeapFetch == nil {
		return nil, apperrors.InvalidInput("heap rerank requires HeapFetch", nil)
	}

	metricVal := codec.MetricL2
	if meta.Metric == tuple.MetricDot {
		metricVal = codec.MetricDot
	}
	rotated := rotator.Rotate(query)

	rootCentroid, _, err := tuple.ReadVectorChain(ctx, rel, meta.RootCentroid)
	if err != nil {
		return nil, err
	}
	frontier := []Promoted{{ChildFirst: meta.RootFirst, Centroid: meta.RootCentroid, Vector: rootCentroid}}

	// Internal levels H-1 .. 1.
	for level := int(meta.HeightOfRoot) - 1; level >= 1; level-- {
		probe := opts.Probes[level-1]
		next, err := descendLevel(ctx, rel, frontier, rotated, metricVal, meta.IsResidual, opts.Eps, probe, opts.Prefetch)
		if err != nil {
			return nil, err
		}
		frontier = next
	}

	// Level 0: gather leaf items from every surviving cluster's Jump->H0 chain.
	items, err := collectLeafItems(ctx, rel, frontier, rotated, metricVal, meta.IsResidual, opts.Eps)
	if err != nil {
		return nil, err
	}
	pre, err := NewPrefetcher(ctx, rel, opts.Prefetch, items, false)
	if err != nil {
		return nil, err
	}

	exact := leafExactFn(ctx, rel, rotator, rotated, metricVal, opts.Rerank, opts.HeapFetch)
	reranker := NewReranker(pre, exact)
	log.Debug("search descended %d levels, %d leaf items queued", int(meta.HeightOfRoot)-1, len(items))
	return &Cursor{reranker: reranker, radius: opts.Radius, maxScan: opts.MaxScanTuples}, nil
}

// descendLevel streams every frontier candidate's H1 chain, lower-bound
// scores every slot into one shared pool, and keeps the probe-best exact
// promotions, per spec.md §4.7 step 3.
func descendLevel(ctx context.Context, rel relation.Relation, frontier []Promoted, rotatedQuery []float32, metric codec.Metric, residual bool, eps float64, probe int, strategy Strategy) ([]Promoted, error) {
	var items []item
	seq := 0
	for _, cand := range frontier {
		codeSrc := rotatedQuery
		if residual {
			codeSrc = subtract(rotatedQuery, cand.Vector)
		}
		lut := codec.Preprocess(codeSrc)

		page := cand.ChildFirst
		for page != relation.NoPage {
			g, err := rel.Read(ctx, page)
			if err != nil {
				return nil, err
			}
			raw, ok := g.Page().Get(1)
			if !ok {
				g.Release()
				return nil, apperrors.Corruption("h1 tuple slot missing", nil)
			}
			h1, err := tuple.DecodeH1(raw)
			if err != nil {
				g.Release()
				return nil, err
			}
			next := g.Page().GetOpaque().Next
			g.Release()

			for i := 0; i < int(h1.Codes.Count); i++ {
				if !h1.Codes.IsActive(i) {
					continue
				}
				c := codec.Code{
					Dims:      int(h1.Codes.Dims),
					DisU2:     h1.Codes.DisU2[i],
					FactorIP:  h1.Codes.FactorIP[i],
					FactorPPC: h1.Codes.FactorPPC[i],
					FactorErr: h1.Codes.FactorErr[i],
				}
				accum := blockAccumForSlot(h1.Codes.Blocks, lut, i)
				lb := codec.LowerBound(c, lut, accum, metric, eps)
				items = append(items, item{
					lowerBound: lb,
					seq:        seq,
					centroid:   h1.ChildCentroid[i],
					childFirst: h1.ChildFirst[i],
				})
				seq++
			}
			page = next
		}
	}

	pre, err := NewPrefetcher(ctx, rel, strategy, items, true)
	if err != nil {
		return nil, err
	}
	exact := func(ctx context.Context, it item) (float32, []float32, error) {
		var vec []float32
		var err error
		if it.rawVector != nil {
			vec = it.rawVector
		} else {
			vec, _, err = tuple.ReadVectorChain(ctx, rel, it.centroid)
			if err != nil {
				return 0, nil, err
			}
		}
		// Centroids are stored in absolute rotated space regardless of
		// residual mode (only their codes are residual-corrected), so the
		// exact distance always compares against the absolute query.
		d := codec.ExactDistance(metric, vec, rotatedQuery)
		return d, vec, nil
	}
	return PromoteLevel(ctx, pre, probe, exact)
}

// collectLeafItems reads every surviving cluster's Jump sentinel and
// streams its H0 chain into scoreable items, per spec.md §4.7 step 4.
func collectLeafItems(ctx context.Context, rel relation.Relation, frontier []Promoted, rotatedQuery []float32, metric codec.Metric, residual bool, eps float64) ([]item, error) {
	var items []item
	seq := 0
	for _, cand := range frontier {
		codeSrc := rotatedQuery
		if residual {
			codeSrc = subtract(rotatedQuery, cand.Vector)
		}
		lut := codec.Preprocess(codeSrc)

		h0Head, err := resolveJump(ctx, rel, cand.ChildFirst)
		if err != nil {
			return nil, err
		}

		page := h0Head
		for page != relation.NoPage {
			g, err := rel.Read(ctx, page)
			if err != nil {
				return nil, err
			}
			raw, ok := g.Page().Get(1)
			if !ok {
				g.Release()
				return nil, apperrors.Corruption("h0 tuple slot missing", nil)
			}
			h0, err := tuple.DecodeH0(raw)
			if err != nil {
				g.Release()
				return nil, err
			}
			next := g.Page().GetOpaque().Next
			g.Release()

			for i := 0; i < int(h0.Codes.Count); i++ {
				if !h0.Codes.IsActive(i) {
					continue
				}
				c := codec.Code{
					Dims:      int(h0.Codes.Dims),
					DisU2:     h0.Codes.DisU2[i],
					FactorIP:  h0.Codes.FactorIP[i],
					FactorPPC: h0.Codes.FactorPPC[i],
					FactorErr: h0.Codes.FactorErr[i],
				}
				accum := blockAccumForSlot(h0.Codes.Blocks, lut, i)
				lb := codec.LowerBound(c, lut, accum, metric, eps)
				items = append(items, item{
					lowerBound: lb,
					seq:        seq,
					payload:    h0.Payload[i],
					meanPtr:    h0.MeanPtr[i],
				})
				seq++
			}
			page = next
		}
	}
	return items, nil
}

// leafExactFn builds the Index- or Heap-rerank exact-distance function for
// level-0 candidates. Heap-fetched vectors come back in the host's
// original (unrotated) space and must be rotated before comparison,
// matching the rotated representation Index rerank reads directly.
func leafExactFn(ctx context.Context, rel relation.Relation, rotator *codec.Rotator, rotatedQuery []float32, metric codec.Metric, strategy RerankStrategy, fetch HeapFetch) ExactFn {
	return func(ctx context.Context, it item) (float32, []float32, error) {
		var vec []float32
		var err error
		switch {
		case it.rawVector != nil:
			vec = it.rawVector
		case strategy == RerankHeap:
			var original []float32
			original, err = fetch(ctx, it.payload)
			if err == nil {
				vec = rotator.Rotate(original)
			}
		default:
			vec, _, err = tuple.ReadVectorChain(ctx, rel, it.meanPtr)
		}
		if err != nil {
			return 0, nil, err
		}
		d := codec.ExactDistance(metric, vec, rotatedQuery)
		return d, vec, nil
	}
}

func subtract(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// blockAccumForSlot extracts one candidate's accum value from a packed
// quartet block grid by unpacking just that lane.
func blockAccumForSlot(blocks [][2]uint64, lut codec.QueryLUT, slot int) uint32 {
	var total uint32
	for q, block := range blocks {
		bitIdx := slot * 4
		word, shift := bitIdx/64, uint(bitIdx%64)
		nibble := uint8((block[word] >> shift) & 0xF)
		total += uint32(lut.BlockLUT[q][nibble])
	}
	return total
}

// resolveJump reads the JumpTuple at page and returns its H0 chain head.
func resolveJump(ctx context.Context, rel relation.Relation, page relation.PageID) (relation.PageID, error) {
	g, err := rel.Read(ctx, page)
	if err != nil {
		return relation.NoPage, err
	}
	defer g.Release()
	raw, ok := g.Page().Get(1)
	if !ok {
		return relation.NoPage, apperrors.Corruption("jump tuple slot missing", nil)
	}
	j, err := tuple.DecodeJump(raw)
	if err != nil {
		return relation.NoPage, err
	}
	return j.FirstH0, nil
}
