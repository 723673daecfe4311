// Package insert implements spec.md §4.6 (C7): rotate, descend the
// centroid tree by exact rerank of RaBitQ-lower-bound-promoted candidates,
// encode the (possibly residual) leaf code, and append both the
// full-precision vector and its H0 slot.
//
// Grounded on spec.md §4.6's six-step algorithm; the heap-based "collect
// candidates, pop closest, exact-rerank" shape mirrors the descent loop
// internal/search implements for multi-candidate beams, specialized here
// to a single-candidate descent.
package insert

import (
	"container/heap"
	"context"

	"github.com/arx-os/vecindex/internal/codec"
	"github.com/arx-os/vecindex/internal/common/logger"
	"github.com/arx-os/vecindex/internal/relation"
	"github.com/arx-os/vecindex/internal/tuple"
	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// DescentEps is the lower-bound confidence multiplier used while
// descending the tree during insert, per spec.md §4.6 step 3.
const DescentEps = 1.9

var log = logger.With("component", "insert")

// Insert adds (payload, vector) to the index rooted at the relation's
// MetaTuple, following spec.md §4.6's six steps.
func Insert(ctx context.Context, rel relation.Relation, rotator *codec.Rotator, payload uint64, vector []float32) error {
	meta, err := tuple.ReadMeta(ctx, rel)
	if err != nil {
		return err
	}
	if int(meta.Dims) != len(vector) {
		return apperrors.InvalidInput("vector dimensionality mismatch", nil).
			WithDetails("expected", meta.Dims).WithDetails("got", len(vector))
	}

	rotated := rotator.Rotate(vector)
	metricVal := codec.MetricL2
	if meta.Metric == tuple.MetricDot {
		metricVal = codec.MetricDot
	}

	// Step 3: descend levels H-1 down to 1, exact-reranking the single
	// closest candidate at each level.
	curFirst := meta.RootFirst
	curCentroid, _, err := tuple.ReadVectorChain(ctx, rel, meta.RootCentroid)
	if err != nil {
		return err
	}

	for level := int(meta.HeightOfRoot) - 1; level >= 1; level-- {
		next, _, nextCentroid, err := descendOneLevel(ctx, rel, curFirst, curCentroid, rotated, metricVal, meta.IsResidual)
		if err != nil {
			return err
		}
		curFirst, curCentroid = next, nextCentroid
	}

	// The final descent step landed on a JumpTuple page (spec.md §3): the
	// level-1 H1's ChildFirst points at the leaf chain's entry sentinel,
	// not at the H0 chain head itself.
	h0Head, err := resolveJump(ctx, rel, curFirst)
	if err != nil {
		return err
	}

	// Step 4: encode the leaf code, residual-corrected if enabled.
	codeSrc := rotated
	if meta.IsResidual {
		codeSrc = subtract(rotated, curCentroid)
	}
	code := codec.Build(codeSrc)

	// Step 5: append the full-precision vector. Stored rotated, matching
	// the centroids it will be exact-reranked against (rotation preserves
	// distance, so this never affects search correctness).
	vecPtr, err := tuple.WriteVectorChain(ctx, rel, meta.VectorsFirst, payload, rotated)
	if err != nil {
		return err
	}

	// Step 6: append into the leaf (H0) chain.
	if err := appendH0Slot(ctx, rel, h0Head, code, payload, vecPtr, meta.IsResidual); err != nil {
		return err
	}
	log.Debug("inserted payload %d", payload)
	return nil
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

func subtract(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// candidateHeap is a min-heap over lower bounds, used to collect H1 slots
// worth exact-reranking, per spec.md §4.6 step 3.
type candidate struct {
	lowerBound   float32
	centroidPtr  tuple.Pointer
	childFirst   relation.PageID
}
type candidateHeap []candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].lowerBound < h[j].lowerBound }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// descendOneLevel streams the H1 chain rooted at first, lower-bound-filters
// every slot, and exact-reranks candidates (smallest lower bound first)
// until one beats every remaining lower bound, returning its child subtree.
func descendOneLevel(ctx context.Context, rel relation.Relation, first relation.PageID, parentCentroid, rotatedQuery []float32, metric codec.Metric, residual bool) (relation.PageID, tuple.Pointer, []float32, error) {
	var codeSrc []float32
	if residual {
		codeSrc = subtract(rotatedQuery, parentCentroid)
	} else {
		codeSrc = rotatedQuery
	}
	lut := codec.Preprocess(codeSrc)

	var candidates candidateHeap
	page := first
	for page != relation.NoPage {
		g, err := rel.Read(ctx, page)
		if err != nil {
			return relation.NoPage, tuple.Pointer{}, nil, err
		}
		raw, ok := g.Page().Get(1)
		if !ok {
			g.Release()
			return relation.NoPage, tuple.Pointer{}, nil, apperrors.Corruption("h1 tuple slot missing", nil)
		}
		h1, err := tuple.DecodeH1(raw)
		if err != nil {
			g.Release()
			return relation.NoPage, tuple.Pointer{}, nil, err
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
			lb := codec.LowerBound(c, lut, accum, metric, DescentEps)
			heap.Push(&candidates, candidate{lowerBound: lb, centroidPtr: h1.ChildCentroid[i], childFirst: h1.ChildFirst[i]})
		}
		page = next
	}

	if candidates.Len() == 0 {
		return relation.NoPage, tuple.Pointer{}, nil, apperrors.Corruption("internal node has no children", nil)
	}

	var best *candidate
	var bestExact float32
	for candidates.Len() > 0 {
		top := candidates[0]
		if best != nil && top.lowerBound >= bestExact {
			break
		}
		heap.Pop(&candidates)
		centroid, _, err := tuple.ReadVectorChain(ctx, rel, top.centroidPtr)
		if err != nil {
			return relation.NoPage, tuple.Pointer{}, nil, err
		}
		exact := codec.ExactDistance(metric, centroid, rotatedQuery)
		if best == nil || exact < bestExact {
			c := top
			best = &c
			bestExact = exact
		}
	}
	centroid, _, err := tuple.ReadVectorChain(ctx, rel, best.centroidPtr)
	if err != nil {
		return relation.NoPage, tuple.Pointer{}, nil, err
	}
	return best.childFirst, best.centroidPtr, centroid, nil
}

// blockAccumForSlot extracts one candidate's accum value from a packed
// quartet block grid by unpacking just that lane, avoiding a full 32-wide
// fast-scan when only one slot is needed.
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

// appendH0Slot walks the H0 chain starting at h0Head looking for a free slot, allocating a fresh H0 page on
// the chain's tail if every existing page is full.
func appendH0Slot(ctx context.Context, rel relation.Relation, h0Head relation.PageID, code codec.Code, payload uint64, vecPtr tuple.Pointer, residual bool) error {
	page := h0Head
	var lastPage relation.PageID = relation.NoPage
	for page != relation.NoPage {
		g, err := rel.Write(ctx, page, false)
		if err != nil {
			return err
		}
		raw, ok := g.Page().GetMut(1)
		if !ok {
			g.Release()
			return apperrors.Corruption("h0 tuple slot missing", nil)
		}
		h0, err := tuple.DecodeH0(raw)
		if err != nil {
			g.Release()
			return err
		}
		if slot, ok := h0.Codes.FirstFreeSlot(); ok {
			h0.Codes.Count = maxu8(h0.Codes.Count, uint8(slot+1))
			h0.Codes.SetActive(slot, true)
			h0.Codes.DisU2[slot] = code.DisU2
			h0.Codes.FactorIP[slot] = code.FactorIP
			h0.Codes.FactorPPC[slot] = code.FactorPPC
			h0.Codes.FactorErr[slot] = code.FactorErr
			h0.Codes.SetNibble(slot, code.Signs)
			h0.Payload[slot] = payload
			h0.MeanPtr[slot] = vecPtr
			h0.SetResidual(slot, residual)

			copy(raw, h0.Encode())
			g.Release()
			return nil
		}
		next := g.Page().GetOpaque().Next
		g.Release()
		lastPage = page
		page = next
	}

	// Every page in the chain is full: allocate a fresh H0 page and link it.
	fresh, err := rel.Extend(ctx, false)
	if err != nil {
		return err
	}
	h0 := tuple.NewH0(uint32(code.Dims))
	h0.Codes.Count = 1
	h0.Codes.SetActive(0, true)
	h0.Codes.DisU2[0] = code.DisU2
	h0.Codes.FactorIP[0] = code.FactorIP
	h0.Codes.FactorPPC[0] = code.FactorPPC
	h0.Codes.FactorErr[0] = code.FactorErr
	h0.Codes.SetNibble(0, code.Signs)
	h0.Payload[0] = payload
	h0.MeanPtr[0] = vecPtr
	h0.SetResidual(0, residual)
	if _, ok := fresh.Page().Alloc(h0.Encode()); !ok {
		fresh.Release()
		return apperrors.Corruption("h0 tuple does not fit in a fresh page", nil)
	}
	fresh.Release()

	if lastPage == relation.NoPage {
		lastPage = h0Head
	}
	g, err := rel.Write(ctx, lastPage, false)
	if err != nil {
		return err
	}
	defer g.Release()
	op := g.Page().GetOpaque()
	op.Next = fresh.ID()
	g.Page().SetOpaque(op)
	return nil
}

func maxu8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}
