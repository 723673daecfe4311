package build

import (
	"context"

	"github.com/arx-os/vecindex/internal/codec"
	"github.com/arx-os/vecindex/internal/common/logger"
	"github.com/arx-os/vecindex/internal/relation"
	"github.com/arx-os/vecindex/internal/tuple"
	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// materializer writes a clustered tree of Squares into rel, following
// spec.md §4.5's five-step materialization order.
type materializer struct {
	rel  relation.Relation
	opts Options
	log  *logger.Logger
}

// childDesc is one entry destined for an H1Tuple slot: a child cluster's
// code (relative to its parent when residual mode is on), its centroid
// pointer, and the first page of its own subtree.
type childDesc struct {
	code        codec.Code
	centroidPtr tuple.Pointer
	firstPage   relation.PageID
}

func (m *materializer) run(ctx context.Context, levels []level, leafSamples [][]float32, leafPayloads []uint64) error {
	_ = leafPayloads // leaf data is populated by insert, not build; see spec.md §4.5 step 4.

	// Step 1: MetaTuple page, freepage head, vectors head.
	metaGuard, err := m.rel.Extend(ctx, false)
	if err != nil {
		return err
	}
	if metaGuard.ID() != tuple.MetaPage {
		metaGuard.Release()
		return apperrors.Corruption("expected meta tuple on a fresh relation's first page", nil).
			WithDetails("got_page", metaGuard.ID())
	}
	metaGuard.Release()

	freepageGuard, err := m.rel.Extend(ctx, false)
	if err != nil {
		return err
	}
	freepageHead := freepageGuard.ID()
	freepageGuard.Release()

	vectorsGuard, err := m.rel.Extend(ctx, true)
	if err != nil {
		return err
	}
	vectorsHead := vectorsGuard.ID()
	vectorsGuard.Release()
	if linker, ok := m.rel.(interface {
		LinkChainHead(relation.PageID)
	}); ok {
		linker.LinkChainHead(vectorsHead)
	}

	// Step 2: serialize every centroid across every level.
	centroidPtr := make([][]tuple.Pointer, len(levels))
	for li, lv := range levels {
		centroidPtr[li] = make([]tuple.Pointer, lv.sq.Count)
		for c := 0; c < lv.sq.Count; c++ {
			ptr, err := tuple.WriteVectorChain(ctx, m.rel, vectorsHead, 0, lv.sq.At(c))
			if err != nil {
				return err
			}
			centroidPtr[li][c] = ptr
		}
	}

	// Step 3/4: bottom-up, level 0 gets Jump+empty-H0 subtrees; every
	// level above gets one H1 chain per cluster describing its children.
	firstPage := make([][]relation.PageID, len(levels))
	firstPage[0] = make([]relation.PageID, levels[0].sq.Count)
	for c := 0; c < levels[0].sq.Count; c++ {
		jumpPage, err := m.writeJumpAndEmptyH0(ctx)
		if err != nil {
			return err
		}
		firstPage[0][c] = jumpPage
	}

	for li := 1; li < len(levels); li++ {
		lv := levels[li]
		parentMean := func(c int) []float32 { return lv.sq.At(c) }
		firstPage[li] = make([]relation.PageID, lv.sq.Count)
		for c := 0; c < lv.sq.Count; c++ {
			children := make([]childDesc, 0, len(lv.children[c]))
			for _, childIdx := range lv.children[c] {
				childVec := levels[li-1].sq.At(childIdx)
				var codeSrc []float32
				if m.opts.Residual {
					codeSrc = subtract(childVec, parentMean(c))
				} else {
					codeSrc = childVec
				}
				children = append(children, childDesc{
					code:        codec.Build(codeSrc),
					centroidPtr: centroidPtr[li-1][childIdx],
					firstPage:   firstPage[li-1][childIdx],
				})
			}
			head, err := m.writeH1Chain(ctx, children)
			if err != nil {
				return err
			}
			firstPage[li][c] = head
		}
	}

	// Step 5: finalize MetaTuple.
	last := len(levels) - 1
	meta := tuple.Meta{
		Dims:         m.opts.Dims,
		HeightOfRoot: uint8(len(levels)),
		IsResidual:   m.opts.Residual,
		RerankInHeap: false,
		Metric:       m.opts.Metric,
		RootCentroid: centroidPtr[last][0],
		RootFirst:    firstPage[last][0],
		FreepageHead: freepageHead,
		VectorsFirst: vectorsHead,
	}
	return tuple.WriteMeta(ctx, m.rel, meta)
}

func subtract(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// writeJumpAndEmptyH0 allocates a JumpTuple page pointing to a fresh,
// empty H0 chain head, per spec.md §4.5 step 4.
func (m *materializer) writeJumpAndEmptyH0(ctx context.Context) (relation.PageID, error) {
	h0Guard, err := m.rel.Extend(ctx, true)
	if err != nil {
		return relation.NoPage, err
	}
	h0Page := h0Guard.ID()
	empty := tuple.NewH0(m.opts.Dims)
	if _, ok := h0Guard.Page().Alloc(empty.Encode()); !ok {
		h0Guard.Release()
		return relation.NoPage, apperrors.Corruption("empty h0 tuple does not fit in a fresh page", nil)
	}
	h0Guard.Release()
	if linker, ok := m.rel.(interface {
		LinkChainHead(relation.PageID)
	}); ok {
		linker.LinkChainHead(h0Page)
	}

	jumpGuard, err := m.rel.Extend(ctx, false)
	if err != nil {
		return relation.NoPage, err
	}
	jumpPage := jumpGuard.ID()
	j := tuple.Jump{FirstH0: h0Page}
	if _, ok := jumpGuard.Page().Alloc(j.Encode()); !ok {
		jumpGuard.Release()
		return relation.NoPage, apperrors.Corruption("jump tuple does not fit in a fresh page", nil)
	}
	jumpGuard.Release()
	return jumpPage, nil
}

// writeH1Chain writes children in batches of tuple.MaxBatch, chaining
// pages via the opaque Next field, and returns the chain's head page.
func (m *materializer) writeH1Chain(ctx context.Context, children []childDesc) (relation.PageID, error) {
	if len(children) == 0 {
		g, err := m.rel.Extend(ctx, false)
		if err != nil {
			return relation.NoPage, err
		}
		h := tuple.NewH1(m.opts.Dims)
		if _, ok := g.Page().Alloc(h.Encode()); !ok {
			g.Release()
			return relation.NoPage, apperrors.Corruption("empty h1 tuple does not fit in a fresh page", nil)
		}
		id := g.ID()
		g.Release()
		return id, nil
	}

	var head relation.PageID = relation.NoPage
	var prevPage relation.PageID = relation.NoPage
	for start := 0; start < len(children); start += tuple.MaxBatch {
		end := start + tuple.MaxBatch
		if end > len(children) {
			end = len(children)
		}
		batch := children[start:end]

		h := tuple.NewH1(m.opts.Dims)
		h.Codes.Count = uint8(len(batch))
		for i, cd := range batch {
			h.Codes.SetActive(i, true)
			h.Codes.DisU2[i] = cd.code.DisU2
			h.Codes.FactorIP[i] = cd.code.FactorIP
			h.Codes.FactorPPC[i] = cd.code.FactorPPC
			h.Codes.FactorErr[i] = cd.code.FactorErr
			h.Codes.SetNibble(i, cd.code.Signs)
			h.ChildCentroid[i] = cd.centroidPtr
			h.ChildFirst[i] = cd.firstPage
		}

		g, err := m.rel.Extend(ctx, false)
		if err != nil {
			return relation.NoPage, err
		}
		if _, ok := g.Page().Alloc(h.Encode()); !ok {
			g.Release()
			return relation.NoPage, apperrors.Corruption("h1 tuple does not fit in a fresh page", nil)
		}
		id := g.ID()
		if head == relation.NoPage {
			head = id
		}
		g.Release()

		if prevPage != relation.NoPage {
			if err := m.linkNext(ctx, prevPage, id); err != nil {
				return relation.NoPage, err
			}
		}
		prevPage = id
	}
	return head, nil
}

func (m *materializer) linkNext(ctx context.Context, from, to relation.PageID) error {
	g, err := m.rel.Write(ctx, from, false)
	if err != nil {
		return err
	}
	defer g.Release()
	op := g.Page().GetOpaque()
	op.Next = to
	g.Page().SetOpaque(op)
	return nil
}
