// Package vacuum implements the two-pass dead-row removal spec.md §4.8
// (C9) describes: pass 1 walks the full tree to level 0, dropping dead
// slots from every H0 batch in place; pass 2 walks the VectorTuple chain,
// freeing the slices belonging to dead rows and returning any VectorTuple
// page that becomes fully empty (and is not the chain head) to the
// freepage allocator.
//
// Grounded on spec.md §4.8's two-pass algorithm directly; the page-level
// primitives it drives (CodeBatch.SetActive, page.Page.Free/IsEmpty) were
// built into internal/tuple and internal/page specifically for this pass,
// per their own doc comments.
package vacuum

import (
	"context"

	"github.com/arx-os/vecindex/internal/common/logger"
	"github.com/arx-os/vecindex/internal/freepage"
	"github.com/arx-os/vecindex/internal/relation"
	"github.com/arx-os/vecindex/internal/tuple"
	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

var log = logger.With("component", "vacuum")

// IsDead reports whether payload no longer has a live row in the host
// heap, per spec.md §4.8's `is_dead(payload) -> bool` callback.
type IsDead func(payload uint64) bool

// Stats summarizes one Run.
type Stats struct {
	SlotsFreed        int // H0 code slots dropped in pass 1
	VectorSlicesFreed int // VectorTuple slices freed in pass 2
	PagesFreed        int // fully-emptied VectorTuple pages returned to freepage
}

// Options configures one vacuum run.
type Options struct {
	IsDead IsDead
	// Yield is an optional cooperation point called at page boundaries,
	// per spec.md §4.8's "periodically yields to the host's vacuum delay
	// point". Returning an error aborts the run (e.g. on interrupt).
	Yield func(ctx context.Context) error
}

func (o Options) yield(ctx context.Context) error {
	if o.Yield == nil {
		return nil
	}
	return o.Yield(ctx)
}

// Run performs both passes against the relation's current MetaTuple.
func Run(ctx context.Context, rel relation.Relation, opts Options) (Stats, error) {
	if opts.IsDead == nil {
		return Stats{}, apperrors.InvalidInput("vacuum requires IsDead", nil)
	}
	meta, err := tuple.ReadMeta(ctx, rel)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	if err := pass1(ctx, rel, meta, opts, &stats); err != nil {
		return stats, err
	}
	if err := pass2(ctx, rel, meta, opts, &stats); err != nil {
		return stats, err
	}
	log.Info("vacuum complete: %d h0 slots, %d vector slices, %d pages freed", stats.SlotsFreed, stats.VectorSlicesFreed, stats.PagesFreed)
	return stats, nil
}

// pass1 walks every internal level, unfiltered (unlike search/insert's
// beam descent, vacuum must visit every child), down to every Jump->H0
// chain, dropping dead slots in place. The freepage bitmap is not touched
// here, per spec.md §4.8.
func pass1(ctx context.Context, rel relation.Relation, meta tuple.Meta, opts Options, stats *Stats) error {
	if meta.HeightOfRoot == 1 {
		// No internal levels: RootFirst is itself the root's Jump sentinel,
		// matching internal/search's Search when it skips descendLevel
		// entirely for a single-level tree.
		h0Head, err := resolveJump(ctx, rel, meta.RootFirst)
		if err != nil {
			return err
		}
		return vacuumH0Chain(ctx, rel, h0Head, opts, stats)
	}
	return walkInternal(ctx, rel, meta.RootFirst, int(meta.HeightOfRoot)-1, opts, stats)
}

// walkInternal vacuums one H1 chain at level, recursing into every active
// child (level > 1) or vacuuming its Jump->H0 chain (level == 1).
func walkInternal(ctx context.Context, rel relation.Relation, first relation.PageID, level int, opts Options, stats *Stats) error {
	page := first
	for page != relation.NoPage {
		g, err := rel.Read(ctx, page)
		if err != nil {
			return err
		}
		raw, ok := g.Page().Get(1)
		if !ok {
			g.Release()
			return apperrors.Corruption("h1 tuple slot missing", nil)
		}
		h1, err := tuple.DecodeH1(raw)
		if err != nil {
			g.Release()
			return err
		}
		next := g.Page().GetOpaque().Next
		g.Release()

		for i := 0; i < int(h1.Codes.Count); i++ {
			if !h1.Codes.IsActive(i) {
				continue
			}
			child := h1.ChildFirst[i]
			if level == 1 {
				h0Head, err := resolveJump(ctx, rel, child)
				if err != nil {
					return err
				}
				if err := vacuumH0Chain(ctx, rel, h0Head, opts, stats); err != nil {
					return err
				}
			} else if err := walkInternal(ctx, rel, child, level-1, opts, stats); err != nil {
				return err
			}
		}

		page = next
		if err := opts.yield(ctx); err != nil {
			return err
		}
	}
	return nil
}

// vacuumH0Chain write-locks every page in the H0 chain rooted at head and
// drops any slot whose payload is dead, preserving numbering of the
// slots that survive.
func vacuumH0Chain(ctx context.Context, rel relation.Relation, head relation.PageID, opts Options, stats *Stats) error {
	page := head
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
		next := g.Page().GetOpaque().Next

		freed := 0
		for i := 0; i < int(h0.Codes.Count); i++ {
			if h0.Codes.IsActive(i) && opts.IsDead(h0.Payload[i]) {
				h0.Codes.SetActive(i, false)
				freed++
			}
		}
		if freed > 0 {
			copy(raw, h0.Encode())
			stats.SlotsFreed += freed
		}
		g.Release()

		page = next
		if err := opts.yield(ctx); err != nil {
			return err
		}
	}
	return nil
}

// pass2 walks the VectorTuple page chain rooted at meta.VectorsFirst,
// freeing every slice belonging to a dead-payload vector, then marks any
// page that became fully empty (and isn't the chain head) into the
// freepage bitmap, per spec.md §4.8.
func pass2(ctx context.Context, rel relation.Relation, meta tuple.Meta, opts Options, stats *Stats) error {
	pages, err := collectChainPages(ctx, rel, meta.VectorsFirst)
	if err != nil {
		return err
	}

	for _, pg := range pages {
		var deadHeads []tuple.Pointer
		g, err := rel.Read(ctx, pg)
		if err != nil {
			return err
		}
		n := g.Page().Len()
		for slot := 1; slot <= n; slot++ {
			raw, ok := g.Page().Get(slot)
			if !ok {
				continue
			}
			v, err := tuple.DecodeVector(raw)
			if err != nil {
				g.Release()
				return err
			}
			if v.Payload != 0 && opts.IsDead(v.Payload) {
				deadHeads = append(deadHeads, tuple.Pointer{Page: pg, Slot: uint16(slot)})
			}
		}
		g.Release()

		for _, head := range deadHeads {
			freed, err := freeVectorChain(ctx, rel, head)
			if err != nil {
				return err
			}
			stats.VectorSlicesFreed += freed
		}
		if err := opts.yield(ctx); err != nil {
			return err
		}
	}

	for _, pg := range pages {
		if pg == meta.VectorsFirst {
			continue
		}
		g, err := rel.Read(ctx, pg)
		if err != nil {
			return err
		}
		empty := g.Page().IsEmpty()
		g.Release()
		if !empty {
			continue
		}
		if err := freepage.Mark(ctx, rel, meta.FreepageHead, []uint32{pg}); err != nil {
			return err
		}
		stats.PagesFreed++
	}
	return nil
}

// freeVectorChain frees every slice of the vector whose head is at head,
// following its Next pointers across pages, returning the slice count.
func freeVectorChain(ctx context.Context, rel relation.Relation, head tuple.Pointer) (int, error) {
	count := 0
	cur := head
	for {
		g, err := rel.Write(ctx, cur.Page, false)
		if err != nil {
			return count, err
		}
		raw, ok := g.Page().Get(int(cur.Slot))
		if !ok {
			g.Release()
			return count, apperrors.Corruption("vector tuple slot missing", nil)
		}
		v, err := tuple.DecodeVector(raw)
		if err != nil {
			g.Release()
			return count, err
		}
		g.Page().Free(int(cur.Slot))
		g.Release()
		count++
		if !v.HasNext {
			return count, nil
		}
		cur = v.Next
	}
}

// collectChainPages walks the fast-forward chain rooted at head, in
// order, returning every page id visited.
func collectChainPages(ctx context.Context, rel relation.Relation, head relation.PageID) ([]relation.PageID, error) {
	var pages []relation.PageID
	cur := head
	for cur != relation.NoPage {
		pages = append(pages, cur)
		g, err := rel.Read(ctx, cur)
		if err != nil {
			return nil, err
		}
		next := g.Page().GetOpaque().FastForward
		g.Release()
		cur = next
	}
	return pages, nil
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
