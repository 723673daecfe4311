package search

import (
	"context"

	"github.com/arx-os/vecindex/internal/relation"
	"github.com/arx-os/vecindex/internal/tuple"
	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// Prewarm walks every internal-node (H1) page reachable from the root and
// releases it immediately, relying on the Relation's own page cache (see
// relation.Prefetch) to retain what it reads. It touches nothing at level
// 0: leaf chains dominate a cold index's page count and rarely all fit in
// cache, so warming them would just thrash it back cold.
//
// This lives in internal/search rather than internal/relation (as a
// literal reading of a "relation.Prewarm" helper might suggest) because
// walking the H1 chain requires decoding tuple.H1, and internal/tuple
// already imports internal/relation — this package already depends on
// both, so it is the natural home without an import cycle.
func Prewarm(ctx context.Context, rel relation.Relation) error {
	meta, err := tuple.ReadMeta(ctx, rel)
	if err != nil {
		return err
	}
	if meta.HeightOfRoot < 2 {
		return nil // no internal levels above the leaf jump pages
	}
	frontier := []relation.PageID{meta.RootFirst}
	for level := int(meta.HeightOfRoot) - 1; level >= 1; level-- {
		var next []relation.PageID
		for _, head := range frontier {
			children, err := prewarmChain(ctx, rel, head)
			if err != nil {
				return err
			}
			next = append(next, children...)
		}
		frontier = next
	}
	return nil
}

// prewarmChain reads every page in the H1 chain rooted at head, returning
// the ChildFirst pointer of every active slot across the whole chain.
func prewarmChain(ctx context.Context, rel relation.Relation, head relation.PageID) ([]relation.PageID, error) {
	var children []relation.PageID
	page := head
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
			if h1.Codes.IsActive(i) {
				children = append(children, h1.ChildFirst[i])
			}
		}
		page = next
	}
	return children, nil
}
