package freepage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/vecindex/internal/relation"
)

func newHead(t *testing.T) (relation.Relation, relation.PageID) {
	t.Helper()
	rel, err := relation.NewStore(relation.NewMemBackend(), relation.DefaultOptions())
	require.NoError(t, err)
	g, err := rel.Extend(context.Background(), false)
	require.NoError(t, err)
	head := g.ID()
	g.Release()
	return rel, head
}

func TestMarkFetch_AscendingOrder(t *testing.T) {
	ctx := context.Background()
	rel, head := newHead(t)

	pages := []uint32{100, 200, 35000, 35001, 65600}
	require.NoError(t, Mark(ctx, rel, head, pages))

	var got []uint32
	for {
		p, ok, err := Fetch(ctx, rel, head)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, p)
	}
	assert.Equal(t, []uint32{100, 200, 35000, 35001, 65600}, got)

	_, ok, err := Fetch(ctx, rel, head)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMark_Idempotent(t *testing.T) {
	ctx := context.Background()
	rel, head := newHead(t)
	pages := []uint32{5, 40000, 70000}

	require.NoError(t, Mark(ctx, rel, head, pages))
	require.NoError(t, Mark(ctx, rel, head, pages))

	var got []uint32
	for {
		p, ok, err := Fetch(ctx, rel, head)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, p)
	}
	assert.Equal(t, []uint32{5, 40000, 70000}, got)
}

func TestBitmap_MarkFetchClear(t *testing.T) {
	var bm Bitmap
	bm.Mark(3)
	bm.Mark(70000 % WindowSize)
	i, ok := bm.Fetch()
	assert.True(t, ok)
	assert.Equal(t, uint32(3), i)
	i, ok = bm.Fetch()
	assert.True(t, ok)
	assert.Equal(t, uint32(70000%WindowSize), i)
	_, ok = bm.Fetch()
	assert.False(t, ok)
}
