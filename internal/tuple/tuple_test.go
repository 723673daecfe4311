package tuple

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/vecindex/internal/relation"
)

func newTestRelation(t *testing.T) relation.Relation {
	t.Helper()
	rel, err := relation.NewStore(relation.NewMemBackend(), relation.DefaultOptions())
	require.NoError(t, err)
	return rel
}

func TestMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	rel := newTestRelation(t)
	g, err := rel.Extend(ctx, false) // page 0
	require.NoError(t, err)
	g.Release()

	m := Meta{
		Dims:         128,
		HeightOfRoot: 3,
		IsResidual:   true,
		RerankInHeap: false,
		Metric:       MetricDot,
		RootCentroid: Pointer{Page: 1, Slot: 2},
		RootFirst:    5,
		FreepageHead: 6,
		VectorsFirst: 7,
	}
	require.NoError(t, WriteMeta(ctx, rel, m))

	got, err := ReadMeta(ctx, rel)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	// Update in place must not change the slot.
	m.RootFirst = 99
	require.NoError(t, WriteMeta(ctx, rel, m))
	got2, err := ReadMeta(ctx, rel)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), got2.RootFirst)
}

func TestMeta_RejectsBadHeight(t *testing.T) {
	_, err := DecodeMeta(Meta{HeightOfRoot: 9, Dims: 1}.Encode())
	assert.Error(t, err)
}

func TestVectorChain_RoundTripSingleSlice(t *testing.T) {
	ctx := context.Background()
	rel := newTestRelation(t)
	g, err := rel.Extend(ctx, true)
	require.NoError(t, err)
	head := g.ID()
	g.Release()

	elems := []float32{1, 2, 3, 4, 5}
	ptr, err := WriteVectorChain(ctx, rel, head, 42, elems)
	require.NoError(t, err)

	got, payload, err := ReadVectorChain(ctx, rel, ptr)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), payload)
	assert.Equal(t, elems, got)
}

func TestVectorChain_SplitsAcrossTuples(t *testing.T) {
	ctx := context.Background()
	rel := newTestRelation(t)
	g, err := rel.Extend(ctx, true)
	require.NoError(t, err)
	head := g.ID()
	g.Release()

	elems := make([]float32, maxVectorElements*2+10)
	for i := range elems {
		elems[i] = float32(i)
	}
	ptr, err := WriteVectorChain(ctx, rel, head, 7, elems)
	require.NoError(t, err)

	got, payload, err := ReadVectorChain(ctx, rel, ptr)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), payload)
	assert.Equal(t, elems, got)
}

func TestH1RoundTrip(t *testing.T) {
	h := NewH1(16)
	h.Codes.Count = 2
	h.Codes.SetActive(0, true)
	h.Codes.DisU2[0] = 1.5
	h.Codes.FactorIP[0] = 2.5
	h.Codes.SetNibble(0, []uint64{0b1011})
	h.ChildCentroid[0] = Pointer{Page: 3, Slot: 4}
	h.ChildFirst[0] = 9

	got, err := DecodeH1(h.Encode())
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestH0RoundTrip(t *testing.T) {
	h := NewH0(8)
	h.Codes.Count = 1
	h.Codes.SetActive(0, true)
	h.Payload[0] = 123
	h.MeanPtr[0] = Pointer{Page: 1, Slot: 1}
	h.SetResidual(0, true)

	got, err := DecodeH0(h.Encode())
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.True(t, got.IsResidual(0))
	assert.False(t, got.IsResidual(1))
}

func TestJumpRoundTrip(t *testing.T) {
	j := Jump{FirstH0: 77}
	got, err := DecodeJump(j.Encode())
	require.NoError(t, err)
	assert.Equal(t, j, got)
}

func TestCodeBatch_FirstFreeSlot(t *testing.T) {
	b := NewCodeBatch(4)
	b.Count = 2
	b.SetActive(0, true)
	slot, ok := b.FirstFreeSlot()
	require.True(t, ok)
	assert.Equal(t, 1, slot)

	b.SetActive(1, true)
	slot, ok = b.FirstFreeSlot()
	require.True(t, ok)
	assert.Equal(t, 2, slot) // bumps Count
}
