package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyPage(t *testing.T) {
	p := New()
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, Size-headerSize-opaqueSize, p.Freespace())
	op := p.GetOpaque()
	assert.Equal(t, NoPage, op.Next)
	assert.Equal(t, NoPage, op.FastForward)
}

func TestAllocGet(t *testing.T) {
	p := New()
	slot, ok := p.Alloc([]byte("hello"))
	require.True(t, ok)
	assert.Equal(t, 1, slot)

	got, ok := p.Get(slot)
	require.True(t, ok)
	assert.Equal(t, "hello", string(got))
}

func TestAlloc_MultipleSlotsAndFreespace(t *testing.T) {
	p := New()
	start := p.Freespace()
	slot1, _ := p.Alloc([]byte("aaaa"))
	slot2, _ := p.Alloc([]byte("bb"))
	assert.Equal(t, 1, slot1)
	assert.Equal(t, 2, slot2)
	assert.Less(t, p.Freespace(), start)

	v1, _ := p.Get(1)
	v2, _ := p.Get(2)
	assert.Equal(t, "aaaa", string(v1))
	assert.Equal(t, "bb", string(v2))
}

func TestAlloc_DoesNotFit(t *testing.T) {
	p := New()
	_, ok := p.Alloc(make([]byte, Size))
	assert.False(t, ok)
}

func TestAlloc_ExactlyMaxPayload(t *testing.T) {
	p := New()
	slot, ok := p.Alloc(make([]byte, MaxPayload))
	require.True(t, ok)
	assert.Equal(t, 1, slot)
	_, ok = p.Alloc([]byte{0})
	assert.False(t, ok, "no room left for a second slot descriptor")
}

func TestFree_TombstonesSlot(t *testing.T) {
	p := New()
	slot, _ := p.Alloc([]byte("x"))
	p.Free(slot)
	_, ok := p.Get(slot)
	assert.False(t, ok)
	assert.True(t, p.IsEmpty())
}

func TestRebuild_CompactsAndPreservesSlotNumbers(t *testing.T) {
	p := New()
	s1, _ := p.Alloc([]byte("keep-me"))
	s2, _ := p.Alloc([]byte("drop-me"))
	s3, _ := p.Alloc([]byte("keep-too"))

	freeBefore := p.Freespace()
	p.Rebuild(func(slot int) bool { return slot != s2 })
	freeAfter := p.Freespace()

	assert.Greater(t, freeAfter, freeBefore, "dropped slot's bytes were reclaimed")

	v1, ok := p.Get(s1)
	require.True(t, ok)
	assert.Equal(t, "keep-me", string(v1))

	_, ok = p.Get(s2)
	assert.False(t, ok)

	v3, ok := p.Get(s3)
	require.True(t, ok)
	assert.Equal(t, "keep-too", string(v3))
}

func TestOpaqueRoundTrip(t *testing.T) {
	p := New()
	p.SetOpaque(Opaque{Next: 42, FastForward: 7})
	op := p.GetOpaque()
	assert.Equal(t, uint32(42), op.Next)
	assert.Equal(t, uint32(7), op.FastForward)
}

func TestWrap_RejectsWrongSize(t *testing.T) {
	_, err := Wrap(make([]byte, 100))
	assert.Error(t, err)
}

func TestWrap_PreservesContent(t *testing.T) {
	p := New()
	slot, _ := p.Alloc([]byte("abc"))
	buf := p.Bytes()

	p2, err := Wrap(buf)
	require.NoError(t, err)
	got, ok := p2.Get(slot)
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
}
