package snapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/vecindex/internal/relation"
)

func filledBackend(t *testing.T, n int) *relation.MemBackend {
	t.Helper()
	b := relation.NewMemBackend()
	for i := 0; i < n; i++ {
		id, err := b.Extend()
		require.NoError(t, err)
		raw, err := b.ReadAt(id)
		require.NoError(t, err)
		for j := range raw {
			raw[j] = byte(i + j)
		}
		require.NoError(t, b.WriteAt(id, raw))
	}
	return b
}

func TestCreateAndRestore_RoundTrips(t *testing.T) {
	ctx := context.Background()
	src := filledBackend(t, 5)

	dir := t.TempDir()
	store, err := NewLocalBackend(dir)
	require.NoError(t, err)

	m, err := Create(ctx, src, store)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), m.NumPages)
	assert.NotEmpty(t, m.ID)

	dst := relation.NewMemBackend()
	restored, err := Restore(ctx, store, m.ID, dst)
	require.NoError(t, err)
	assert.Equal(t, m.Checksum, restored.Checksum)
	require.Equal(t, relation.PageID(5), dst.NumPages())

	for i := relation.PageID(0); i < 5; i++ {
		want, err := src.ReadAt(i)
		require.NoError(t, err)
		got, err := dst.ReadAt(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRestore_RejectsCorruptedData(t *testing.T) {
	ctx := context.Background()
	src := filledBackend(t, 3)

	dir := t.TempDir()
	store, err := NewLocalBackend(dir)
	require.NoError(t, err)

	m, err := Create(ctx, src, store)
	require.NoError(t, err)

	data, err := store.Get(ctx, dataKey(m.ID))
	require.NoError(t, err)
	data[0] ^= 0xFF
	require.NoError(t, store.Put(ctx, dataKey(m.ID), data))

	_, err = Restore(ctx, store, m.ID, relation.NewMemBackend())
	assert.Error(t, err)
}

func TestDelete_RemovesManifestAndData(t *testing.T) {
	ctx := context.Background()
	src := filledBackend(t, 2)

	dir := t.TempDir()
	store, err := NewLocalBackend(dir)
	require.NoError(t, err)

	m, err := Create(ctx, src, store)
	require.NoError(t, err)

	require.NoError(t, Delete(ctx, store, m.ID))

	_, err = ReadManifest(ctx, store, m.ID)
	assert.Error(t, err)

	exists, err := store.Exists(ctx, dataKey(m.ID))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalBackend_ListByPrefix(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocalBackend(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "snapshots/a/manifest.json", []byte("{}")))
	require.NoError(t, store.Put(ctx, "snapshots/b/manifest.json", []byte("{}")))
	require.NoError(t, store.Put(ctx, "other/file", []byte("x")))

	keys, err := store.List(ctx, "snapshots/")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}
