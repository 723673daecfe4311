package vector

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/vecindex/internal/search"
)

func syntheticSource(rng *rand.Rand, dims, n int) BuildSource {
	return func(yield func(payload uint64, vector []float32) bool) {
		for i := 0; i < n; i++ {
			v := make([]float32, dims)
			for d := range v {
				v[d] = rng.Float32()*2 - 1
			}
			if !yield(uint64(i+1), v) {
				return
			}
		}
	}
}

func TestOpenMem_RejectsF16(t *testing.T) {
	_, err := OpenMem(Options{Dims: 8, Element: F16})
	assert.Error(t, err)
}

func TestOpenMem_RejectsBadDims(t *testing.T) {
	_, err := OpenMem(Options{Dims: 0})
	assert.Error(t, err)
}

func TestIndex_InsertBeforeBuildFails(t *testing.T) {
	ix, err := OpenMem(Options{Dims: 8})
	require.NoError(t, err)
	err = ix.Insert(context.Background(), 1, make([]float32, 8))
	assert.Error(t, err)
}

func TestIndex_BuildInsertSearchRoundTrips(t *testing.T) {
	ctx := context.Background()
	dims := 10
	ix, err := OpenMem(Options{Dims: dims, Metric: L2, Seed: 7})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	stats, err := ix.Build(ctx, syntheticSource(rng, dims, 200), BuildOptions{
		Lists:          []int{8, 2},
		SamplingFactor: 8,
	})
	require.NoError(t, err)
	assert.Greater(t, stats.HeightOfRoot, 0)

	require.NoError(t, ix.Insert(ctx, 999, make([]float32, dims)))

	probes := make([]int, stats.HeightOfRoot-1)
	for i := range probes {
		probes[i] = 8
	}
	cur, err := ix.Search(ctx, make([]float32, dims), SearchOptions{
		Probes:        probes,
		Eps:           1.9,
		MaxScanTuples: 10000,
		Prefetch:      search.Plain,
		Rerank:        search.RerankIndex,
	})
	require.NoError(t, err)

	found := false
	for {
		r, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		if r.Payload == 999 {
			found = true
		}
	}
	assert.True(t, found, "expected to find the inserted payload in search results")
}
