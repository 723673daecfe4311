package build

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/vecindex/internal/relation"
	"github.com/arx-os/vecindex/internal/tuple"
)

func syntheticSource(rng *rand.Rand, dims, n int) Source {
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

func TestInternal_MaterializesReadableMeta(t *testing.T) {
	ctx := context.Background()
	rel, err := relation.NewStore(relation.NewMemBackend(), relation.DefaultOptions())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	opts := Options{
		Dims:           16,
		Metric:         tuple.MetricL2,
		Residual:       true,
		Lists:          []int{4, 2},
		SamplingFactor: 8,
		Seed:           1,
	}
	stats, err := Internal(ctx, rel, opts, syntheticSource(rng, 16, 200))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.HeightOfRoot) // lists has 2 entries + root
	assert.Greater(t, stats.Sampled, 0)

	meta, err := tuple.ReadMeta(ctx, rel)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), meta.Dims)
	assert.Equal(t, uint8(3), meta.HeightOfRoot)
	assert.True(t, meta.IsResidual)
	assert.NotEqual(t, relation.NoPage, meta.RootFirst)
	assert.False(t, meta.RootCentroid.IsNil())
}

func TestInternal_RejectsEmptyLists(t *testing.T) {
	ctx := context.Background()
	rel, err := relation.NewStore(relation.NewMemBackend(), relation.DefaultOptions())
	require.NoError(t, err)
	_, err = Internal(ctx, rel, Options{Dims: 4}, syntheticSource(rand.New(rand.NewSource(1)), 4, 10))
	assert.Error(t, err)
}

func TestReservoirSample_CapsAtTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	src := syntheticSource(rng, 4, 1000)
	samples, payloads := reservoirSample(src, 50, 2)
	assert.Len(t, samples, 50)
	assert.Len(t, payloads, 50)
}
