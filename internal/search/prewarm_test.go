package search

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/vecindex/internal/build"
	"github.com/arx-os/vecindex/internal/relation"
	"github.com/arx-os/vecindex/internal/tuple"
)

func buildTestRelation(t *testing.T, dims, n int) relation.Relation {
	t.Helper()
	backend := relation.NewMemBackend()
	rel, err := relation.NewStore(backend, relation.DefaultOptions())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	src := build.Source(func(yield func(payload uint64, vector []float32) bool) {
		for i := 0; i < n; i++ {
			v := make([]float32, dims)
			for d := range v {
				v[d] = rng.Float32()*2 - 1
			}
			if !yield(uint64(i+1), v) {
				return
			}
		}
	})
	_, err = build.Internal(context.Background(), rel, build.Options{
		Dims:           uint32(dims),
		Metric:         tuple.MetricL2,
		Lists:          []int{8, 2},
		SamplingFactor: 8,
		Seed:           1,
	}, src)
	require.NoError(t, err)
	return rel
}

func TestPrewarm_WalksWithoutError(t *testing.T) {
	rel := buildTestRelation(t, 8, 200)
	defer rel.Close()
	assert.NoError(t, Prewarm(context.Background(), rel))
}

func TestPrewarm_WalksSmallTree(t *testing.T) {
	rel := buildTestRelation(t, 8, 20)
	defer rel.Close()
	_, err := tuple.ReadMeta(context.Background(), rel)
	require.NoError(t, err)
	assert.NoError(t, Prewarm(context.Background(), rel))
}
