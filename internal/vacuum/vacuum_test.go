package vacuum

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/vecindex/internal/build"
	"github.com/arx-os/vecindex/internal/codec"
	"github.com/arx-os/vecindex/internal/relation"
	"github.com/arx-os/vecindex/internal/search"
	"github.com/arx-os/vecindex/internal/tuple"
)

func syntheticSource(rng *rand.Rand, dims, n int) build.Source {
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

func setupIndex(t *testing.T, dims, n int) (relation.Relation, *codec.Rotator) {
	t.Helper()
	ctx := context.Background()
	rel, err := relation.NewStore(relation.NewMemBackend(), relation.DefaultOptions())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	opts := build.Options{
		Dims:           uint32(dims),
		Metric:         tuple.MetricL2,
		Residual:       false,
		Lists:          []int{4, 2},
		SamplingFactor: 8,
		Seed:           3,
	}
	_, err = build.Internal(ctx, rel, opts, syntheticSource(rng, dims, n))
	require.NoError(t, err)
	return rel, codec.NewRotator(dims, 3)
}

func searchAll(t *testing.T, ctx context.Context, rel relation.Relation, rotator *codec.Rotator, dims int) []search.Result {
	t.Helper()
	meta, err := tuple.ReadMeta(ctx, rel)
	require.NoError(t, err)
	probes := make([]int, int(meta.HeightOfRoot)-1)
	for i := range probes {
		probes[i] = 8
	}
	query := make([]float32, dims)
	for i := range query {
		query[i] = 0.1
	}
	cur, err := search.Search(ctx, rel, rotator, query, search.Options{
		Probes:        probes,
		Eps:           1.9,
		MaxScanTuples: 10000,
		Prefetch:      search.Plain,
		Rerank:        search.RerankIndex,
	})
	require.NoError(t, err)

	var out []search.Result
	for {
		r, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, r)
	}
	return out
}

func TestRun_DropsDeadPayloadsFromSearch(t *testing.T) {
	ctx := context.Background()
	dims := 12
	rel, rotator := setupIndex(t, dims, 200)

	before := searchAll(t, ctx, rel, rotator, dims)
	require.NotEmpty(t, before)

	dead := make(map[uint64]bool)
	for i, r := range before {
		if i%2 == 0 {
			dead[r.Payload] = true
		}
	}
	require.NotEmpty(t, dead)

	stats, err := Run(ctx, rel, Options{IsDead: func(p uint64) bool { return dead[p] }})
	require.NoError(t, err)
	assert.Equal(t, len(dead), stats.SlotsFreed)

	after := searchAll(t, ctx, rel, rotator, dims)
	for _, r := range after {
		assert.False(t, dead[r.Payload], "vacuum left a dead payload %d reachable", r.Payload)
	}
	assert.Equal(t, len(before)-len(dead), len(after))
}

func TestRun_NoDeadRowsIsNoop(t *testing.T) {
	ctx := context.Background()
	dims := 10
	rel, rotator := setupIndex(t, dims, 60)

	before := searchAll(t, ctx, rel, rotator, dims)
	stats, err := Run(ctx, rel, Options{IsDead: func(uint64) bool { return false }})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.SlotsFreed)
	assert.Equal(t, 0, stats.VectorSlicesFreed)

	after := searchAll(t, ctx, rel, rotator, dims)
	assert.Equal(t, len(before), len(after))
}

func TestRun_RejectsMissingCallback(t *testing.T) {
	ctx := context.Background()
	rel, _ := setupIndex(t, 8, 10)
	_, err := Run(ctx, rel, Options{})
	assert.Error(t, err)
}

func TestRun_YieldErrorAbortsRun(t *testing.T) {
	ctx := context.Background()
	rel, _ := setupIndex(t, 8, 60)

	calls := 0
	boom := assert.AnError
	_, err := Run(ctx, rel, Options{
		IsDead: func(uint64) bool { return true },
		Yield: func(context.Context) error {
			calls++
			if calls > 1 {
				return boom
			}
			return nil
		},
	})
	assert.ErrorIs(t, err, boom)
}
