package search

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arx-os/vecindex/internal/build"
	"github.com/arx-os/vecindex/internal/codec"
	"github.com/arx-os/vecindex/internal/insert"
	"github.com/arx-os/vecindex/internal/relation"
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

// setupIndex builds a small hierarchical index and inserts n random
// vectors plus one known target vector (returned) with a distinguished
// payload, for exact-match recall tests.
func setupIndex(t *testing.T, dims int, n int, residual bool) (relation.Relation, *codec.Rotator, []float32, uint64) {
	t.Helper()
	ctx := context.Background()
	rel, err := relation.NewStore(relation.NewMemBackend(), relation.DefaultOptions())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(5))
	opts := build.Options{
		Dims:           uint32(dims),
		Metric:         tuple.MetricL2,
		Residual:       residual,
		Lists:          []int{4, 2},
		SamplingFactor: 8,
		Seed:           5,
	}
	_, err = build.Internal(ctx, rel, opts, syntheticSource(rng, dims, 300))
	require.NoError(t, err)

	rotator := codec.NewRotator(dims, 5)

	target := make([]float32, dims)
	for i := range target {
		target[i] = rng.Float32()*2 - 1
	}
	const targetPayload = 424242
	require.NoError(t, insert.Insert(ctx, rel, rotator, targetPayload, target))

	for i := 0; i < n; i++ {
		v := make([]float32, dims)
		for d := range v {
			v[d] = rng.Float32()*2 - 1
		}
		require.NoError(t, insert.Insert(ctx, rel, rotator, uint64(i+1), v))
	}

	return rel, rotator, target, targetPayload
}

func drain(t *testing.T, ctx context.Context, cur *Cursor, limit int) []Result {
	t.Helper()
	var out []Result
	for i := 0; i < limit; i++ {
		r, ok, err := cur.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, r)
	}
	return out
}

func TestSearch_FindsExactMatch(t *testing.T) {
	ctx := context.Background()
	dims := 12
	rel, rotator, target, payload := setupIndex(t, dims, 40, true)

	opts := Options{
		Probes:   []int{4, 4},
		Eps:      1.9,
		Prefetch: Plain,
		Rerank:   RerankIndex,
	}
	cur, err := Search(ctx, rel, rotator, target, opts)
	require.NoError(t, err)
	results := drain(t, ctx, cur, 5)
	require.NotEmpty(t, results)
	assert.Equal(t, payload, results[0].Payload)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-3)
}

func TestSearch_NonDecreasingDistances(t *testing.T) {
	ctx := context.Background()
	dims := 12
	rel, rotator, target, _ := setupIndex(t, dims, 60, false)

	opts := Options{
		Probes:   []int{4, 4},
		Eps:      1.9,
		Prefetch: Simple,
		Rerank:   RerankIndex,
	}
	cur, err := Search(ctx, rel, rotator, target, opts)
	require.NoError(t, err)
	results := drain(t, ctx, cur, 30)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestSearch_StreamPrefetcherMatchesPlain(t *testing.T) {
	ctx := context.Background()
	dims := 8
	rel, rotator, target, payload := setupIndex(t, dims, 30, false)

	plainCur, err := Search(ctx, rel, rotator, target, Options{Probes: []int{4, 4}, Eps: 1.9, Prefetch: Plain, Rerank: RerankIndex})
	require.NoError(t, err)
	plain := drain(t, ctx, plainCur, 1)

	streamCur, err := Search(ctx, rel, rotator, target, Options{Probes: []int{4, 4}, Eps: 1.9, Prefetch: Stream, Rerank: RerankIndex})
	require.NoError(t, err)
	stream := drain(t, ctx, streamCur, 1)

	require.Len(t, plain, 1)
	require.Len(t, stream, 1)
	assert.Equal(t, payload, plain[0].Payload)
	assert.Equal(t, plain[0].Payload, stream[0].Payload)
	assert.InDelta(t, plain[0].Distance, stream[0].Distance, 1e-4)
}

func TestSearch_RadiusStopsEarly(t *testing.T) {
	ctx := context.Background()
	dims := 8
	rel, rotator, target, _ := setupIndex(t, dims, 50, false)

	radius := float32(0.01)
	cur, err := Search(ctx, rel, rotator, target, Options{Probes: []int{4, 4}, Eps: 1.9, Prefetch: Plain, Rerank: RerankIndex, Radius: &radius})
	require.NoError(t, err)
	results := drain(t, ctx, cur, 1000)
	for _, r := range results {
		assert.Less(t, r.Distance, radius)
	}
}

func TestSearch_RejectsProbesLengthMismatch(t *testing.T) {
	ctx := context.Background()
	dims := 8
	rel, rotator, target, _ := setupIndex(t, dims, 5, false)

	_, err := Search(ctx, rel, rotator, target, Options{Probes: []int{4}, Eps: 1.9, Prefetch: Plain, Rerank: RerankIndex})
	assert.Error(t, err)
}

func TestSearch_HeapRerankUsesFetch(t *testing.T) {
	ctx := context.Background()
	dims := 8
	rel, rotator, target, payload := setupIndex(t, dims, 20, false)

	calls := 0
	fetch := func(ctx context.Context, p uint64) ([]float32, error) {
		calls++
		if p == payload {
			return target, nil
		}
		return make([]float32, dims), nil
	}
	cur, err := Search(ctx, rel, rotator, target, Options{Probes: []int{4, 4}, Eps: 1.9, Prefetch: Plain, Rerank: RerankHeap, HeapFetch: fetch})
	require.NoError(t, err)
	results := drain(t, ctx, cur, 1)
	require.Len(t, results, 1)
	assert.Greater(t, calls, 0)
}
