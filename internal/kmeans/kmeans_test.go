package kmeans

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeClusteredSamples(rng *rand.Rand, dims, clusters, perCluster int) [][]float32 {
	centers := make([][]float32, clusters)
	for c := range centers {
		v := make([]float32, dims)
		for d := range v {
			v[d] = float32(c*10) + rng.Float32()
		}
		centers[c] = v
	}
	var samples [][]float32
	for _, c := range centers {
		for i := 0; i < perCluster; i++ {
			v := make([]float32, dims)
			for d := range v {
				v[d] = c[d] + rng.Float32()*0.1
			}
			samples = append(samples, v)
		}
	}
	return samples
}

func TestRun_ProducesRequestedCentroidCount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	samples := makeClusteredSamples(rng, 16, 4, 20)
	opts := DefaultOptions()
	sq, assignments := Run(samples, 4, opts)
	require.Equal(t, 4, sq.Count)
	require.Len(t, assignments, len(samples))
	for _, j := range assignments {
		assert.GreaterOrEqual(t, j, 0)
		assert.Less(t, j, 4)
	}
}

func TestRun_Monotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	samples := makeClusteredSamples(rng, 8, 3, 30)
	opts := Options{Iterations: 1, Workers: 1, Seed: 5}

	sq, assignments := Run(samples, 3, opts)
	firstSSE := SumSquaredError(samples, sq, assignments)

	opts.Iterations = 6
	sq2, assignments2 := Run(samples, 3, opts)
	secondSSE := SumSquaredError(samples, sq2, assignments2)

	assert.LessOrEqual(t, secondSSE, firstSSE+1e-3)
}

func TestRun_ParallelMatchesSequentialClusterCount(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	samples := makeClusteredSamples(rng, 12, 5, 15)
	seq, _ := Run(samples, 5, Options{Iterations: 10, Workers: 1, Seed: 11})
	par, _ := Run(samples, 5, Options{Iterations: 10, Workers: 4, Seed: 11})
	assert.Equal(t, seq.Count, par.Count)
}

func TestLookup_FindsExactNearest(t *testing.T) {
	sq := NewSquare(2, 3)
	copy(sq.At(0), []float32{0, 0})
	copy(sq.At(1), []float32{10, 10})
	copy(sq.At(2), []float32{-10, -10})

	assert.Equal(t, 1, Lookup([]float32{9, 9}, sq))
	assert.Equal(t, 2, Lookup([]float32{-9, -9}, sq))
	assert.Equal(t, 0, Lookup([]float32{0.1, -0.1}, sq))
}

func TestUpdateStep_SplitsEmptyClusters(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	dims := 4
	sq := NewSquare(dims, 2)
	copy(sq.At(0), []float32{1, 1, 1, 1})
	copy(sq.At(1), []float32{1, 1, 1, 1}) // identical donor/empty seed

	samples := [][]float32{{1, 1, 1, 1}, {1, 1, 1, 1}}
	assignments := []int{0, 0} // cluster 1 starts empty

	updateStep(samples, sq, assignments, rng)
	assert.NotEqual(t, sq.At(0)[0], sq.At(1)[0])
}
