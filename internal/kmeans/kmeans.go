// Package kmeans implements spec.md §4.4 (C3): Lloyd's algorithm over
// rotated vectors, using RaBitQ lower bounds (internal/codec) to skip exact
// distance evaluation during assignment, with empty-cluster recovery via
// perturbed cloning.
//
// Grounded on the assign/update/empty-cluster-split algorithm description
// in spec.md §4.4 and on original_source's clustering crate for the
// perturbation constant; the pool-parallel update step follows the
// teacher's worker-pool shape used elsewhere in this module (internal/build
// uses the same pattern for per-level materialization).
package kmeans

import (
	"math"
	"math/rand"
	"sync"

	"github.com/arx-os/vecindex/internal/codec"
	"github.com/arx-os/vecindex/internal/simd"
)

// Delta is the even/odd perturbation magnitude used to split a donor
// centroid into an empty one, per spec.md §4.4.
const Delta = 9.7656e-4

// DefaultIterations is the bounded Lloyd iteration count spec.md §4.4
// defaults to.
const DefaultIterations = 10

// AssignEps is the RaBitQ confidence multiplier used while gating exact
// distance evaluation during assign.
const AssignEps = 1.9

// Square is a d x c row-major centroid buffer: Square.At(j) is centroid j's
// d-dimensional vector.
type Square struct {
	Dims      int
	Count     int
	Centroids []float32 // len == Dims*Count, row-major by centroid
}

// At returns a view into centroid j's vector. The returned slice aliases
// the Square's backing storage.
func (s *Square) At(j int) []float32 {
	return s.Centroids[j*s.Dims : (j+1)*s.Dims]
}

// NewSquare allocates a zeroed Square for count centroids of the given
// dimensionality.
func NewSquare(dims, count int) *Square {
	return &Square{Dims: dims, Count: count, Centroids: make([]float32, dims*count)}
}

// Options configures Run.
type Options struct {
	Iterations int
	Workers    int
	Seed       int64
}

// DefaultOptions returns spec.md's defaults: 10 Lloyd iterations and a
// single worker (assignment runs sequentially unless Workers is set above 1).
func DefaultOptions() Options {
	return Options{Iterations: DefaultIterations, Workers: 1, Seed: 1}
}

// Run clusters samples (each a dims-length rotated vector) into count
// centroids, returning the resulting Square and, for each sample, the
// index of its assigned centroid.
func Run(samples [][]float32, count int, opts Options) (*Square, []int) {
	dims := len(samples[0])
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultIterations
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	sq := initCentroids(samples, count, rng)
	assignments := make([]int, len(samples))

	for iter := 0; iter < opts.Iterations; iter++ {
		codes := buildCentroidCodes(sq)
		assignStep(samples, sq, codes, assignments, opts.Workers)
		updateStep(samples, sq, assignments, rng)
	}
	return sq, assignments
}

// initCentroids seeds centroids by sampling distinct input vectors
// (classic Forgy initialization).
func initCentroids(samples [][]float32, count int, rng *rand.Rand) *Square {
	dims := len(samples[0])
	sq := NewSquare(dims, count)
	perm := rng.Perm(len(samples))
	for j := 0; j < count; j++ {
		src := samples[perm[j%len(perm)]]
		copy(sq.At(j), src)
	}
	return sq
}

// buildCentroidCodes precomputes each centroid's RaBitQ sign code, per
// spec.md §4.4 step 1.
func buildCentroidCodes(sq *Square) []codec.Code {
	codes := make([]codec.Code, sq.Count)
	for j := 0; j < sq.Count; j++ {
		codes[j] = codec.Build(sq.At(j))
	}
	return codes
}

// assignStep assigns each sample to its nearest centroid, using RaBitQ
// lower bounds to skip exact L2 evaluation per spec.md §4.4 steps 2-3.
func assignStep(samples [][]float32, sq *Square, codes []codec.Code, assignments []int, workers int) {
	if workers <= 1 {
		for i, s := range samples {
			assignments[i] = assignOne(s, sq, codes)
		}
		return
	}
	var wg sync.WaitGroup
	chunk := (len(samples) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, (w+1)*chunk
		if lo >= len(samples) {
			break
		}
		if hi > len(samples) {
			hi = len(samples)
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				assignments[i] = assignOne(samples[i], sq, codes)
			}
		}(lo, hi)
	}
	wg.Wait()
}

func assignOne(sample []float32, sq *Square, codes []codec.Code) int {
	lut := codec.Preprocess(sample)
	best := -1
	var bestDist float32
	for j := 0; j < sq.Count; j++ {
		accum := codec.Accumulate(codes[j], lut)
		lb := codec.LowerBound(codes[j], lut, accum, codec.MetricL2, AssignEps)
		if best >= 0 && lb >= bestDist {
			continue // provably can't beat the current best
		}
		d := simd.L2SqF32(sample, sq.At(j))
		if best < 0 || d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// updateStep recomputes each centroid as the mean of its assigned samples,
// splitting donor clusters into any empty ones per spec.md §4.4.
func updateStep(samples [][]float32, sq *Square, assignments []int, rng *rand.Rand) {
	dims := sq.Dims
	sums := make([][]float32, sq.Count)
	counts := make([]int, sq.Count)
	for j := range sums {
		sums[j] = make([]float32, dims)
	}
	for i, j := range assignments {
		simd.AddInplaceF32(sums[j], samples[i])
		counts[j]++
	}

	for j := 0; j < sq.Count; j++ {
		if counts[j] > 0 {
			mean := sums[j]
			simd.MulScalarInplaceF32(mean, 1/float32(counts[j]))
			copy(sq.At(j), mean)
		}
	}

	n := len(samples)
	for j := 0; j < sq.Count; j++ {
		if counts[j] > 0 {
			continue
		}
		donor := pickDonor(counts, n, rng)
		cloneAndPerturb(sq, donor, j)
		counts[donor] = counts[donor] / 2
		counts[j] = counts[donor]
	}
}

// pickDonor selects a source cluster to split, with probability
// proportional to (count[o]-1)/(n-c), per spec.md §4.4.
func pickDonor(counts []int, n int, rng *rand.Rand) int {
	c := len(counts)
	weights := make([]float64, c)
	var total float64
	for o, cnt := range counts {
		w := float64(cnt-1) / float64(n-c)
		if w < 0 {
			w = 0
		}
		weights[o] = w
		total += w
	}
	if total <= 0 {
		return rng.Intn(c)
	}
	r := rng.Float64() * total
	for o, w := range weights {
		r -= w
		if r <= 0 {
			return o
		}
	}
	return c - 1
}

// cloneAndPerturb copies centroid donor into dst and perturbs both copies
// by +-delta on even/odd indices, per spec.md §4.4.
func cloneAndPerturb(sq *Square, donor, dst int) {
	copy(sq.At(dst), sq.At(donor))
	simd.PerturbEvenOddInplaceF32(sq.At(donor), Delta)
	simd.PerturbEvenOddInplaceF32(sq.At(dst), -Delta)
}

// SumSquaredError returns the total squared distance from every sample to
// its assigned centroid, used by callers that want to verify the K-means
// monotonicity property (spec.md §8 testable property 4).
func SumSquaredError(samples [][]float32, sq *Square, assignments []int) float64 {
	var total float64
	for i, j := range assignments {
		total += float64(simd.L2SqF32(samples[i], sq.At(j)))
	}
	return total
}

// Lookup returns the index of the nearest centroid to x by exact L2,
// matching spec.md §4.4's k_means_lookup, used only during structure
// extraction (never on the hot query path).
func Lookup(x []float32, sq *Square) int {
	best := 0
	bestDist := float32(math.MaxFloat32)
	for j := 0; j < sq.Count; j++ {
		d := simd.L2SqF32(x, sq.At(j))
		if d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}
