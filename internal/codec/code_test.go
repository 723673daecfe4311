package codec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arx-os/vecindex/internal/simd"
)

func randomVector(rng *rand.Rand, dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = rng.Float32()*4 - 2
	}
	return v
}

func TestBuild_MetadataShape(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := randomVector(rng, 64)
	c := Build(x)
	assert.Equal(t, 64, c.Dims)
	assert.Len(t, c.Signs, 1)
	assert.InDelta(t, float64(sumSq(x)), float64(c.DisU2), 1e-3)
}

func sumSq(x []float32) float32 {
	var s float32
	for _, v := range x {
		s += v * v
	}
	return s
}

func TestLowerBound_SoundAgainstExact_L2(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const dims = 256
	for trial := 0; trial < 50; trial++ {
		x := randomVector(rng, dims)
		q := randomVector(rng, dims)
		c := Build(x)
		lut := Preprocess(q)
		accum := Accumulate(c, lut)

		bound := LowerBound(c, lut, accum, MetricL2, 1.0)
		exact := ExactDistance(MetricL2, x, q)
		assert.LessOrEqualf(t, bound, exact+1e-3, "trial %d: bound %v > exact %v", trial, bound, exact)
	}
}

func TestLowerBound_LargerEpsIsLooser(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	x := randomVector(rng, 128)
	q := randomVector(rng, 128)
	c := Build(x)
	lut := Preprocess(q)
	accum := Accumulate(c, lut)

	tight := LowerBound(c, lut, accum, MetricL2, 1.0)
	loose := LowerBound(c, lut, accum, MetricL2, 3.0)
	assert.LessOrEqual(t, loose, tight)
}

func TestAccumulate_MatchesBlockFastScan(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const dims = 128
	x := randomVector(rng, dims)
	q := randomVector(rng, dims)
	c := Build(x)
	lut := Preprocess(q)

	// Build a single-candidate fast-scan block and confirm Accumulate
	// (the binary path) agrees with it.
	nibblesPerQuartet := make([][]uint8, dims/4)
	for qi := range nibblesPerQuartet {
		nibblesPerQuartet[qi] = make([]uint8, 32)
	}
	for d := 0; d < dims; d++ {
		if c.Signs[d/64]&(1<<uint(d%64)) != 0 {
			quartet, bit := d/4, d%4
			nibblesPerQuartet[quartet][0] |= 1 << uint(bit)
		}
	}
	blocks := make([][2]uint64, len(nibblesPerQuartet))
	for qi, nibbles := range nibblesPerQuartet {
		blocks[qi] = simd.PackQuartetBlock(nibbles)
	}
	blockSums := simd.BlockFastScanAccumulate(blocks, lut.BlockLUT)
	got := Accumulate(c, lut)
	assert.Equal(t, blockSums[0], got)
}

func TestPreprocess_DimsMatchInput(t *testing.T) {
	q := []float32{1, 2, 3, 4}
	lut := Preprocess(q)
	assert.Equal(t, 4, lut.Dims)
	assert.Len(t, lut.BlockLUT, 1)
}
