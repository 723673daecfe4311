package simd

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDotAndL2(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, -5, 6}
	assert.Equal(t, float32(1*4+2*-5+3*6), DotF32(a, b))
	assert.InDelta(t, 9+49+9, L2SqF32(a, b), 1e-6)
}

func TestSumAbsAndSumSq(t *testing.T) {
	a := []float32{-1, 2, -3}
	assert.Equal(t, float32(6), SumAbsF32(a))
	assert.Equal(t, float32(1+4+9), SumSqF32(a))
}

func TestPerturbEvenOdd(t *testing.T) {
	a := []float32{1, 1, 1, 1}
	PerturbEvenOddInplaceF32(a, 0.1)
	assert.InDelta(t, 1.1, a[0], 1e-6)
	assert.InDelta(t, 0.9, a[1], 1e-6)
}

func TestQuartetBlockRoundTrip(t *testing.T) {
	nibbles := make([]uint8, 32)
	for i := range nibbles {
		nibbles[i] = uint8(i % 16)
	}
	block := PackQuartetBlock(nibbles)
	got := UnpackQuartetBlock(block, 32)
	assert.Equal(t, nibbles, got)
}

// TestFastScanBinaryEquivalence is the S3-style equivalence property: the
// block fast-scan path and the bit-sliced binary path must agree exactly.
func TestFastScanBinaryEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const dims = 128
	const candidates = 32

	q := make([]float32, dims)
	for i := range q {
		q[i] = rng.Float32()*2 - 1
	}
	qcode, _, _, _ := QuantizeQuery(q, 4)
	blockLUT := BuildBlockLUT(qcode, dims)
	binLUT := BuildBinaryLUT(qcode, dims)

	numWords := (dims + 63) / 64
	signs := make([][]uint64, candidates)
	nibblesPerQuartet := make([][]uint8, dims/4)
	for q := range nibblesPerQuartet {
		nibblesPerQuartet[q] = make([]uint8, candidates)
	}

	for c := 0; c < candidates; c++ {
		words := make([]uint64, numWords)
		for d := 0; d < dims; d++ {
			if rng.Intn(2) == 1 {
				words[d/64] |= 1 << uint(d%64)
				quartet, bit := d/4, d%4
				nibblesPerQuartet[quartet][c] |= 1 << uint(bit)
			}
		}
		signs[c] = words
	}

	blocks := make([][2]uint64, len(nibblesPerQuartet))
	for i, n := range nibblesPerQuartet {
		blocks[i] = PackQuartetBlock(n)
	}

	blockSums := BlockFastScanAccumulate(blocks, blockLUT)
	for c := 0; c < candidates; c++ {
		got := BinaryScanAccumulate(signs[c], binLUT)
		assert.Equalf(t, blockSums[c], got, "candidate %d", c)
	}
}

func TestQuantizeQuery_ConstantVector(t *testing.T) {
	q := []float32{5, 5, 5}
	codes, b, k, sum := QuantizeQuery(q, 4)
	assert.Equal(t, float32(5), b)
	assert.Equal(t, float32(0), k)
	assert.Equal(t, uint32(0), sum)
	assert.Equal(t, []uint8{0, 0, 0}, codes)
}

func TestDetect_ReturnsStableValue(t *testing.T) {
	first := Detect()
	second := Detect()
	assert.Equal(t, first, second)
}
