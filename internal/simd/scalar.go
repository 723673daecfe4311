package simd

import (
	"math"
	"math/bits"
)

// DotF32 returns the inner product of a and b. Panics if lengths differ, the
// same contract the teacher's numeric helpers use for mismatched slices.
func DotF32(a, b []float32) float32 {
	mustSameLen(a, b)
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// L2SqF32 returns the squared Euclidean distance between a and b.
func L2SqF32(a, b []float32) float32 {
	mustSameLen(a, b)
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// SumSqF32 returns the squared norm of a.
func SumSqF32(a []float32) float32 {
	var sum float32
	for _, v := range a {
		sum += v * v
	}
	return sum
}

// SumAbsF32 returns the L1 norm of a.
func SumAbsF32(a []float32) float32 {
	var sum float32
	for _, v := range a {
		if v < 0 {
			sum -= v
		} else {
			sum += v
		}
	}
	return sum
}

// AddInplaceF32 adds src into dst elementwise.
func AddInplaceF32(dst, src []float32) {
	mustSameLen(dst, src)
	for i := range dst {
		dst[i] += src[i]
	}
}

// MulScalarInplaceF32 scales every element of dst by s.
func MulScalarInplaceF32(dst []float32, s float32) {
	for i := range dst {
		dst[i] *= s
	}
}

// PerturbEvenOddInplaceF32 scales even-indexed elements by (1+delta) and
// odd-indexed elements by (1-delta), the empty-cluster split kmeans uses.
func PerturbEvenOddInplaceF32(dst []float32, delta float64) {
	for i := range dst {
		if i%2 == 0 {
			dst[i] *= float32(1 + delta)
		} else {
			dst[i] *= float32(1 - delta)
		}
	}
}

func mustSameLen(a, b []float32) {
	if len(a) != len(b) {
		panic("simd: mismatched slice lengths")
	}
}

// --- packed 4-bit nibble blocks (spec.md §6.2 wire layout) ---
//
// A quartet block packs, for up to 32 candidates, a 4-bit nibble each (one
// bit per dimension in a 4-dimension quartet) into two uint64 words:
// candidate c's nibble occupies bits [c*4, c*4+4) across the pair, so
// candidates 0-15 live in word 0 and 16-31 in word 1.

// PackQuartetBlock packs up to 32 nibbles (each 0-15) into a [2]uint64 block.
func PackQuartetBlock(nibbles []uint8) [2]uint64 {
	if len(nibbles) > 32 {
		panic("simd: quartet block holds at most 32 candidates")
	}
	var block [2]uint64
	for c, n := range nibbles {
		bitIdx := c * 4
		word, shift := bitIdx/64, uint(bitIdx%64)
		block[word] |= uint64(n&0xF) << shift
	}
	return block
}

// UnpackQuartetBlock extracts n candidates' nibbles back out of block.
func UnpackQuartetBlock(block [2]uint64, n int) []uint8 {
	if n > 32 {
		panic("simd: quartet block holds at most 32 candidates")
	}
	out := make([]uint8, n)
	for c := 0; c < n; c++ {
		bitIdx := c * 4
		word, shift := bitIdx/64, uint(bitIdx%64)
		out[c] = uint8((block[word] >> shift) & 0xF)
	}
	return out
}

// --- block fast-scan LUT (spec.md §4.3 Block LUT) ---

// BuildBlockLUT builds one 16-entry partial-sum table per dimension quartet
// from a query's quantized per-dimension codes (each in [0, 15]). lut[q][v]
// is the sum of qcode over the quartet's dimensions selected by bitmask v.
func BuildBlockLUT(qcode []uint8, dims int) [][16]uint8 {
	quartets := (dims + 3) / 4
	lut := make([][16]uint8, quartets)
	for q := 0; q < quartets; q++ {
		base := q * 4
		for v := 0; v < 16; v++ {
			var sum int
			for k := 0; k < 4; k++ {
				if base+k >= dims {
					continue
				}
				if v&(1<<uint(k)) != 0 {
					sum += int(qcode[base+k])
				}
			}
			lut[q][v] = uint8(sum)
		}
	}
	return lut
}

// BlockFastScanAccumulate computes, for 32 packed candidates, the sum over
// quartets of lut[quartet][nibble] — i.e. Sum_{i: signbit_i=1} qcode_i for
// each candidate. blocks and lut must have the same length (one entry per
// quartet of dimensions).
func BlockFastScanAccumulate(blocks [][2]uint64, lut [][16]uint8) [32]uint32 {
	if len(blocks) != len(lut) {
		panic("simd: blocks/lut quartet count mismatch")
	}
	var sums [32]uint32
	for q, block := range blocks {
		nibbles := UnpackQuartetBlock(block, 32)
		row := lut[q]
		for c, n := range nibbles {
			sums[c] += uint32(row[n])
		}
	}
	return sums
}

// --- binary bit-sliced scan (spec.md §4.3 Binary LUT) ---

// BuildBinaryLUT bit-slices a query's quantized per-dimension codes (each
// 0-15) into four 64-bit-word streams t0..t3, where tk's bit i is set iff
// bit k of qcode[i] is set. This is the representation the streaming
// (non-block) scan path consumes.
func BuildBinaryLUT(qcode []uint8, dims int) [4][]uint64 {
	numWords := (dims + 63) / 64
	var t [4][]uint64
	for k := range t {
		t[k] = make([]uint64, numWords)
	}
	for i, v := range qcode {
		word, bit := i/64, uint(i%64)
		for k := 0; k < 4; k++ {
			if v&(1<<uint(k)) != 0 {
				t[k][word] |= 1 << bit
			}
		}
	}
	return t
}

// BinaryScanAccumulate computes Sum_{i: signbit_i=1} qcode_i for a single
// candidate directly from its sign bitset, using the bit-sliced LUT from
// BuildBinaryLUT. It must equal BlockFastScanAccumulate's per-candidate
// result for the same (signs, qcode) pair — both reduce to the same
// per-dimension sum, just via different input representations.
func BinaryScanAccumulate(signWords []uint64, lut [4][]uint64) uint32 {
	var total uint32
	for k := 0; k < 4; k++ {
		var pc int
		for w := range signWords {
			if w >= len(lut[k]) {
				break
			}
			pc += bits.OnesCount64(signWords[w] & lut[k][w])
		}
		total += uint32(pc) << uint(k)
	}
	return total
}

// QuantizeQuery scalar-quantizes q into Bq-bit integer codes, returning the
// codes, the offset b and step k such that q[i] ~= b + k*code[i], and the
// sum of the returned codes (qvectorSum in spec.md §4.3's Block LUT).
func QuantizeQuery(q []float32, bq int) (codes []uint8, b, k float32, qvectorSum uint32) {
	if len(q) == 0 {
		return nil, 0, 0, 0
	}
	lo, hi := q[0], q[0]
	for _, v := range q {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	levels := float32((uint32(1) << uint(bq)) - 1)
	b = lo
	if hi > lo {
		k = (hi - lo) / levels
	}
	codes = make([]uint8, len(q))
	var sum uint32
	for i, v := range q {
		var c uint8
		if k > 0 {
			c = uint8(math.Round(float64((v - lo) / k)))
		}
		codes[i] = c
		sum += uint32(c)
	}
	return codes, b, k, sum
}
