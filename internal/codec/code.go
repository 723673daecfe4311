package codec

import (
	"math"

	"github.com/arx-os/vecindex/internal/simd"
)

// Metric selects which distance the index is built for, per spec.md's
// Element/Metric glossary entries.
type Metric int

const (
	MetricL2 Metric = iota
	MetricDot
)

// Code is a RaBitQ 1-bit sign code for one (already rotated) vector, plus
// the scalar metadata needed to reconstruct a sound lower bound against an
// arbitrary query without decoding the original vector.
//
// The metadata fields mirror spec.md §4.3's named quantities: DisU2 is the
// stored vector's squared norm, FactorIP/FactorPPC/FactorErr are derived
// from projecting the vector onto its own sign pattern (see Build), which
// is the standard RaBitQ least-squares reconstruction of x from its 1-bit
// code.
type Code struct {
	Dims      int
	Signs     []uint64 // bit i set iff x[i] < 0
	DisU2     float32
	FactorIP  float32
	FactorPPC float32
	FactorErr float32
}

// numWords returns the number of uint64 words needed to hold dims sign bits.
func numWords(dims int) int { return (dims + 63) / 64 }

// Build encodes a rotated, already-centered vector x into a RaBitQ sign
// code with its lower-bound metadata.
//
// Derivation: let cb_i = +1 if x_i >= 0 else -1 (the sign lattice point),
// and alpha = <x,cb>/<cb,cb> = sumAbs(x)/dims be the least-squares scalar
// that best approximates x as alpha*cb. Then:
//
//	FactorIP  = 2*alpha                         (used to rescale accum)
//	FactorPPC = FactorIP * (2*popcount(neg) - dims)
//	FactorErr = 2*sqrt(max(0, DisU2 - alpha^2*dims))
//
// FactorErr bounds (via Cauchy-Schwarz) the residual energy left over after
// projecting x onto cb, which is exactly the per-candidate error term
// LowerBound scales by the query norm (sqrt of DisV2) to get a sound bound.
func Build(x []float32) Code {
	dims := len(x)
	words := numWords(dims)
	signs := make([]uint64, words)

	var disU2, sumAbs float32
	var popcount int
	for i, v := range x {
		disU2 += v * v
		if v < 0 {
			sumAbs -= v
			popcount++
			signs[i/64] |= 1 << uint(i%64)
		} else {
			sumAbs += v
		}
	}

	alpha := sumAbs / float32(dims)
	factorIP := 2 * alpha
	factorPPC := factorIP * (2*float32(popcount) - float32(dims))
	residual := disU2 - alpha*alpha*float32(dims)
	if residual < 0 {
		residual = 0
	}
	factorErr := 2 * float32(math.Sqrt(float64(residual)))

	return Code{
		Dims:      dims,
		Signs:     signs,
		DisU2:     disU2,
		FactorIP:  factorIP,
		FactorPPC: factorPPC,
		FactorErr: factorErr,
	}
}

// QueryLUT holds everything a query needs to score against many Codes: the
// exact squared norm (for completing the square), the scalar-quantization
// offset/step (b, k) and code sum, and both LUT representations
// internal/simd's two equivalent scan paths consume.
type QueryLUT struct {
	Dims       int
	DisV2      float32
	B          float32
	K          float32
	QVectorSum uint32
	BlockLUT   [][16]uint8
	BinaryLUT  [4][]uint64
}

// QuantizeBits is the query-side scalar quantization depth. 4 bits keeps
// every BlockLUT entry (a sum of up to 4 per-dimension codes) within a
// byte, matching the "16 x u8" per-quartet table spec.md §6.2 describes.
const QuantizeBits = 4

// Preprocess builds a QueryLUT for a rotated query vector q.
func Preprocess(q []float32) QueryLUT {
	codes, b, k, sum := simd.QuantizeQuery(q, QuantizeBits)
	return QueryLUT{
		Dims:       len(q),
		DisV2:      simd.SumSqF32(q),
		B:          b,
		K:          k,
		QVectorSum: sum,
		BlockLUT:   simd.BuildBlockLUT(codes, len(q)),
		BinaryLUT:  simd.BuildBinaryLUT(codes, len(q)),
	}
}

// Accumulate computes Sum_{i: code negative} qcode_i for one candidate via
// the bit-sliced binary path. Used outside of 32-candidate fast-scan
// batches (e.g. single-candidate rerank prefilters).
func Accumulate(c Code, q QueryLUT) uint32 {
	return simd.BinaryScanAccumulate(c.Signs, q.BinaryLUT)
}

// LowerBound computes a sound lower bound on the distance between the
// vector Code encodes and the query q's exact (unrotated-equivalent)
// distance, given the fast/binary-scan accumulator value and a confidence
// multiplier eps >= 1 (spec.md §4.3/§8: larger eps trades a looser bound for
// a lower false-prune probability).
//
// For MetricL2 this approximates ||x-q||^2 = DisU2 + DisV2 - 2<x,q>; for
// MetricDot it approximates -<x,q> directly (smaller is closer).
func LowerBound(c Code, q QueryLUT, accum uint32, metric Metric, eps float64) float32 {
	crossTerm := c.FactorPPC*q.B + (2*float32(accum)-float32(q.QVectorSum))*c.FactorIP*q.K
	errTerm := c.FactorErr * sqrtF32(q.DisV2)

	switch metric {
	case MetricDot:
		rough := 0.5 * crossTerm
		return rough - float32(eps)*0.5*errTerm
	default: // MetricL2
		rough := c.DisU2 + q.DisV2 + crossTerm
		return rough - float32(eps)*errTerm
	}
}

func sqrtF32(v float32) float32 {
	if v <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(v)))
}

// ExactDistance computes the true (unquantized) distance between x and q
// under metric, for reranking once candidates have been narrowed by
// LowerBound.
func ExactDistance(metric Metric, x, q []float32) float32 {
	switch metric {
	case MetricDot:
		return -simd.DotF32(x, q)
	default:
		return simd.L2SqF32(x, q)
	}
}
