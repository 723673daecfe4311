// Package codec implements RaBitQ randomized-rotation quantization (spec.md
// §4.3, component C2): a fixed pseudo-random rotation, 1-bit sign codes with
// the error-bound metadata needed for sound lower-bounding, and the
// query-side LUT preprocessing internal/simd's fast-scan and binary-scan
// kernels consume.
//
// Grounded on original_source/crates/quantization/src/rabitq (the Rust
// source this port's RaBitQ math is distilled from) for the rotation and
// lower-bound derivation shapes, and on the teacher's numeric-kernel style
// for how reductions are exposed (internal/simd).
package codec

import "math/rand"

// Rotator applies a fixed orthogonal (signed-permutation) rotation to
// vectors before they are quantized, so that per-dimension magnitude skew
// in the input distribution doesn't bias the 1-bit sign code. Unrotate
// applies the inverse signed permutation, matching spec.md §4.3's
// rotate_inplace / rotate_reversed_inplace pair.
type Rotator struct {
	dims  int
	perm  []int
	signs []float32
}

// NewRotator builds a deterministic rotation for the given dimensionality,
// seeded so every build/insert/search call for the same index produces the
// same rotation.
func NewRotator(dims int, seed int64) *Rotator {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(dims)
	signs := make([]float32, dims)
	for i := range signs {
		if rng.Intn(2) == 0 {
			signs[i] = 1
		} else {
			signs[i] = -1
		}
	}
	return &Rotator{dims: dims, perm: perm, signs: signs}
}

// Dims reports the dimensionality this rotator was built for.
func (r *Rotator) Dims() int { return r.dims }

// Rotate returns a new slice holding the rotated vector: out[i] =
// signs[i] * in[perm[i]].
func (r *Rotator) Rotate(in []float32) []float32 {
	out := make([]float32, r.dims)
	r.RotateInto(in, out)
	return out
}

// RotateInto writes the rotation of in into out, which must have length
// r.dims. out and in must not alias.
func (r *Rotator) RotateInto(in []float32, out []float32) {
	for i := 0; i < r.dims; i++ {
		out[i] = r.signs[i] * in[r.perm[i]]
	}
}

// Unrotate inverts Rotate: given a rotated vector, recovers the original.
func (r *Rotator) Unrotate(rotated []float32) []float32 {
	out := make([]float32, r.dims)
	for i := 0; i < r.dims; i++ {
		out[r.perm[i]] = r.signs[i] * rotated[i]
	}
	return out
}
