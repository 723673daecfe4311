// Package simd provides the numeric kernels spec.md §4.3/§9 calls "C1": f32
// reductions, packed 4-bit fast-scan accumulation, and the bit-sliced binary
// scan path, plus the runtime CPU-feature dispatch the original engine uses
// to pick between scalar/SSE2/AVX2/AVX-512/NEON backends.
//
// This port only ships the scalar backend — it is, per spec.md §9, required
// to exist and stay correct as "the reference for the equivalence test"
// regardless of which vectorized backend a given CPU gets dispatched to, so
// it is what every caller in this module uses. Runtime detection is kept
// and surfaced through Detect() so callers can still report
// what a vectorized backend *would* run on, grounding the dispatch-cache
// idea from spec.md §9 without hand-rolled assembly.
package simd

import (
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Backend names the detected instruction-set tier, cached at first use the
// way spec.md §9 describes ("caching the function pointer").
type Backend string

const (
	BackendScalar Backend = "scalar"
	BackendSSE2   Backend = "sse2"
	BackendAVX2   Backend = "avx2+fma"
	BackendAVX512 Backend = "avx512"
	BackendNEON   Backend = "neon"
)

var (
	detectOnce sync.Once
	detected   Backend
)

// Detect runs CPU feature detection once and caches the result. The scalar
// kernels below are used unconditionally; Detect exists so callers can
// report which vectorized tier a native build would
// select, per spec.md §9's "SIMD dispatch" design note.
func Detect() Backend {
	detectOnce.Do(func() {
		switch {
		case cpuid.CPU.Supports(cpuid.AVX512F):
			detected = BackendAVX512
		case cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3):
			detected = BackendAVX2
		case cpuid.CPU.Supports(cpuid.SSE2):
			detected = BackendSSE2
		case cpuid.CPU.Supports(cpuid.ASIMD):
			detected = BackendNEON
		default:
			detected = BackendScalar
		}
	})
	return detected
}
