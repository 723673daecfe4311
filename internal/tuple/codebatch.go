package tuple

import (
	"encoding/binary"

	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// CodeBatch is the shared RaBitQ-code-metadata shape H1Tuple and H0Tuple
// both embed: up to MaxBatch per-slot metadata quadruples plus the packed
// 4-bit fast-scan block grid (spec.md §3 "packed 4-bit code block").
//
// Active is a bitmask: bit i set means slot i holds a live entry. Quartets
// is dims/4 (rounded up); Blocks has one [2]uint64 per quartet.
type CodeBatch struct {
	Dims  uint32
	Count uint8 // number of slots ever used (<=32); Active tracks liveness
	Active uint32

	DisU2     [MaxBatch]float32
	FactorIP  [MaxBatch]float32
	FactorPPC [MaxBatch]float32
	FactorErr [MaxBatch]float32

	Blocks [][2]uint64 // len == quartets(Dims)
}

func quartets(dims uint32) int { return int((dims + 3) / 4) }

// NewCodeBatch allocates an empty batch for the given dimensionality.
func NewCodeBatch(dims uint32) CodeBatch {
	return CodeBatch{Dims: dims, Blocks: make([][2]uint64, quartets(dims))}
}

func (b *CodeBatch) encodedSize() int {
	return 4 + 1 + 4 + MaxBatch*4*4 + len(b.Blocks)*16
}

func (b *CodeBatch) encodeInto(buf []byte) int {
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], b.Dims)
	off += 4
	buf[off] = b.Count
	off++
	binary.LittleEndian.PutUint32(buf[off:], b.Active)
	off += 4
	for i := 0; i < MaxBatch; i++ {
		putFloat32(buf[off:], b.DisU2[i])
		off += 4
	}
	for i := 0; i < MaxBatch; i++ {
		putFloat32(buf[off:], b.FactorIP[i])
		off += 4
	}
	for i := 0; i < MaxBatch; i++ {
		putFloat32(buf[off:], b.FactorPPC[i])
		off += 4
	}
	for i := 0; i < MaxBatch; i++ {
		putFloat32(buf[off:], b.FactorErr[i])
		off += 4
	}
	for _, blk := range b.Blocks {
		binary.LittleEndian.PutUint64(buf[off:], blk[0])
		off += 8
		binary.LittleEndian.PutUint64(buf[off:], blk[1])
		off += 8
	}
	return off
}

func decodeCodeBatch(data []byte) (CodeBatch, int, error) {
	if len(data) < 9 {
		return CodeBatch{}, 0, apperrors.Corruption("code batch header too short", nil)
	}
	var b CodeBatch
	off := 0
	b.Dims = binary.LittleEndian.Uint32(data[off:])
	off += 4
	b.Count = data[off]
	off++
	b.Active = binary.LittleEndian.Uint32(data[off:])
	off += 4
	q := quartets(b.Dims)
	need := off + MaxBatch*4*4 + q*16
	if len(data) < need {
		return CodeBatch{}, 0, apperrors.Corruption("code batch body too short", nil).
			WithDetails("have", len(data)).WithDetails("need", need)
	}
	for i := 0; i < MaxBatch; i++ {
		b.DisU2[i] = getFloat32(data[off:])
		off += 4
	}
	for i := 0; i < MaxBatch; i++ {
		b.FactorIP[i] = getFloat32(data[off:])
		off += 4
	}
	for i := 0; i < MaxBatch; i++ {
		b.FactorPPC[i] = getFloat32(data[off:])
		off += 4
	}
	for i := 0; i < MaxBatch; i++ {
		b.FactorErr[i] = getFloat32(data[off:])
		off += 4
	}
	b.Blocks = make([][2]uint64, q)
	for i := range b.Blocks {
		b.Blocks[i][0] = binary.LittleEndian.Uint64(data[off:])
		off += 8
		b.Blocks[i][1] = binary.LittleEndian.Uint64(data[off:])
		off += 8
	}
	return b, off, nil
}

// IsActive reports whether slot i (0-based) is live.
func (b *CodeBatch) IsActive(i int) bool { return b.Active&(1<<uint(i)) != 0 }

// SetActive marks slot i live or dead.
func (b *CodeBatch) SetActive(i int, active bool) {
	if active {
		b.Active |= 1 << uint(i)
	} else {
		b.Active &^= 1 << uint(i)
	}
}

// FirstFreeSlot returns the lowest inactive slot index below Count, or
// Count itself if every slot so far is active (meaning a fresh slot must
// be claimed by bumping Count, capped at MaxBatch).
func (b *CodeBatch) FirstFreeSlot() (int, bool) {
	for i := 0; i < int(b.Count); i++ {
		if !b.IsActive(i) {
			return i, true
		}
	}
	if int(b.Count) < MaxBatch {
		return int(b.Count), true
	}
	return 0, false
}

// SetNibble stores code's sign bits for slot i into the packed block grid,
// nibble-per-quartet per spec.md §6.2's layout.
func (b *CodeBatch) SetNibble(i int, signs []uint64) {
	for q := range b.Blocks {
		var nib uint8
		for bit := 0; bit < 4; bit++ {
			d := q*4 + bit
			if uint32(d) >= b.Dims {
				break
			}
			word, shift := d/64, uint(d%64)
			if word < len(signs) && signs[word]&(1<<shift) != 0 {
				nib |= 1 << uint(bit)
			}
		}
		bitIdx := i * 4
		word, shift := bitIdx/64, uint(bitIdx%64)
		b.Blocks[q][word] &^= uint64(0xF) << shift
		b.Blocks[q][word] |= uint64(nib) << shift
	}
}
