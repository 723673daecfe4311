// Package tuple implements the typed page payloads spec.md §3/§4 describe
// (component C4): MetaTuple, VectorTuple, H1Tuple, H0Tuple, JumpTuple, each
// with an Encode/Decode pair operating on the slotted page.Page abstraction
// internal/page and internal/relation provide.
//
// Layout follows spec.md §3's "Page-level entities" table and §6.2's wire
// conventions (little-endian, 4-bit nibble packing for fast-scan blocks);
// struct shapes are grounded in the teacher's binary-codec style
// (encoding/binary, fixed-width little-endian fields) used throughout this
// module for on-disk formats.
package tuple

import (
	"encoding/binary"

	"github.com/arx-os/vecindex/internal/relation"
)

// MaxBatch is the maximum number of child/vector slots an H1Tuple or
// H0Tuple batch holds, per spec.md's "batch of up to 32" tuple kinds.
const MaxBatch = 32

// Pointer references a slot within a page: (page_id, slot_index), the only
// form of cross-tuple reference this module uses (spec.md §3: "No tuple
// references another by raw memory address").
type Pointer struct {
	Page relation.PageID
	Slot uint16
}

// NilPointer is the zero-value absent pointer.
var NilPointer = Pointer{Page: relation.NoPage, Slot: 0}

// IsNil reports whether p is the absent pointer.
func (p Pointer) IsNil() bool { return p.Page == relation.NoPage }

const pointerSize = 4 + 2

func putPointer(buf []byte, p Pointer) {
	binary.LittleEndian.PutUint32(buf, p.Page)
	binary.LittleEndian.PutUint16(buf[4:], p.Slot)
}

func getPointer(buf []byte) Pointer {
	return Pointer{
		Page: binary.LittleEndian.Uint32(buf),
		Slot: binary.LittleEndian.Uint16(buf[4:]),
	}
}

func putFloat32(buf []byte, v float32) {
	binary.LittleEndian.PutUint32(buf, float32bits(v))
}

func getFloat32(buf []byte) float32 {
	return float32frombits(binary.LittleEndian.Uint32(buf))
}
