// Package page implements the slotted 8 KiB page format described in
// spec.md §3 "Page-level entities" and §4.1: an array of (offset, length)
// slot descriptors growing from the front, payload bytes growing from the
// back, and a fixed-size opaque footer carrying chain-linkage fields.
//
// Ported from the page/tuple split used throughout the teacher's storage
// layer (arx-os-arxos's repository/db packages keep wire format and
// in-memory model separate); here the wire format IS the in-memory
// representation, since every tuple is persisted byte-for-byte.
package page

import (
	"encoding/binary"

	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// Size is the fixed physical page size, matching spec.md §3.
const Size = 8192

const (
	headerSize = 8 // NumSlots uint16, FreeStart uint16, FreeEnd uint16, Flags uint16
	itemIDSize = 4 // Offset uint16, Length uint16
	opaqueSize = 8 // Next uint32, FastForward uint32
)

// Opaque is the fixed-size footer present on every non-meta page.
type Opaque struct {
	// Next is the id of the sibling page in this tuple's chain, or
	// math.MaxUint32 ("NoPage") if this is the chain's terminal page.
	Next uint32
	// FastForward links a chain's pages that still have room for new
	// tuples (see relation.Store.AppendToChain); NoPage when the page has
	// no such successor, which New sets on every fresh page.
	FastForward uint32
}

// NoPage is the terminal/absent page-id sentinel (u32::MAX in spec.md §6.2).
const NoPage uint32 = 1<<32 - 1

// Page is a fixed Size-byte buffer with slotted layout. The zero value is
// not valid; use New or Wrap.
type Page struct {
	buf []byte
}

// New allocates a fresh, empty page with both opaque fields set to NoPage.
func New() *Page {
	p := &Page{buf: make([]byte, Size)}
	p.setNumSlots(0)
	p.setFreeStart(headerSize)
	p.setFreeEnd(Size - opaqueSize)
	op := Opaque{Next: NoPage, FastForward: NoPage}
	p.SetOpaque(op)
	return p
}

// Wrap interprets an existing Size-byte buffer as a page without copying.
// The caller must guarantee len(buf) == Size.
func Wrap(buf []byte) (*Page, error) {
	if len(buf) != Size {
		return nil, apperrors.Corruption("page buffer has wrong size", nil).
			WithDetails("got", len(buf)).WithDetails("want", Size)
	}
	return &Page{buf: buf}, nil
}

// Bytes returns the page's raw backing buffer, for writing to storage.
func (p *Page) Bytes() []byte { return p.buf }

func (p *Page) numSlots() int        { return int(binary.LittleEndian.Uint16(p.buf[0:2])) }
func (p *Page) setNumSlots(n int)    { binary.LittleEndian.PutUint16(p.buf[0:2], uint16(n)) }
func (p *Page) freeStart() int       { return int(binary.LittleEndian.Uint16(p.buf[2:4])) }
func (p *Page) setFreeStart(v int)   { binary.LittleEndian.PutUint16(p.buf[2:4], uint16(v)) }
func (p *Page) freeEnd() int         { return int(binary.LittleEndian.Uint16(p.buf[4:6])) }
func (p *Page) setFreeEnd(v int)     { binary.LittleEndian.PutUint16(p.buf[4:6], uint16(v)) }

func (p *Page) itemIDOffset(slot int) int { return headerSize + (slot-1)*itemIDSize }

func (p *Page) itemID(slot int) (offset, length int) {
	base := p.itemIDOffset(slot)
	offset = int(binary.LittleEndian.Uint16(p.buf[base : base+2]))
	length = int(binary.LittleEndian.Uint16(p.buf[base+2 : base+4]))
	return
}

func (p *Page) setItemID(slot, offset, length int) {
	base := p.itemIDOffset(slot)
	binary.LittleEndian.PutUint16(p.buf[base:base+2], uint16(offset))
	binary.LittleEndian.PutUint16(p.buf[base+2:base+4], uint16(length))
}

// Len returns the number of slot entries ever allocated (including slots
// later freed via Free, which are tombstoned rather than renumbered).
func (p *Page) Len() int { return p.numSlots() }

// Get returns the bytes stored at slot, or false if the slot is out of
// range or has been freed.
func (p *Page) Get(slot int) ([]byte, bool) {
	if slot < 1 || slot > p.numSlots() {
		return nil, false
	}
	offset, length := p.itemID(slot)
	if length == 0 {
		return nil, false
	}
	return p.buf[offset : offset+length], true
}

// GetMut returns a mutable view of the bytes stored at slot. Since Go slices
// already alias the page's backing array, this is Get in a mutable-sounding
// name kept for symmetry with the slotted-page vocabulary in spec.md §4.1.
func (p *Page) GetMut(slot int) ([]byte, bool) { return p.Get(slot) }

// Freespace reports how many bytes remain available for a new slot,
// including the bytes a new item-id descriptor itself would consume.
func (p *Page) Freespace() int {
	return p.freeEnd() - p.freeStart()
}

// Alloc appends data as a new slot, returning its 1-based slot index, or
// false if it does not fit. A tuple that cannot fit in a page in ANY state
// (i.e. larger than Size-headerSize-itemIDSize-opaqueSize) is a static
// invariant violation the caller must not attempt — every tuple kind in
// internal/tuple is bounded well under that.
func (p *Page) Alloc(data []byte) (int, bool) {
	needed := len(data) + itemIDSize
	if needed > p.Freespace() {
		return 0, false
	}
	slot := p.numSlots() + 1
	newFreeEnd := p.freeEnd() - len(data)
	copy(p.buf[newFreeEnd:newFreeEnd+len(data)], data)
	p.setItemID(slot, newFreeEnd, len(data))
	p.setFreeEnd(newFreeEnd)
	p.setFreeStart(p.freeStart() + itemIDSize)
	p.setNumSlots(slot)
	return slot, true
}

// Free tombstones slot: its descriptor's length is zeroed so Get reports it
// absent, but the payload bytes and slot numbering are left untouched until
// a Rebuild reclaims the space. This matches spec.md §4.8: vacuum's pass 1
// only needs dead slots to stop being visible, and leaves compaction to an
// explicit rebuild.
func (p *Page) Free(slot int) {
	if slot < 1 || slot > p.numSlots() {
		return
	}
	p.setItemID(slot, 0, 0)
}

// Rebuild compacts the page in place, keeping only the slots for which keep
// returns true. Surviving slots retain their original slot numbers; dropped
// slots become permanent holes (Get returns false) until the page itself is
// freed. This implements the in-place rebuild spec.md §4.8 requires of H0
// pages during vacuum's first pass.
func (p *Page) Rebuild(keep func(slot int) bool) {
	type survivor struct {
		slot int
		data []byte
	}
	var keepers []survivor
	for slot := 1; slot <= p.numSlots(); slot++ {
		data, ok := p.Get(slot)
		if !ok {
			continue
		}
		if keep(slot) {
			cp := make([]byte, len(data))
			copy(cp, data)
			keepers = append(keepers, survivor{slot, cp})
		}
	}
	op := p.GetOpaque()
	n := p.numSlots()
	for slot := 1; slot <= n; slot++ {
		p.setItemID(slot, 0, 0)
	}
	p.setFreeEnd(Size - opaqueSize)
	for _, k := range keepers {
		newFreeEnd := p.freeEnd() - len(k.data)
		copy(p.buf[newFreeEnd:newFreeEnd+len(k.data)], k.data)
		p.setItemID(k.slot, newFreeEnd, len(k.data))
		p.setFreeEnd(newFreeEnd)
	}
	p.setNumSlots(n)
	p.setFreeStart(headerSize + n*itemIDSize)
	p.SetOpaque(op)
}

// IsEmpty reports whether every slot on the page is either unallocated or
// tombstoned — the condition spec.md §4.8 pass 2 uses to decide whether a
// data page can be returned to the freepage allocator.
func (p *Page) IsEmpty() bool {
	for slot := 1; slot <= p.numSlots(); slot++ {
		if _, ok := p.Get(slot); ok {
			return false
		}
	}
	return true
}

// GetOpaque decodes the fixed footer.
func (p *Page) GetOpaque() Opaque {
	base := Size - opaqueSize
	return Opaque{
		Next:        binary.LittleEndian.Uint32(p.buf[base : base+4]),
		FastForward: binary.LittleEndian.Uint32(p.buf[base+4 : base+8]),
	}
}

// SetOpaque encodes the fixed footer.
func (p *Page) SetOpaque(op Opaque) {
	base := Size - opaqueSize
	binary.LittleEndian.PutUint32(p.buf[base:base+4], op.Next)
	binary.LittleEndian.PutUint32(p.buf[base+4:base+8], op.FastForward)
}

// MaxPayload is the largest single slot Alloc can ever accept on a freshly
// allocated page — the static bound implementers must keep every tuple kind
// under, per spec.md §4.6.
const MaxPayload = Size - headerSize - itemIDSize - opaqueSize
