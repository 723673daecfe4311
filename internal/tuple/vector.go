package tuple

import (
	"context"
	"encoding/binary"

	"github.com/arx-os/vecindex/internal/page"
	"github.com/arx-os/vecindex/internal/relation"
	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// vectorHeaderSize: Payload(u64) + HasNext(u8) + Next(Pointer) + NumElements(u16).
const vectorHeaderSize = 8 + 1 + pointerSize + 2

// maxVectorElements bounds how many f32 elements fit in a single
// VectorTuple slot (leaving a little slack below page.MaxPayload for the
// item-id descriptor Alloc itself also charges for), used to split large
// vectors across a chain.
const maxVectorElements = (page.MaxPayload - vectorHeaderSize) / 4

// Vector is one slice of a (possibly chained) full-precision vector.
// Payload is nonzero only on the head slice; non-head slices link forward
// via Next.
type Vector struct {
	Payload  uint64 // 0 on non-head slices
	HasNext  bool
	Next     Pointer
	Elements []float32
}

// Encode serializes v.
func (v Vector) Encode() []byte {
	buf := make([]byte, vectorHeaderSize+len(v.Elements)*4)
	binary.LittleEndian.PutUint64(buf[0:], v.Payload)
	buf[8] = boolByte(v.HasNext)
	off := 9
	putPointer(buf[off:], v.Next)
	off += pointerSize
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(v.Elements)))
	off += 2
	for _, e := range v.Elements {
		putFloat32(buf[off:], e)
		off += 4
	}
	return buf
}

// DecodeVector parses a VectorTuple payload.
func DecodeVector(data []byte) (Vector, error) {
	if len(data) < vectorHeaderSize {
		return Vector{}, apperrors.Corruption("vector tuple too short", nil)
	}
	var v Vector
	v.Payload = binary.LittleEndian.Uint64(data[0:])
	v.HasNext = data[8] != 0
	off := 9
	v.Next = getPointer(data[off:])
	off += pointerSize
	n := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	if len(data) != vectorHeaderSize+n*4 {
		return Vector{}, apperrors.Corruption("vector tuple length mismatch", nil).
			WithDetails("declared_elements", n).WithDetails("got_bytes", len(data))
	}
	v.Elements = make([]float32, n)
	for i := range v.Elements {
		v.Elements[i] = getFloat32(data[off:])
		off += 4
	}
	return v, nil
}

// WriteVectorChain serializes a full-precision vector (split across
// multiple tuples if it exceeds one page's capacity) into the relation,
// placing each slice via rel.Search(needed) on headChain and extending the
// chain when no page has room, per spec.md §4.6 step 5. It returns a
// Pointer to the head slice.
func WriteVectorChain(ctx context.Context, rel relation.Relation, headChain relation.PageID, payload uint64, elements []float32) (Pointer, error) {
	// Build slices back-to-front so each can record its successor pointer.
	var chunks [][]float32
	for start := 0; start < len(elements); start += maxVectorElements {
		end := start + maxVectorElements
		if end > len(elements) {
			end = len(elements)
		}
		chunks = append(chunks, elements[start:end])
	}
	if len(chunks) == 0 {
		chunks = [][]float32{nil}
	}

	var headPtr Pointer
	var nextPtr Pointer
	hasNext := false
	for i := len(chunks) - 1; i >= 0; i-- {
		v := Vector{Elements: chunks[i], HasNext: hasNext, Next: nextPtr}
		if i == 0 {
			v.Payload = payload
		}
		ptr, err := placeTuple(ctx, rel, headChain, v.Encode())
		if err != nil {
			return Pointer{}, err
		}
		nextPtr = ptr
		hasNext = true
		headPtr = ptr
	}
	return headPtr, nil
}

// placeTuple writes data into the first page in headChain's fast-forward
// chain with enough room, extending and linking a fresh page if none has
// space, then returns a Pointer to the new slot.
func placeTuple(ctx context.Context, rel relation.Relation, headChain relation.PageID, data []byte) (Pointer, error) {
	needed := len(data) + 4 // conservative item-id overhead estimate
	g, ok, err := rel.Search(ctx, headChain, needed)
	if err != nil {
		return Pointer{}, err
	}
	if !ok {
		g, err = rel.Extend(ctx, true)
		if err != nil {
			return Pointer{}, err
		}
		if linker, ok := rel.(interface {
			AppendToChain(ctx context.Context, head, newPage relation.PageID) error
		}); ok {
			if err := linker.AppendToChain(ctx, headChain, g.ID()); err != nil {
				g.Release()
				return Pointer{}, err
			}
		}
	}
	slot, ok := g.Page().Alloc(data)
	if !ok {
		g.Release()
		return Pointer{}, apperrors.Corruption("tuple does not fit in a fresh page", nil)
	}
	ptr := Pointer{Page: g.ID(), Slot: uint16(slot)}
	g.Release()
	return ptr, nil
}

// ReadVectorChain reassembles the full vector starting at head.
func ReadVectorChain(ctx context.Context, rel relation.Relation, head Pointer) ([]float32, uint64, error) {
	var elements []float32
	var payload uint64
	first := true
	cur := head
	for {
		g, err := rel.Read(ctx, cur.Page)
		if err != nil {
			return nil, 0, err
		}
		raw, ok := g.Page().Get(int(cur.Slot))
		if !ok {
			g.Release()
			return nil, 0, apperrors.Corruption("vector tuple slot missing", nil)
		}
		v, err := DecodeVector(raw)
		g.Release()
		if err != nil {
			return nil, 0, err
		}
		if first {
			payload = v.Payload
			first = false
		}
		elements = append(elements, v.Elements...)
		if !v.HasNext {
			break
		}
		cur = v.Next
	}
	return elements, payload, nil
}
