package tuple

import (
	"encoding/binary"

	"github.com/arx-os/vecindex/internal/relation"
	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// H1 is an internal-node batch of up to MaxBatch child descriptors, per
// spec.md §3's H1Tuple row: a CodeBatch plus, per slot, the child's
// centroid VectorTuple pointer and its level-below first page.
type H1 struct {
	Codes         CodeBatch
	ChildCentroid [MaxBatch]Pointer
	ChildFirst    [MaxBatch]relation.PageID
}

// NewH1 allocates an empty H1 batch for the given dimensionality.
func NewH1(dims uint32) H1 {
	h := H1{Codes: NewCodeBatch(dims)}
	for i := range h.ChildFirst {
		h.ChildFirst[i] = relation.NoPage
	}
	return h
}

func (h H1) Encode() []byte {
	size := h.Codes.encodedSize() + MaxBatch*(pointerSize+4)
	buf := make([]byte, size)
	off := h.Codes.encodeInto(buf)
	for i := 0; i < MaxBatch; i++ {
		putPointer(buf[off:], h.ChildCentroid[i])
		off += pointerSize
	}
	for i := 0; i < MaxBatch; i++ {
		binary.LittleEndian.PutUint32(buf[off:], h.ChildFirst[i])
		off += 4
	}
	return buf
}

func DecodeH1(data []byte) (H1, error) {
	codes, off, err := decodeCodeBatch(data)
	if err != nil {
		return H1{}, err
	}
	need := off + MaxBatch*(pointerSize+4)
	if len(data) < need {
		return H1{}, apperrors.Corruption("h1 tuple too short", nil)
	}
	var h H1
	h.Codes = codes
	for i := 0; i < MaxBatch; i++ {
		h.ChildCentroid[i] = getPointer(data[off:])
		off += pointerSize
	}
	for i := 0; i < MaxBatch; i++ {
		h.ChildFirst[i] = binary.LittleEndian.Uint32(data[off:])
		off += 4
	}
	return h, nil
}
