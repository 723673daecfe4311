package tuple

import (
	"encoding/binary"

	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// H0 is a leaf-level batch of up to MaxBatch stored vectors, per spec.md
// §3's H0Tuple row: a CodeBatch plus, per slot, the payload, a pointer to
// the slot's full-precision VectorTuple, and a residual-flag bitmask.
type H0 struct {
	Codes    CodeBatch
	Payload  [MaxBatch]uint64
	MeanPtr  [MaxBatch]Pointer
	Residual uint32 // bit i set iff slot i's code was built against a residual
}

// NewH0 allocates an empty H0 batch for the given dimensionality.
func NewH0(dims uint32) H0 {
	return H0{Codes: NewCodeBatch(dims)}
}

func (h H0) Encode() []byte {
	size := h.Codes.encodedSize() + MaxBatch*8 + MaxBatch*pointerSize + 4
	buf := make([]byte, size)
	off := h.Codes.encodeInto(buf)
	for i := 0; i < MaxBatch; i++ {
		binary.LittleEndian.PutUint64(buf[off:], h.Payload[i])
		off += 8
	}
	for i := 0; i < MaxBatch; i++ {
		putPointer(buf[off:], h.MeanPtr[i])
		off += pointerSize
	}
	binary.LittleEndian.PutUint32(buf[off:], h.Residual)
	return buf
}

func DecodeH0(data []byte) (H0, error) {
	codes, off, err := decodeCodeBatch(data)
	if err != nil {
		return H0{}, err
	}
	need := off + MaxBatch*8 + MaxBatch*pointerSize + 4
	if len(data) < need {
		return H0{}, apperrors.Corruption("h0 tuple too short", nil)
	}
	var h H0
	h.Codes = codes
	for i := 0; i < MaxBatch; i++ {
		h.Payload[i] = binary.LittleEndian.Uint64(data[off:])
		off += 8
	}
	for i := 0; i < MaxBatch; i++ {
		h.MeanPtr[i] = getPointer(data[off:])
		off += pointerSize
	}
	h.Residual = binary.LittleEndian.Uint32(data[off:])
	return h, nil
}

// IsResidual reports whether slot i's code was built against a residual.
func (h *H0) IsResidual(i int) bool { return h.Residual&(1<<uint(i)) != 0 }

// SetResidual marks slot i's residual flag.
func (h *H0) SetResidual(i int, residual bool) {
	if residual {
		h.Residual |= 1 << uint(i)
	} else {
		h.Residual &^= 1 << uint(i)
	}
}
