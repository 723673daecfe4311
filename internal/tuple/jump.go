package tuple

import (
	"encoding/binary"

	"github.com/arx-os/vecindex/internal/relation"
	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// Jump is the level-0 sentinel tuple: the entry point into the H0 leaf
// chain associated with one first-level cluster, per spec.md §3.
type Jump struct {
	FirstH0 relation.PageID
}

func (j Jump) Encode() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, j.FirstH0)
	return buf
}

func DecodeJump(data []byte) (Jump, error) {
	if len(data) != 4 {
		return Jump{}, apperrors.Corruption("jump tuple has wrong size", nil)
	}
	return Jump{FirstH0: binary.LittleEndian.Uint32(data)}, nil
}
