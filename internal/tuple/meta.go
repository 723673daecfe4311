package tuple

import (
	"context"
	"encoding/binary"

	"github.com/arx-os/vecindex/internal/relation"
	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// Metric mirrors codec.Metric without importing it, so tuple stays a leaf
// package: the numeric encoding is the contract.
type Metric uint8

const (
	MetricL2  Metric = 0
	MetricDot Metric = 1
)

// MetaPage is the fixed physical location of the MetaTuple, per spec.md §3.
const MetaPage relation.PageID = 0

// MetaSlot is the fixed slot within MetaPage.
const MetaSlot = 1

// Meta is the index root: dimensionality, tree shape, and the four entry
// pointers every descent starts from.
type Meta struct {
	Dims         uint32
	HeightOfRoot uint8 // 1..8
	IsResidual   bool
	RerankInHeap bool
	Metric       Metric

	RootCentroid Pointer       // centroid VectorTuple
	RootFirst    relation.PageID // root level's first H1/Jump page
	FreepageHead relation.PageID
	VectorsFirst relation.PageID
}

const metaEncodedSize = 4 + 1 + 1 + 1 + 1 + pointerSize + 4 + 4 + 4

// Encode serializes m into a fixed-size payload.
func (m Meta) Encode() []byte {
	buf := make([]byte, metaEncodedSize)
	binary.LittleEndian.PutUint32(buf[0:], m.Dims)
	buf[4] = m.HeightOfRoot
	buf[5] = boolByte(m.IsResidual)
	buf[6] = boolByte(m.RerankInHeap)
	buf[7] = byte(m.Metric)
	off := 8
	putPointer(buf[off:], m.RootCentroid)
	off += pointerSize
	binary.LittleEndian.PutUint32(buf[off:], m.RootFirst)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], m.FreepageHead)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], m.VectorsFirst)
	return buf
}

// DecodeMeta parses a MetaTuple payload.
func DecodeMeta(data []byte) (Meta, error) {
	if len(data) != metaEncodedSize {
		return Meta{}, apperrors.Corruption("meta tuple has wrong size", nil).
			WithDetails("got", len(data)).WithDetails("want", metaEncodedSize)
	}
	var m Meta
	m.Dims = binary.LittleEndian.Uint32(data[0:])
	m.HeightOfRoot = data[4]
	m.IsResidual = data[5] != 0
	m.RerankInHeap = data[6] != 0
	m.Metric = Metric(data[7])
	if m.HeightOfRoot < 1 || m.HeightOfRoot > 8 {
		return Meta{}, apperrors.Corruption("height_of_root out of range", nil).
			WithDetails("height_of_root", m.HeightOfRoot)
	}
	off := 8
	m.RootCentroid = getPointer(data[off:])
	off += pointerSize
	m.RootFirst = binary.LittleEndian.Uint32(data[off:])
	off += 4
	m.FreepageHead = binary.LittleEndian.Uint32(data[off:])
	off += 4
	m.VectorsFirst = binary.LittleEndian.Uint32(data[off:])
	return m, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// ReadMeta loads the MetaTuple from page 0, slot 1.
func ReadMeta(ctx context.Context, rel relation.Relation) (Meta, error) {
	g, err := rel.Read(ctx, MetaPage)
	if err != nil {
		return Meta{}, err
	}
	defer g.Release()
	raw, ok := g.Page().Get(MetaSlot)
	if !ok {
		return Meta{}, apperrors.Corruption("meta tuple slot missing", nil)
	}
	return DecodeMeta(raw)
}

// WriteMeta installs or replaces the MetaTuple on page 0, slot 1. Callers
// must have already extended the relation so page 0 exists. MetaTuple is
// fixed-size, so an update after the first write copies in place rather
// than reallocating a slot (which would bump the slot number).
func WriteMeta(ctx context.Context, rel relation.Relation, m Meta) error {
	g, err := rel.Write(ctx, MetaPage, false)
	if err != nil {
		return err
	}
	defer g.Release()
	p := g.Page()
	encoded := m.Encode()
	if p.Len() == 0 {
		slot, ok := p.Alloc(encoded)
		if !ok {
			return apperrors.Corruption("meta tuple does not fit on page 0", nil)
		}
		if slot != MetaSlot {
			return apperrors.Corruption("meta tuple allocated at unexpected slot", nil).
				WithDetails("slot", slot)
		}
		return nil
	}
	existing, ok := p.GetMut(MetaSlot)
	if !ok || len(existing) != len(encoded) {
		return apperrors.Corruption("meta tuple slot missing or wrong size", nil)
	}
	copy(existing, encoded)
	return nil
}
