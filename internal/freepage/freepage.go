// Package freepage implements the hierarchical bitmap allocator of
// spec.md §4.2 (C5): a singly-linked chain of FreepageTuple pages, each
// covering 32768 consecutive physical pages, used to recycle tuple/page
// space freed by vacuum.
//
// Ported directly from the teacher-adjacent reference algorithm in
// original_source/crates/algorithm/src/freepages.rs — mark() and fetch()
// below are a line-for-line translation of that file's control flow onto
// the Go Relation abstraction.
package freepage

import (
	"context"
	"sort"

	"github.com/arx-os/vecindex/internal/relation"
	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// WindowSize is the number of physical pages one FreepageTuple's bitmap
// covers.
const WindowSize = 32768

const bitmapBytes = WindowSize / 8

// Bitmap is the raw bit-packed payload of a FreepageTuple: one bit per page
// in its 32768-page window, little-endian within each byte.
type Bitmap [bitmapBytes]byte

// Mark sets the bit for local page index i (0 <= i < WindowSize).
func (b *Bitmap) Mark(i uint32) { b[i/8] |= 1 << (i % 8) }

// Clear clears the bit for local page index i.
func (b *Bitmap) Clear(i uint32) { b[i/8] &^= 1 << (i % 8) }

// Fetch returns the lowest set bit's index, clearing it, or false if the
// bitmap is entirely clear.
func (b *Bitmap) Fetch() (uint32, bool) {
	for byteIdx, bv := range b {
		if bv == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if bv&(1<<bit) != 0 {
				i := uint32(byteIdx*8 + bit)
				b.Clear(i)
				return i, true
			}
		}
	}
	return 0, false
}

func decodeBitmap(data []byte) (*Bitmap, error) {
	if len(data) != bitmapBytes {
		return nil, apperrors.Corruption("freepage tuple has wrong size", nil).
			WithDetails("got", len(data)).WithDetails("want", bitmapBytes)
	}
	var bm Bitmap
	copy(bm[:], data)
	return &bm, nil
}

// Mark records pages as reusable, extending the freepage chain rooted at
// head as needed to cover the windows the pages fall in.
func Mark(ctx context.Context, rel relation.Relation, head relation.PageID, pages []uint32) error {
	sorted := append([]uint32(nil), pages...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	deduped := sorted[:0]
	for i, p := range sorted {
		if i == 0 || p != sorted[i-1] {
			deduped = append(deduped, p)
		}
	}

	current, offset := head, uint32(0)
	for len(deduped) > 0 {
		var locals []uint32
		for len(deduped) > 0 && deduped[len(deduped)-1] < offset+WindowSize {
			target := deduped[len(deduped)-1]
			deduped = deduped[:len(deduped)-1]
			locals = append(locals, target-offset)
		}

		guard, err := rel.Write(ctx, current, false)
		if err != nil {
			return err
		}
		p := guard.Page()
		if p.Len() == 0 {
			if _, ok := p.Alloc(make([]byte, bitmapBytes)); !ok {
				guard.Release()
				return apperrors.Corruption("freepage tuple does not fit in a fresh page", nil)
			}
		}
		raw, ok := p.GetMut(1)
		if !ok {
			guard.Release()
			return apperrors.Corruption("freepage tuple slot missing", nil)
		}
		bm, err := decodeBitmap(raw)
		if err != nil {
			guard.Release()
			return err
		}
		for _, local := range locals {
			bm.Mark(local)
		}
		copy(raw, bm[:])

		op := p.GetOpaque()
		next := op.Next
		if next == relation.NoPage {
			extendGuard, err := rel.Extend(ctx, false)
			if err != nil {
				guard.Release()
				return err
			}
			next = extendGuard.ID()
			extendGuard.Release()
			op.Next = next
			p.SetOpaque(op)
		}
		guard.Release()
		current, offset = next, offset+WindowSize
	}
	return nil
}

// Fetch returns the lowest-numbered marked page across the chain rooted at
// head, clearing its bit, or ok=false if every window is empty.
func Fetch(ctx context.Context, rel relation.Relation, head relation.PageID) (relation.PageID, bool, error) {
	current, offset := head, uint32(0)
	for {
		guard, err := rel.Write(ctx, current, false)
		if err != nil {
			return 0, false, err
		}
		p := guard.Page()
		if p.Len() == 0 {
			guard.Release()
			return 0, false, nil
		}
		raw, ok := p.GetMut(1)
		if !ok {
			guard.Release()
			return 0, false, apperrors.Corruption("freepage tuple slot missing", nil)
		}
		bm, err := decodeBitmap(raw)
		if err != nil {
			guard.Release()
			return 0, false, err
		}
		if local, ok := bm.Fetch(); ok {
			copy(raw, bm[:])
			guard.Release()
			return local + offset, true, nil
		}
		op := p.GetOpaque()
		next := op.Next
		guard.Release()
		if next == relation.NoPage {
			return 0, false, nil
		}
		current, offset = next, offset+WindowSize
	}
}
