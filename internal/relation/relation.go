// Package relation implements the Relation abstraction spec.md §4.1 and §9
// describe: a handle over a numbered sequence of fixed-size pages with
// locked read/write access, extension, fast-forward free-space search, and
// prefetch hints. It wraps whatever the host's buffer manager actually is —
// here, a pluggable Backend plus a ristretto-backed page cache, mirroring
// the teacher's QueryCache in internal/database/spatial_optimizer.go — so
// every other package in this module is generic over *Relation and never
// touches raw storage.
package relation

import (
	"context"

	"github.com/arx-os/vecindex/internal/page"
	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// PageID identifies a page within a Relation.
type PageID = uint32

// NoPage is the terminal/absent page-id sentinel, re-exported from page for
// callers that only import relation.
const NoPage = page.NoPage

// ReadGuard is a shared lock on one page. Release must be called exactly
// once; every exit path (including error returns) must still release.
type ReadGuard interface {
	ID() PageID
	Page() *page.Page
	Release()
}

// WriteGuard is an exclusive lock on one page. Mutations made through
// Page() are persisted back to the Backend when Release is called.
type WriteGuard interface {
	ID() PageID
	Page() *page.Page
	Release()
}

// Relation is the storage handle every algorithm package depends on.
type Relation interface {
	// Read takes a shared lock on page id.
	Read(ctx context.Context, id PageID) (ReadGuard, error)
	// Write takes an exclusive lock on page id. trackFreespace toggles
	// whether, when released with freespace remaining and no FastForward
	// successor, the page is recorded as its own fast-forward chain tail;
	// linking it onto a chain is done by Store.AppendToChain.
	Write(ctx context.Context, id PageID, trackFreespace bool) (WriteGuard, error)
	// Extend allocates a fresh page by growing the backend; it does not
	// consult the freepage bitmap.
	Extend(ctx context.Context, trackFreespace bool) (WriteGuard, error)
	// Search walks the fast-forward chain rooted at head looking for a
	// page with at least `needed` bytes of freespace. Returns ok=false
	// (not an error) if no such page exists in the chain.
	Search(ctx context.Context, head PageID, needed int) (guard WriteGuard, ok bool, err error)
	// Prefetch hints that id will likely be read soon; it never blocks.
	Prefetch(id PageID)
	// ReadBatch performs a batch of reads, issuing the underlying backend
	// fetches concurrently. Used by the Stream prefetch strategy (§4.7.1).
	ReadBatch(ctx context.Context, ids []PageID) ([]ReadGuard, error)
	// NumPages reports the current page count.
	NumPages() PageID
	// Close releases backend resources.
	Close() error
}

func badPageID(id PageID) error {
	return apperrors.Corruption("page id out of range", nil).WithDetails("id", id)
}
