package relation

import (
	"os"
	"sync"

	"github.com/arx-os/vecindex/internal/page"
)

// Backend is the raw durable storage beneath a Relation: a flat array of
// Size-byte pages addressed by id. spec.md §9 leaves paged storage
// unspecified beyond "lockable fixed-size pages"; Backend is that seam.
type Backend interface {
	ReadAt(id PageID) ([]byte, error)
	WriteAt(id PageID, data []byte) error
	Extend() (PageID, error)
	NumPages() PageID
	Close() error
}

// MemBackend is an in-memory Backend, used by tests and by embedded use of
// the index without a separate data file.
type MemBackend struct {
	mu    sync.Mutex
	pages [][]byte
}

// NewMemBackend creates an empty in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{}
}

func (b *MemBackend) ReadAt(id PageID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(id) >= len(b.pages) {
		return nil, badPageID(id)
	}
	out := make([]byte, page.Size)
	copy(out, b.pages[id])
	return out, nil
}

func (b *MemBackend) WriteAt(id PageID, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(id) >= len(b.pages) {
		return badPageID(id)
	}
	copy(b.pages[id], data)
	return nil
}

func (b *MemBackend) Extend() (PageID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := PageID(len(b.pages))
	buf := make([]byte, page.Size)
	copy(buf, page.New().Bytes())
	b.pages = append(b.pages, buf)
	return id, nil
}

func (b *MemBackend) NumPages() PageID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return PageID(len(b.pages))
}

func (b *MemBackend) Close() error { return nil }

// FileBackend is a Backend persisted to a single flat file on disk, one
// Size-byte page per slot, addressed by id*Size offset.
type FileBackend struct {
	mu sync.Mutex
	f  *os.File
	n  PageID
}

// OpenFileBackend opens (creating if absent) path as a page file.
func OpenFileBackend(path string) (*FileBackend, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileBackend{f: f, n: PageID(info.Size() / page.Size)}, nil
}

func (b *FileBackend) ReadAt(id PageID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id >= b.n {
		return nil, badPageID(id)
	}
	buf := make([]byte, page.Size)
	if _, err := b.f.ReadAt(buf, int64(id)*page.Size); err != nil {
		return nil, err
	}
	return buf, nil
}

func (b *FileBackend) WriteAt(id PageID, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id >= b.n {
		return badPageID(id)
	}
	_, err := b.f.WriteAt(data, int64(id)*page.Size)
	return err
}

func (b *FileBackend) Extend() (PageID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.n
	if _, err := b.f.WriteAt(page.New().Bytes(), int64(id)*page.Size); err != nil {
		return 0, err
	}
	b.n++
	return id, nil
}

func (b *FileBackend) NumPages() PageID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

func (b *FileBackend) Close() error {
	return b.f.Close()
}
