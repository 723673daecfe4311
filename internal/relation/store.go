package relation

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto"

	"github.com/arx-os/vecindex/internal/common/logger"
	"github.com/arx-os/vecindex/internal/page"
)

// Store is the concrete Relation implementation: a Backend for durable
// bytes, a ristretto cache for hot pages (following the shape of the
// teacher's QueryCache in internal/database/spatial_optimizer.go), one
// sync.RWMutex per page for the locking discipline spec.md §5 requires, and
// the fast-forward chain bookkeeping Extend/Write maintain on behalf of
// internal/freepage and internal/tuple callers.
type Store struct {
	backend Backend
	cache   *ristretto.Cache
	log     *logger.Logger

	locksMu sync.Mutex
	locks   map[PageID]*sync.RWMutex

	ffMu  sync.Mutex
	ffEnd map[PageID]PageID // chain head -> current tail, for trackFreespace linking
}

// Options configures a Store's cache sizing.
type Options struct {
	// CacheCost is the ristretto MaxCost in bytes for cached page content.
	CacheCost int64
}

// DefaultOptions sizes the cache for a modest working set, matching the
// teacher's 100MB QueryCache default order of magnitude scaled down to
// page-sized units.
func DefaultOptions() Options {
	return Options{CacheCost: 64 * 1024 * 1024}
}

// NewStore wraps backend with a page cache and lock table.
func NewStore(backend Backend, opts Options) (*Store, error) {
	if opts.CacheCost <= 0 {
		opts = DefaultOptions()
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: opts.CacheCost / 8,
		MaxCost:     opts.CacheCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create page cache: %w", err)
	}
	return &Store{
		backend: backend,
		cache:   cache,
		log:     logger.With("component", "relation"),
		locks:   make(map[PageID]*sync.RWMutex),
		ffEnd:   make(map[PageID]PageID),
	}, nil
}

func (s *Store) lockFor(id PageID) *sync.RWMutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Store) loadPage(id PageID) (*page.Page, error) {
	if v, ok := s.cache.Get(id); ok {
		return v.(*page.Page), nil
	}
	buf, err := s.backend.ReadAt(id)
	if err != nil {
		return nil, err
	}
	p, err := page.Wrap(buf)
	if err != nil {
		return nil, err
	}
	s.cache.Set(id, p, page.Size)
	return p, nil
}

func (s *Store) storePage(id PageID, p *page.Page) error {
	if err := s.backend.WriteAt(id, p.Bytes()); err != nil {
		return err
	}
	s.cache.Set(id, p, page.Size)
	return nil
}

type readGuard struct {
	id PageID
	p  *page.Page
	mu *sync.RWMutex
}

func (g *readGuard) ID() PageID      { return g.id }
func (g *readGuard) Page() *page.Page { return g.p }
func (g *readGuard) Release()        { g.mu.RUnlock() }

type writeGuard struct {
	s             *Store
	id            PageID
	p             *page.Page
	mu            *sync.RWMutex
	trackFreespace bool
	released      bool
}

func (g *writeGuard) ID() PageID      { return g.id }
func (g *writeGuard) Page() *page.Page { return g.p }

func (g *writeGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	if err := g.s.storePage(g.id, g.p); err != nil {
		g.s.log.Error("failed to persist page %d: %v", g.id, err)
	}
	if g.trackFreespace {
		g.s.linkFastForward(g.id, g.p)
	}
	g.mu.Unlock()
}

// Read takes a shared lock on id and decodes its current contents.
func (s *Store) Read(ctx context.Context, id PageID) (ReadGuard, error) {
	mu := s.lockFor(id)
	mu.RLock()
	p, err := s.loadPage(id)
	if err != nil {
		mu.RUnlock()
		return nil, err
	}
	return &readGuard{id: id, p: p, mu: mu}, nil
}

// Write takes an exclusive lock on id and decodes its current contents.
func (s *Store) Write(ctx context.Context, id PageID, trackFreespace bool) (WriteGuard, error) {
	mu := s.lockFor(id)
	mu.Lock()
	p, err := s.loadPage(id)
	if err != nil {
		mu.Unlock()
		return nil, err
	}
	return &writeGuard{s: s, id: id, p: p, mu: mu, trackFreespace: trackFreespace}, nil
}

// Extend always grows the backend by one fresh page. Callers that want to
// recycle freepage-bitmap pages first should consult internal/freepage and
// only fall back to Extend when it reports nothing reusable.
func (s *Store) Extend(ctx context.Context, trackFreespace bool) (WriteGuard, error) {
	id, err := s.backend.Extend()
	if err != nil {
		return nil, err
	}
	mu := s.lockFor(id)
	mu.Lock()
	p := page.New()
	s.cache.Set(id, p, page.Size)
	return &writeGuard{s: s, id: id, p: p, mu: mu, trackFreespace: trackFreespace}, nil
}

// Search walks the fast-forward chain rooted at head looking for a page
// with enough freespace, returning a write guard already holding it.
func (s *Store) Search(ctx context.Context, head PageID, needed int) (WriteGuard, bool, error) {
	current := head
	for current != NoPage {
		g, err := s.Write(ctx, current, true)
		if err != nil {
			return nil, false, err
		}
		if g.Page().Freespace() >= needed {
			return g, true, nil
		}
		next := g.Page().GetOpaque().FastForward
		g.Release()
		current = next
	}
	return nil, false, nil
}

// linkFastForward records id as its own fast-forward chain tail if no chain
// tracks it yet, called from Release when trackFreespace was requested and
// the page still has room. It does not change any page's FastForward pointer.
func (s *Store) linkFastForward(id PageID, p *page.Page) {
	if p.Freespace() <= 0 {
		return
	}
	op := p.GetOpaque()
	if op.FastForward != NoPage {
		return // already linked further down the chain
	}
	s.ffMu.Lock()
	defer s.ffMu.Unlock()
	// id becomes the tail of whichever chain it belongs to; record it under
	// its own key so the next linked page can find it. Callers
	// (internal/tuple, internal/build) are responsible for calling
	// LinkChainHead once to seed a chain's head->tail entry; absent that,
	// this page simply becomes a (so far headless) single-page chain.
	if _, seeded := s.ffEnd[id]; !seeded {
		s.ffEnd[id] = id
	}
}

// LinkChainHead records that head is (for now) its own chain tail, so the
// first Search/Extend call against it has a starting point. Build and
// insert call this once per freshly created chain head.
func (s *Store) LinkChainHead(head PageID) {
	s.ffMu.Lock()
	defer s.ffMu.Unlock()
	if _, ok := s.ffEnd[head]; !ok {
		s.ffEnd[head] = head
	}
}

// AppendToChain links a freshly extended page onto the fast-forward chain
// rooted at head, updating the tracked tail pointer. Called by insert/build
// right after Extend(trackFreespace=true) when the new page must become
// reachable from head.
func (s *Store) AppendToChain(ctx context.Context, head, newPage PageID) error {
	s.ffMu.Lock()
	tail, ok := s.ffEnd[head]
	if !ok {
		tail = head
	}
	s.ffEnd[head] = newPage
	s.ffMu.Unlock()

	g, err := s.Write(ctx, tail, false)
	if err != nil {
		return err
	}
	defer g.Release()
	op := g.Page().GetOpaque()
	op.FastForward = newPage
	g.Page().SetOpaque(op)
	return nil
}

// Prefetch hints that id will likely be read soon by warming the cache.
func (s *Store) Prefetch(id PageID) {
	if _, ok := s.cache.Get(id); ok {
		return
	}
	go func() {
		if p, err := s.loadPage(id); err == nil {
			s.cache.Set(id, p, page.Size)
		}
	}()
}

// ReadBatch issues concurrent reads for every id, preserving input order in
// the returned slice. This backs the Stream prefetch strategy (§4.7.1).
func (s *Store) ReadBatch(ctx context.Context, ids []PageID) ([]ReadGuard, error) {
	out := make([]ReadGuard, len(ids))
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id PageID) {
			defer wg.Done()
			g, err := s.Read(ctx, id)
			out[i], errs[i] = g, err
		}(i, id)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			for _, g := range out {
				if g != nil {
					g.Release()
				}
			}
			return nil, err
		}
	}
	return out, nil
}

// NumPages reports the current page count.
func (s *Store) NumPages() PageID { return s.backend.NumPages() }

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }
