// Package vector is the public facade over the index engine: one Index
// per relation, wrapping build/insert/search/vacuum/snapshot into a single
// embeddable type. Grounded on spec.md §6.1's access-method contract (the
// host only ever needs open/build/insert/search/vacuum/snapshot) and on
// the teacher's pattern of a thin public package sitting in front of an
// internal/ implementation (e.g. how arx-os-arxos's top-level packages
// front their internal/ engine).
package vector

import (
	"context"
	"time"

	"github.com/arx-os/vecindex/internal/build"
	"github.com/arx-os/vecindex/internal/codec"
	"github.com/arx-os/vecindex/internal/insert"
	"github.com/arx-os/vecindex/internal/metrics"
	"github.com/arx-os/vecindex/internal/relation"
	"github.com/arx-os/vecindex/internal/search"
	"github.com/arx-os/vecindex/internal/snapshot"
	"github.com/arx-os/vecindex/internal/tuple"
	"github.com/arx-os/vecindex/internal/vacuum"
	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// Metric selects the distance function an Index is built with.
type Metric int

const (
	L2 Metric = iota
	Dot
)

func (m Metric) toTuple() tuple.Metric {
	if m == Dot {
		return tuple.MetricDot
	}
	return tuple.MetricL2
}

// Element names a vector's on-disk coordinate representation. spec.md's
// generic vector type is parameterized by (Element, Metric); this engine
// currently implements only F32 end to end (codec, tuple, and simd are all
// monomorphic on float32), so Open rejects F16. The type is kept in the
// public surface so a host can express intent and so a future F16 codec
// slots in without an API break.
type Element int

const (
	F32 Element = iota
	F16
)

// Options configures Open/OpenMem. Dims and Metric are required; they are
// fixed for the lifetime of the index once Build has run.
type Options struct {
	Dims    int
	Metric  Metric
	Element Element
	Seed    int64

	// Collectors, if set, receives per-operation observations. Nil disables
	// instrumentation.
	Collectors *metrics.Collectors
}

// Index is an embeddable, disk-resident ANN index: build once, then insert
// and search concurrently, with periodic vacuum and snapshot.
type Index struct {
	backend relation.Backend
	rel     relation.Relation
	rotator *codec.Rotator

	dims   int
	metric tuple.Metric
	seed   int64

	collectors *metrics.Collectors
}

// Open opens (creating if absent) a file-backed Index at path.
func Open(path string, opts Options) (*Index, error) {
	backend, err := relation.OpenFileBackend(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeResourceExhausted, "open index file", err)
	}
	return newIndex(backend, opts)
}

// OpenMem creates an in-memory Index, useful for tests and ephemeral use.
func OpenMem(opts Options) (*Index, error) {
	return newIndex(relation.NewMemBackend(), opts)
}

func newIndex(backend relation.Backend, opts Options) (*Index, error) {
	if opts.Element != F32 {
		return nil, apperrors.InvalidInput("only the F32 element type is implemented", nil)
	}
	if opts.Dims <= 0 {
		return nil, apperrors.InvalidInput("dims must be positive", nil)
	}

	rel, err := relation.NewStore(backend, relation.DefaultOptions())
	if err != nil {
		return nil, err
	}

	ix := &Index{
		backend:    backend,
		rel:        rel,
		dims:       opts.Dims,
		metric:     opts.Metric.toTuple(),
		seed:       opts.Seed,
		collectors: opts.Collectors,
	}

	if backend.NumPages() > 0 {
		if meta, err := tuple.ReadMeta(context.Background(), rel); err == nil {
			ix.dims = int(meta.Dims)
			ix.metric = meta.Metric
			ix.rotator = codec.NewRotator(ix.dims, ix.seed)
		}
	}
	return ix, nil
}

// Close releases the backing storage.
func (ix *Index) Close() error { return ix.backend.Close() }

// BuildSource yields (payload, vector) pairs for Build, matching
// build.Source.
type BuildSource = build.Source

// BuildOptions configures Build's hierarchical k-means clustering.
type BuildOptions struct {
	Lists          []int
	SamplingFactor int
	Residual       bool
	Normalize      bool
	Workers        int
}

// Build clusters the vectors yielded by src and materializes the resulting
// tree, replacing any prior content. The Index must not be concurrently
// searched or inserted into while Build runs.
func (ix *Index) Build(ctx context.Context, src BuildSource, opts BuildOptions) (build.Stats, error) {
	start := time.Now()
	stats, err := build.Internal(ctx, ix.rel, build.Options{
		Dims:           uint32(ix.dims),
		Metric:         ix.metric,
		Residual:       opts.Residual,
		Lists:          opts.Lists,
		SamplingFactor: opts.SamplingFactor,
		Normalize:      opts.Normalize,
		Seed:           ix.seed,
		Workers:        opts.Workers,
	}, src)
	if ix.collectors != nil {
		ix.collectors.ObserveBuild(time.Since(start), stats.Sampled)
	}
	if err != nil {
		return stats, err
	}
	ix.rotator = codec.NewRotator(ix.dims, ix.seed)
	return stats, nil
}

// Insert adds one vector under payload to a built Index.
func (ix *Index) Insert(ctx context.Context, payload uint64, vec []float32) error {
	if ix.rotator == nil {
		return apperrors.InvalidInput("index has not been built", nil)
	}
	start := time.Now()
	err := insert.Insert(ctx, ix.rel, ix.rotator, payload, vec)
	if ix.collectors != nil {
		ix.collectors.ObserveInsert(time.Since(start), err)
	}
	return err
}

// SearchOptions configures Search, matching search.Options.
type SearchOptions = search.Options

// SearchResult is one emitted (distance, payload) pair.
type SearchResult = search.Result

// Cursor lazily yields results in non-decreasing distance order.
type Cursor = search.Cursor

// Search descends the tree for query and returns a lazy result Cursor.
func (ix *Index) Search(ctx context.Context, query []float32, opts SearchOptions) (*Cursor, error) {
	if ix.rotator == nil {
		return nil, apperrors.InvalidInput("index has not been built", nil)
	}
	start := time.Now()
	cur, err := search.Search(ctx, ix.rel, ix.rotator, query, opts)
	if ix.collectors != nil {
		prefetch, rerank := "plain", "index"
		if opts.Prefetch == search.Stream {
			prefetch = "stream"
		}
		if opts.Rerank == search.RerankHeap {
			rerank = "heap"
		}
		ix.collectors.ObserveSearch(prefetch, rerank, time.Since(start), 0)
	}
	return cur, err
}

// VacuumOptions configures Vacuum, matching vacuum.Options.
type VacuumOptions = vacuum.Options

// Vacuum drops dead rows per opts.IsDead, in two passes.
func (ix *Index) Vacuum(ctx context.Context, opts VacuumOptions) (vacuum.Stats, error) {
	start := time.Now()
	stats, err := vacuum.Run(ctx, ix.rel, opts)
	if ix.collectors != nil {
		ix.collectors.ObserveVacuum(time.Since(start), stats.SlotsFreed, stats.VectorSlicesFreed, stats.PagesFreed)
	}
	return stats, err
}

// Stats describes an Index's on-disk tree shape, for the demo server's
// stats endpoint and vidxctl's stats subcommand.
type Stats struct {
	Dims         int    `json:"dims"`
	Metric       string `json:"metric"`
	HeightOfRoot uint8  `json:"height_of_root"`
	IsResidual   bool   `json:"is_residual"`
	NumPages     uint32 `json:"num_pages"`
}

// Stats reports the current tree shape. Requires a built Index.
func (ix *Index) Stats(ctx context.Context) (Stats, error) {
	if ix.rotator == nil {
		return Stats{}, apperrors.InvalidInput("index has not been built", nil)
	}
	meta, err := tuple.ReadMeta(ctx, ix.rel)
	if err != nil {
		return Stats{}, err
	}
	metricName := "l2"
	if meta.Metric == tuple.MetricDot {
		metricName = "dot"
	}
	return Stats{
		Dims:         int(meta.Dims),
		Metric:       metricName,
		HeightOfRoot: meta.HeightOfRoot,
		IsResidual:   meta.IsResidual,
		NumPages:     uint32(ix.backend.NumPages()),
	}, nil
}

// Prewarm walks every internal-node page to warm the Relation's page
// cache ahead of serving queries. Safe to call before the first Search
// after Open or Restore.
func (ix *Index) Prewarm(ctx context.Context) error {
	if ix.rotator == nil {
		return apperrors.InvalidInput("index has not been built", nil)
	}
	return search.Prewarm(ctx, ix.rel)
}

// Snapshot packs every page into dest under a fresh id.
func (ix *Index) Snapshot(ctx context.Context, dest snapshot.Backend) (snapshot.Manifest, error) {
	return snapshot.Create(ctx, ix.backend, dest)
}

// Restore replaces this Index's pages with the snapshot id from src. The
// Index must not be concurrently used while Restore runs; afterward, its
// in-memory rotator is rebuilt from the restored MetaTuple.
func (ix *Index) Restore(ctx context.Context, src snapshot.Backend, id string) (snapshot.Manifest, error) {
	m, err := snapshot.Restore(ctx, src, id, ix.backend)
	if err != nil {
		return m, err
	}
	meta, err := tuple.ReadMeta(ctx, ix.rel)
	if err != nil {
		return m, err
	}
	ix.dims = int(meta.Dims)
	ix.metric = meta.Metric
	ix.rotator = codec.NewRotator(ix.dims, ix.seed)
	return m, nil
}
