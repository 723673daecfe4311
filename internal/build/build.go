// Package build implements spec.md §4.5 (C6): sampling and hierarchical
// k-means over internally-supplied vectors, or validation and import of an
// externally-supplied centroid tree, materialized into the on-page tuple
// layout internal/tuple defines.
//
// Grounded on spec.md §4.5's five-step materialization order and on the
// teacher's worker-pool/progress-logging shape for long-running batch
// jobs (internal/common/logger is used the same way here as in insert and
// vacuum).
package build

import (
	"context"
	"math/rand"

	"github.com/arx-os/vecindex/internal/codec"
	"github.com/arx-os/vecindex/internal/common/logger"
	"github.com/arx-os/vecindex/internal/kmeans"
	"github.com/arx-os/vecindex/internal/relation"
	"github.com/arx-os/vecindex/internal/tuple"
	apperrors "github.com/arx-os/vecindex/pkg/errors"
)

// Options configures a build run, mirroring spec.md §4.5's input list.
type Options struct {
	Dims           uint32
	Metric         tuple.Metric
	Residual       bool
	Lists          []int // [c_H-1, ..., c_1]; root is implicitly 1
	SamplingFactor int
	Normalize      bool
	Seed           int64
	Workers        int
}

// Stats summarizes a completed build, surfaced back through the
// access-method contract (spec.md §6.1).
type Stats struct {
	HeightOfRoot int
	Centroids    int
	Sampled      int
}

// Source yields (payload, vector) pairs for internal build, matching
// spec.md's "heap-traversal callback".
type Source func(yield func(payload uint64, vector []float32) bool)

// Internal reservoir-samples from src, clusters bottom-up, and materializes
// the resulting tree into rel, per spec.md §4.5 "Internal" mode.
func Internal(ctx context.Context, rel relation.Relation, opts Options, src Source) (Stats, error) {
	log := logger.With("component", "build", "mode", "internal")
	if len(opts.Lists) == 0 {
		return Stats{}, apperrors.InvalidInput("lists must have at least one level", nil)
	}
	if opts.SamplingFactor <= 0 {
		opts.SamplingFactor = 32
	}
	target := opts.Lists[len(opts.Lists)-1] * opts.SamplingFactor
	samples, payloads := reservoirSample(src, target, opts.Seed)
	log.Info("sampled %d vectors (target %d) for build", len(samples), target)

	rotator := codec.NewRotator(int(opts.Dims), opts.Seed)
	rotated := make([][]float32, len(samples))
	for i, s := range samples {
		rotated[i] = rotator.Rotate(s)
	}

	levels, err := clusterBottomUp(rotated, opts)
	if err != nil {
		return Stats{}, err
	}

	mat := &materializer{rel: rel, opts: opts, log: log}
	if err := mat.run(ctx, levels, rotated, payloads); err != nil {
		return Stats{}, err
	}

	return Stats{
		HeightOfRoot: len(levels),
		Centroids:    totalCentroids(levels),
		Sampled:      len(samples),
	}, nil
}

// reservoirSample implements Algorithm R reservoir sampling over src,
// capped at target vectors, returning both the sampled vectors and their
// payloads for later leaf materialization.
func reservoirSample(src Source, target int, seed int64) ([][]float32, []uint64) {
	if target <= 0 {
		target = 1
	}
	rng := rand.New(rand.NewSource(seed))
	samples := make([][]float32, 0, target)
	payloads := make([]uint64, 0, target)
	seen := 0
	src(func(payload uint64, vector []float32) bool {
		if seen < target {
			cp := append([]float32(nil), vector...)
			samples = append(samples, cp)
			payloads = append(payloads, payload)
		} else {
			j := rng.Intn(seen + 1)
			if j < target {
				cp := append([]float32(nil), vector...)
				samples[j] = cp
				payloads[j] = payload
			}
		}
		seen++
		return true
	})
	return samples, payloads
}

// level holds one tree level's clustering result: the centroid Square and,
// for each centroid, the indices of the lower level's centroids (or, at
// the leaf level, of the sample vectors) assigned to it.
type level struct {
	sq       *kmeans.Square
	children [][]int
}

// clusterBottomUp runs spec.md §4.5's "start from the leaf level and go
// up" hierarchical k-means: level 0 clusters the raw samples into
// opts.Lists[last], level 1 clusters THOSE centroids into opts.Lists[last-1],
// and so on until a single root centroid remains.
func clusterBottomUp(samples [][]float32, opts Options) ([]level, error) {
	if len(samples) == 0 {
		return nil, apperrors.InvalidInput("no samples to cluster", nil)
	}
	kOpts := kmeans.Options{Iterations: kmeans.DefaultIterations, Workers: opts.Workers, Seed: opts.Seed}

	var levels []level
	currentVectors := samples
	for li := len(opts.Lists) - 1; li >= 0; li-- {
		count := opts.Lists[li]
		if count > len(currentVectors) {
			count = len(currentVectors)
		}
		sq, assignments := kmeans.Run(currentVectors, count, kOpts)
		children := make([][]int, count)
		for idx, c := range assignments {
			children[c] = append(children[c], idx)
		}
		levels = append(levels, level{sq: sq, children: children})

		next := make([][]float32, count)
		for c := 0; c < count; c++ {
			next[c] = sq.At(c)
		}
		currentVectors = next
	}

	// Root: cluster the top level's centroids down to a single vector.
	if len(currentVectors) > 1 {
		sq, assignments := kmeans.Run(currentVectors, 1, kOpts)
		children := make([][]int, 1)
		for idx := range assignments {
			children[0] = append(children[0], idx)
		}
		levels = append(levels, level{sq: sq, children: children})
	} else {
		sq := kmeans.NewSquare(len(currentVectors[0]), 1)
		copy(sq.At(0), currentVectors[0])
		levels = append(levels, level{sq: sq, children: [][]int{{0}}})
	}
	return levels, nil
}

func totalCentroids(levels []level) int {
	n := 0
	for _, l := range levels {
		n += l.sq.Count
	}
	return n
}
