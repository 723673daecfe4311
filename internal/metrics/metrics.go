// Package metrics provides the Prometheus collectors instrumenting
// build/insert/search/vacuum, per spec.md's observability surface.
//
// Grounded on the teacher's MetricsCollector
// (arx-backend/gateway/metrics.go): a struct of promauto-registered
// vecs/gauges built in one constructor, plus Record* methods called from
// the hot path. Unlike the teacher (which registers onto the global
// prometheus.DefaultRegisterer via promauto's default behavior), this
// package registers onto a private prometheus.Registry per Collectors
// instance, so an embedding host can run more than one index without a
// MustRegister panic on the second.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds every metric this engine exposes.
type Collectors struct {
	reg *prometheus.Registry

	searchTotal    *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	searchResults  *prometheus.HistogramVec

	insertTotal    prometheus.Counter
	insertDuration prometheus.Histogram
	insertErrors   prometheus.Counter

	buildDuration     prometheus.Histogram
	buildVectorsTotal prometheus.Counter

	vacuumRuns         prometheus.Counter
	vacuumSlotsFreed   prometheus.Counter
	vacuumSlicesFreed  prometheus.Counter
	vacuumPagesFreed   prometheus.Counter
	vacuumDuration     prometheus.Histogram
}

// durationBuckets spans microseconds to seconds, matching the latency
// range a page-backed ANN search is expected to fall in.
var durationBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// New builds a fresh, independently registered set of collectors.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	c := &Collectors{reg: reg}

	c.searchTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "vecindex_search_total",
			Help: "Total number of Search calls, by prefetch strategy and rerank mode.",
		},
		[]string{"prefetch", "rerank"},
	)
	c.searchDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vecindex_search_duration_seconds",
			Help:    "Search wall-clock time from call to cursor construction.",
			Buckets: durationBuckets,
		},
		[]string{"prefetch", "rerank"},
	)
	c.searchResults = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vecindex_search_results_emitted",
			Help:    "Number of results drained from a Search cursor.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"prefetch", "rerank"},
	)

	c.insertTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "vecindex_insert_total",
		Help: "Total number of Insert calls.",
	})
	c.insertDuration = promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Name:    "vecindex_insert_duration_seconds",
		Help:    "Insert wall-clock time.",
		Buckets: durationBuckets,
	})
	c.insertErrors = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "vecindex_insert_errors_total",
		Help: "Total number of Insert calls that returned an error.",
	})

	c.buildDuration = promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Name:    "vecindex_build_duration_seconds",
		Help:    "Build wall-clock time.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
	})
	c.buildVectorsTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "vecindex_build_vectors_total",
		Help: "Total number of vectors ingested across all Build calls.",
	})

	c.vacuumRuns = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "vecindex_vacuum_runs_total",
		Help: "Total number of vacuum.Run invocations.",
	})
	c.vacuumSlotsFreed = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "vecindex_vacuum_h0_slots_freed_total",
		Help: "Total H0 code slots dropped by vacuum pass 1.",
	})
	c.vacuumSlicesFreed = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "vecindex_vacuum_vector_slices_freed_total",
		Help: "Total VectorTuple slices freed by vacuum pass 2.",
	})
	c.vacuumPagesFreed = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "vecindex_vacuum_pages_freed_total",
		Help: "Total VectorTuple pages returned to the freepage allocator by vacuum.",
	})
	c.vacuumDuration = promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Name:    "vecindex_vacuum_duration_seconds",
		Help:    "Vacuum wall-clock time per run.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
	})

	return c
}

// Handler serves this Collectors' registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// ObserveSearch records one completed Search call.
func (c *Collectors) ObserveSearch(prefetch, rerank string, duration time.Duration, resultsEmitted int) {
	c.searchTotal.WithLabelValues(prefetch, rerank).Inc()
	c.searchDuration.WithLabelValues(prefetch, rerank).Observe(duration.Seconds())
	c.searchResults.WithLabelValues(prefetch, rerank).Observe(float64(resultsEmitted))
}

// ObserveInsert records one Insert call.
func (c *Collectors) ObserveInsert(duration time.Duration, err error) {
	c.insertTotal.Inc()
	c.insertDuration.Observe(duration.Seconds())
	if err != nil {
		c.insertErrors.Inc()
	}
}

// ObserveBuild records one completed Build call.
func (c *Collectors) ObserveBuild(duration time.Duration, vectorsIngested int) {
	c.buildDuration.Observe(duration.Seconds())
	c.buildVectorsTotal.Add(float64(vectorsIngested))
}

// ObserveVacuum records one completed vacuum run.
func (c *Collectors) ObserveVacuum(duration time.Duration, slotsFreed, slicesFreed, pagesFreed int) {
	c.vacuumRuns.Inc()
	c.vacuumDuration.Observe(duration.Seconds())
	c.vacuumSlotsFreed.Add(float64(slotsFreed))
	c.vacuumSlicesFreed.Add(float64(slicesFreed))
	c.vacuumPagesFreed.Add(float64(pagesFreed))
}
