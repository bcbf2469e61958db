package imports

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records resolver activity in a Prometheus registry.
//
// A nil *Metrics is valid and records nothing, so the resolver can always
// call through it.
type Metrics struct {
	resolved      *prometheus.CounterVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	failures      *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates resolver metrics registered in a fresh registry under
// namespace (e.g. "dhall").
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		resolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_resolved_total",
				Help:      "Total number of imports resolved",
			},
			[]string{"kind", "mode"},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_cache_hits_total",
				Help:      "Pinned imports served from the semantic cache",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_cache_misses_total",
				Help:      "Pinned imports not found in the semantic cache",
			},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_failures_total",
				Help:      "Import failures by error code",
			},
			[]string{"code"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "import_fetch_duration_seconds",
				Help:      "Time spent reading import sources",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.resolved,
		m.cacheHits,
		m.cacheMisses,
		m.failures,
		m.fetchDuration,
	)
	return m
}

// Registry returns the registry the metrics are registered in, or nil.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordResolved counts a successfully resolved import.
func (m *Metrics) RecordResolved(kind, mode string) {
	if m == nil {
		return
	}
	m.resolved.WithLabelValues(kind, mode).Inc()
}

// RecordCacheHit counts a pinned import served from the cache.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// RecordCacheMiss counts a pinned import that had to be fetched.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// RecordFailure counts a failed import by code.
func (m *Metrics) RecordFailure(code ErrorCode) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(string(code)).Inc()
}

// ObserveFetch records how long reading a source took.
func (m *Metrics) ObserveFetch(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}
