// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all engine collectors bound to one registry.
// Construct with New and share the instance; collectors are safe for
// concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	SearchesTotal   *prometheus.CounterVec
	SearchDuration  *prometheus.HistogramVec
	SearchErrors    *prometheus.CounterVec
	DegradedTotal   *prometheus.CounterVec
	CacheHitsTotal  *prometheus.CounterVec
	CacheMissTotal  prometheus.Counter
	CachePromotions *prometheus.CounterVec
	CacheEvictions  *prometheus.CounterVec
	IndexedPassages prometheus.Gauge
	ExpansionsTotal *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "seekly_searches_total",
			Help: "Total searches served, by strategy mode.",
		}, []string{"mode"}),

		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seekly_search_duration_seconds",
			Help:    "Search latency by strategy mode.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"mode"}),

		SearchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "seekly_search_errors_total",
			Help: "Search failures by structured error code.",
		}, []string{"code"}),

		DegradedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "seekly_degraded_total",
			Help: "Searches served on a degraded path, by path.",
		}, []string{"path"}),

		CacheHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "seekly_cache_hits_total",
			Help: "Cache hits by tier (l1, l2, l3).",
		}, []string{"tier"}),

		CacheMissTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "seekly_cache_misses_total",
			Help: "Lookups that missed every cache tier.",
		}),

		CachePromotions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "seekly_cache_promotions_total",
			Help: "Entry promotions between tiers (l2_to_l1, l3_to_l2).",
		}, []string{"direction"}),

		CacheEvictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "seekly_cache_evictions_total",
			Help: "Evictions by tier and reason (capacity, expired, invalidated).",
		}, []string{"tier", "reason"}),

		IndexedPassages: factory.NewGauge(prometheus.GaugeOpts{
			Name: "seekly_indexed_passages",
			Help: "Number of passages currently indexed.",
		}),

		ExpansionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "seekly_query_expansions_total",
			Help: "Query expansions by source (llm, rules, cache).",
		}, []string{"source"}),
	}
}

// Handler returns an HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSearch records one completed search.
func (m *Metrics) ObserveSearch(mode string, d time.Duration) {
	m.SearchesTotal.WithLabelValues(mode).Inc()
	m.SearchDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// Registry exposes the underlying registry for test assertions.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
