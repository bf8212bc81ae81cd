package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ofdb"

// Metrics holds the Prometheus collectors of the search subsystem on a
// private registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	indexOperations *prometheus.CounterVec
	searchDuration  prometheus.Histogram
	searchResults   prometheus.Histogram
	searchDegraded  *prometheus.CounterVec
	indexedEntries  prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		indexOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_operations_total",
				Help:      "Index mutations by operation",
			},
			[]string{"op"},
		),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds, including entry resolution",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 250, 500},
		}),
		searchDegraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_degraded_total",
				Help:      "Searches that dropped a clause or a result",
			},
			[]string{"reason"},
		),
		indexedEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_entries",
			Help:      "Committed documents in the search index",
		}),
	}
	m.registry.MustRegister(
		m.indexOperations,
		m.searchDuration,
		m.searchResults,
		m.searchDegraded,
		m.indexedEntries,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IndexOperation counts n index mutations of kind op.
func (m *Metrics) IndexOperation(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.indexOperations.WithLabelValues(op).Add(float64(n))
}

// ObserveSearch records one completed search.
func (m *Metrics) ObserveSearch(d time.Duration, results int) {
	if m == nil {
		return
	}
	m.searchDuration.Observe(d.Seconds())
	m.searchResults.Observe(float64(results))
}

// RecordDegraded implements index.Recorder.
func (m *Metrics) RecordDegraded(reason string) {
	if m == nil {
		return
	}
	m.searchDegraded.WithLabelValues(reason).Inc()
}

// SetIndexedEntries sets the committed document count.
func (m *Metrics) SetIndexedEntries(n uint64) {
	if m == nil {
		return
	}
	m.indexedEntries.Set(float64(n))
}
