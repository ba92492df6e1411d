// Package metrics provides Prometheus metrics for title loads and
// fragmentation analyses.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "titlefrag"

// Metrics holds all titlefrag collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Counters
	RowsLoaded   *prometheus.CounterVec
	RowsSkipped  *prometheus.CounterVec
	LoadsTotal   *prometheus.CounterVec
	AnalysesRun  prometheus.Counter
	RowsAnalyzed *prometheus.CounterVec

	// Gauges
	FragmentYear prometheus.Gauge
	StoredTitles prometheus.Gauge

	// Histograms
	LoadDuration    prometheus.Histogram
	AnalyzeDuration prometheus.Histogram

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a metrics instance with its own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.RowsLoaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows inserted into a sink",
		},
		[]string{"sink"},
	)

	m.RowsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Rows rejected by the normalizer, by reason",
		},
		[]string{"reason"}, // "arity", "numeric"
	)

	m.LoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Completed load runs by status",
		},
		[]string{"status"}, // "success", "error"
	)

	m.AnalysesRun = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Fragmentation analyses completed",
		},
	)

	m.RowsAnalyzed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_analyzed_total",
			Help:      "Rows seen by the analyzer, by outcome",
		},
		[]string{"outcome"}, // "valid", "missing", "unparsable", "short"
	)

	m.FragmentYear = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fragment_year",
			Help:      "Most recently computed fragment year",
		},
	)

	m.StoredTitles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_titles",
			Help:      "Committed titles in the store",
		},
	)

	m.LoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Time to load one TSV source",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)

	m.AnalyzeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analyze_duration_seconds",
			Help:      "Time to compute the fragment year",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	m.HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route template and status",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.registry.MustRegister(
		m.RowsLoaded,
		m.RowsSkipped,
		m.LoadsTotal,
		m.AnalysesRun,
		m.RowsAnalyzed,
		m.FragmentYear,
		m.StoredTitles,
		m.LoadDuration,
		m.AnalyzeDuration,
		m.HTTPRequests,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry for tests and custom handlers
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordLoaded adds rows inserted into the named sink
func (m *Metrics) RecordLoaded(sink string, n int64) {
	if m == nil {
		return
	}
	m.RowsLoaded.WithLabelValues(sink).Add(float64(n))
}

// RecordSkipped counts one rejected row
func (m *Metrics) RecordSkipped(reason string) {
	if m == nil {
		return
	}
	m.RowsSkipped.WithLabelValues(reason).Inc()
}

// RecordLoad records a finished load run
func (m *Metrics) RecordLoad(success bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.LoadsTotal.WithLabelValues(status).Inc()
	m.LoadDuration.Observe(d.Seconds())
}

// RecordAnalysis records a finished analysis. year is nil when no median
// could be computed; the gauge then keeps its previous value.
func (m *Metrics) RecordAnalysis(year *int, valid, missing, unparsable, short int, d time.Duration) {
	if m == nil {
		return
	}
	m.AnalysesRun.Inc()
	m.RowsAnalyzed.WithLabelValues("valid").Add(float64(valid))
	m.RowsAnalyzed.WithLabelValues("missing").Add(float64(missing))
	m.RowsAnalyzed.WithLabelValues("unparsable").Add(float64(unparsable))
	m.RowsAnalyzed.WithLabelValues("short").Add(float64(short))
	if year != nil {
		m.FragmentYear.Set(float64(*year))
	}
	m.AnalyzeDuration.Observe(d.Seconds())
}

// SetStoredTitles sets the committed title gauge
func (m *Metrics) SetStoredTitles(n uint64) {
	if m == nil {
		return
	}
	m.StoredTitles.Set(float64(n))
}

// RecordRequest records one served HTTP request. route should be the route
// template, not the raw path, to keep label cardinality bounded.
func (m *Metrics) RecordRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
