// Package metrics defines the Prometheus collectors for the memory index
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// disables recording, which keeps tests free of registry bookkeeping.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       prometheus.Histogram
	IndexDocuments      prometheus.Gauge
	IndexTerms          prometheus.Gauge
	IndexPostings       prometheus.Gauge
	UpdateCyclesTotal   *prometheus.CounterVec
	FilesSkippedTotal   prometheus.Counter
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, empty_query).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_documents",
				Help: "Number of documents currently indexed.",
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_terms",
				Help: "Number of unique terms currently indexed.",
			},
		),
		IndexPostings: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "index_postings",
				Help: "Number of postings currently indexed.",
			},
		),
		UpdateCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_update_cycles_total",
				Help: "Total index update cycles by status.",
			},
			[]string{"status"},
		),
		FilesSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_files_skipped_total",
				Help: "Total files skipped during scans (unreadable or undecodable).",
			},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.IndexDocuments,
		m.IndexTerms,
		m.IndexPostings,
		m.UpdateCyclesTotal,
		m.FilesSkippedTotal,
	)

	return m
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) ObserveSearch(duration time.Duration, results int, emptyQuery bool) {
	if m == nil {
		return
	}
	m.SearchLatency.Observe(duration.Seconds())
	switch {
	case emptyQuery:
		m.SearchQueriesTotal.WithLabelValues("empty_query").Inc()
	case results == 0:
		m.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
	default:
		m.SearchQueriesTotal.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) ObserveUpdateCycle(succeeded bool, documents, terms, postings, skipped int) {
	if m == nil {
		return
	}
	status := "success"
	if !succeeded {
		status = "failure"
	}
	m.UpdateCyclesTotal.WithLabelValues(status).Inc()
	if succeeded {
		m.IndexDocuments.Set(float64(documents))
		m.IndexTerms.Set(float64(terms))
		m.IndexPostings.Set(float64(postings))
	}
	m.FilesSkippedTotal.Add(float64(skipped))
}
