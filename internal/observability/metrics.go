// Package observability provides Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vidbatch"

// Metrics holds all application metrics.
type Metrics struct {
	// Batch metrics
	BatchesTotal    *prometheus.CounterVec
	ItemsTotal      *prometheus.CounterVec
	ItemsInProgress prometheus.Gauge
	ItemDuration    prometheus.Histogram

	// Storage metrics
	StoredResults prometheus.Gauge
	Sessions      prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Downloader metrics
	DownloaderRequestsTotal *prometheus.CounterVec
	DownloaderErrors        *prometheus.CounterVec
}

// New creates all application metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	metrics := &Metrics{
		BatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batches",
			Name:      "total",
			Help:      "Total number of submitted batches by result",
		}, []string{"result"}),
		ItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "items",
			Name:      "total",
			Help:      "Total number of processed URLs by outcome",
		}, []string{"status"}),
		ItemsInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "items",
			Name:      "in_progress",
			Help:      "Number of URLs currently being downloaded",
		}),
		ItemDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "items",
			Name:      "duration_seconds",
			Help:      "Histogram of per-URL download duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		StoredResults: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "results_current",
			Help:      "Current number of stored results across sessions",
		}),
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "sessions_current",
			Help:      "Current number of sessions",
		}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		DownloaderRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloader",
			Name:      "requests_total",
			Help:      "Total number of downloader runs",
		}, []string{"downloader", "status"}),
		DownloaderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloader",
			Name:      "errors_total",
			Help:      "Total number of downloader errors",
		}, []string{"downloader", "error_type"}),
	}

	return metrics
}

// Handler returns the Prometheus HTTP handler for the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ItemTimer tracks one in-flight download and returns a function that records its duration.
func (m *Metrics) ItemTimer() func() {
	start := time.Now()

	m.ItemsInProgress.Inc()

	return func() {
		m.ItemsInProgress.Dec()
		m.ItemDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordBatch records a batch result: "ok", "no_input", "precondition" or "busy".
func (m *Metrics) RecordBatch(result string) {
	m.BatchesTotal.WithLabelValues(result).Inc()
}

// RecordItem records one item outcome.
func (m *Metrics) RecordItem(status string) {
	m.ItemsTotal.WithLabelValues(status).Inc()
}

// AddStoredResults adds to the stored results gauge.
func (m *Metrics) AddStoredResults(count int) {
	m.StoredResults.Add(float64(count))
}

// SetSessions sets the number of sessions.
func (m *Metrics) SetSessions(count int) {
	m.Sessions.Set(float64(count))
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDownloaderRequest records a downloader run.
func (m *Metrics) RecordDownloaderRequest(downloader, status string) {
	m.DownloaderRequestsTotal.WithLabelValues(downloader, status).Inc()
}

// RecordDownloaderError records a downloader error.
func (m *Metrics) RecordDownloaderError(downloader, errorType string) {
	m.DownloaderErrors.WithLabelValues(downloader, errorType).Inc()
}
