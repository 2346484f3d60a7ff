package telemetry

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polisai/errorflow/pkg/domain"
)

// Metrics holds the Prometheus collectors exposed on /metrics.
type Metrics struct {
	generatedTotal      *prometheus.CounterVec
	disclosureDecisions *prometheus.CounterVec
	historyEntries      prometheus.Gauge
	rateLimitedTotal    prometheus.Counter

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		generatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errorflow_generated_errors_total",
				Help: "Total number of simulated errors generated",
			},
			[]string{"category", "severity", "code"},
		),

		disclosureDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errorflow_disclosure_decisions_total",
				Help: "Debug disclosure decisions by outcome",
			},
			[]string{"allowed"},
		),

		historyEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "errorflow_history_entries",
				Help: "Number of errors currently held in history",
			},
		),

		rateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "errorflow_rate_limited_total",
				Help: "Generation requests rejected by the rate limiter",
			},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errorflow_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "errorflow_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.generatedTotal,
		m.disclosureDecisions,
		m.historyEntries,
		m.rateLimitedTotal,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

// RecordGenerated counts a generated error.
func (m *Metrics) RecordGenerated(e domain.AppError) {
	m.generatedTotal.WithLabelValues(string(e.Category), e.Severity.String(), strconv.Itoa(e.Code)).Inc()
}

// RecordDisclosure counts a disclosure decision.
func (m *Metrics) RecordDisclosure(allowed bool) {
	m.disclosureDecisions.WithLabelValues(strconv.FormatBool(allowed)).Inc()
}

// SetHistoryEntries updates the history size gauge.
func (m *Metrics) SetHistoryEntries(n int) {
	m.historyEntries.Set(float64(n))
}

// RecordRateLimited counts a generation request rejected by the rate limiter.
func (m *Metrics) RecordRateLimited() {
	m.rateLimitedTotal.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records request count and latency per normalised endpoint.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		m.RecordHTTPRequest(r.Method, EndpointName(r.URL.Path), strconv.Itoa(recorder.Status), time.Since(start))
	})
}

// StatusRecorder wraps http.ResponseWriter to capture the status code.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (rw *StatusRecorder) WriteHeader(code int) {
	rw.Status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *StatusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// EndpointName maps a request path to a bounded label value.
func EndpointName(path string) string {
	switch {
	case path == "/api/errors":
		return "errors"
	case strings.HasPrefix(path, "/api/errors/"):
		return "error"
	case path == "/api/catalog":
		return "catalog"
	case path == "/healthz":
		return "health"
	case path == "/metrics":
		return "metrics"
	default:
		return "unknown"
	}
}
