// Package metrics exposes Prometheus collectors for the collector service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page outcomes recorded by ObservePage.
const (
	OutcomeIndexed = "indexed"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Run statuses recorded by ObserveRun.
const (
	RunStatusOK     = "succeeded"
	RunStatusFailed = "failed"
)

var (
	wikiRequestsTotal          *prometheus.CounterVec
	wikiRequestDurationSeconds prometheus.Histogram
	collectorPagesTotal        *prometheus.CounterVec
	collectorRunsTotal         *prometheus.CounterVec
	collectorTransformsFlight  prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		wikiRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wiki_requests_total",
				Help: "Total number of wiki API requests, labeled by status code.",
			},
			[]string{"code"},
		)

		wikiRequestDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wiki_request_duration_seconds",
				Help:    "Histogram of wiki API request latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		collectorPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_pages_total",
				Help: "Total number of page transforms, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		collectorRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_runs_total",
				Help: "Total number of collection runs, labeled by status.",
			},
			[]string{"status"},
		)

		collectorTransformsFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "collector_transforms_in_flight",
				Help: "Number of page transforms currently holding a concurrency slot.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveWikiRequest records one wiki API round trip. A zero code means the transport failed.
func ObserveWikiRequest(code int, duration time.Duration) {
	Init()
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	wikiRequestsTotal.WithLabelValues(label).Inc()
	wikiRequestDurationSeconds.Observe(duration.Seconds())
}

// ObservePage increments the page counter for the given outcome.
func ObservePage(outcome string) {
	Init()
	collectorPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRun increments the run counter for the given status.
func ObserveRun(status string) {
	Init()
	collectorRunsTotal.WithLabelValues(status).Inc()
}

// IncTransformsInFlight increments the in-flight transform gauge.
func IncTransformsInFlight() {
	Init()
	collectorTransformsFlight.Inc()
}

// DecTransformsInFlight decrements the in-flight transform gauge.
func DecTransformsInFlight() {
	Init()
	collectorTransformsFlight.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, route, rec.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so streamed responses are not buffered.
func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
