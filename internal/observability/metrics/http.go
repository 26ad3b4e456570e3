package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tariff"

type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	quotesTotal       *prometheus.CounterVec
	quoteDutyRate     *prometheus.HistogramVec
	searchResults     *prometheus.HistogramVec
	cacheLookupsTotal *prometheus.CounterVec
	importsQueued     *prometheus.CounterVec

	dependencyRetriesTotal *prometheus.CounterVec
	breakerTransitions     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	quotesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "requests_total",
			Help:      "Duty quotes by jurisdiction, outcome and applied program.",
		},
		[]string{"service", "jurisdiction", "outcome", "program"},
	)
	quoteDutyRate := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "total_duty_rate",
			Help:      "Distribution of summed duty rates on found quotes.",
			Buckets:   []float64{0, 0.01, 0.025, 0.05, 0.1, 0.15, 0.25, 0.35, 0.5, 1},
		},
		[]string{"service", "jurisdiction"},
	)
	searchResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Rows returned per tariff search.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
		},
		[]string{"service"},
	)
	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Schedule cache lookups by result.",
		},
		[]string{"service", "jurisdiction", "result"},
	)
	importsQueued := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "uploads_total",
			Help:      "Schedule uploads accepted for import.",
		},
		[]string{"service", "jurisdiction"},
	)
	dependencyRetriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retried dependency calls by operation.",
		},
		[]string{"service", "operation"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state changes by operation and target state.",
		},
		[]string{"service", "operation", "state"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		quotesTotal,
		quoteDutyRate,
		searchResults,
		cacheLookupsTotal,
		importsQueued,
		dependencyRetriesTotal,
		breakerTransitions,
	)

	return &HTTPServerMetrics{
		service:                service,
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		quotesTotal:            quotesTotal,
		quoteDutyRate:          quoteDutyRate,
		searchResults:          searchResults,
		cacheLookupsTotal:      cacheLookupsTotal,
		importsQueued:          importsQueued,
		dependencyRetriesTotal: dependencyRetriesTotal,
		breakerTransitions:     breakerTransitions,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests and extra collectors.
func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware labels requests by chi route pattern when one matched, so
// path parameters do not explode label cardinality.
func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		path := normalizePath(r.URL.Path)
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/schedules/imports/"):
		return "/v1/schedules/imports/{id}"
	case strings.HasPrefix(path, "/v1/schedules/"):
		return "/v1/schedules/{jurisdiction}/imports"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordQuote(jurisdiction string, found bool, program string, totalRate float64) {
	outcome := "not_found"
	if found {
		outcome = "found"
	}
	if program == "" {
		program = "none"
	}
	m.quotesTotal.WithLabelValues(m.service, jurisdiction, outcome, program).Inc()
	if found {
		m.quoteDutyRate.WithLabelValues(m.service, jurisdiction).Observe(totalRate)
	}
}

func (m *HTTPServerMetrics) RecordQuoteError(jurisdiction string) {
	m.quotesTotal.WithLabelValues(m.service, jurisdiction, "error", "none").Inc()
}

func (m *HTTPServerMetrics) RecordSearch(results int) {
	m.searchResults.WithLabelValues(m.service).Observe(float64(results))
}

func (m *HTTPServerMetrics) RecordImportQueued(jurisdiction string) {
	m.importsQueued.WithLabelValues(m.service, jurisdiction).Inc()
}

func (m *HTTPServerMetrics) CacheLookup(jurisdiction string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(m.service, jurisdiction, result).Inc()
}

func (m *HTTPServerMetrics) RetryAttempted(operation string) {
	m.dependencyRetriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *HTTPServerMetrics) BreakerStateChanged(operation, to string) {
	m.breakerTransitions.WithLabelValues(m.service, operation, to).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
