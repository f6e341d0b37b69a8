package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	uploadsTotal          *prometheus.CounterVec
	decisionsTotal        *prometheus.CounterVec
	contributionsTotal    *prometheus.CounterVec
	skippedIndicators     *prometheus.CounterVec
	approvalDuration      *prometheus.HistogramVec
	aggregateReadsTotal   *prometheus.CounterVec
	remedyValidationTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kpe",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kpe",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kpe",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kpe",
			Subsystem: "ingest",
			Name:      "uploads_total",
			Help:      "Total report uploads by outcome.",
		},
		[]string{"service", "status"},
	)
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kpe",
			Subsystem: "approval",
			Name:      "decisions_total",
			Help:      "Total analysis decisions by outcome.",
		},
		[]string{"service", "decision"},
	)
	contributionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kpe",
			Subsystem: "approval",
			Name:      "contributions_total",
			Help:      "Total ledger contributions written on approval.",
		},
		[]string{"service"},
	)
	skippedIndicators := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kpe",
			Subsystem: "approval",
			Name:      "skipped_indicators_total",
			Help:      "Indicator groups skipped on approval because the plan catalog could not resolve them.",
		},
		[]string{"service"},
	)
	approvalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kpe",
			Subsystem: "approval",
			Name:      "duration_seconds",
			Help:      "Approval transaction duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	aggregateReadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kpe",
			Subsystem: "rollup",
			Name:      "aggregate_reads_total",
			Help:      "Aggregate reads by result source.",
		},
		[]string{"service", "source"},
	)
	remedyValidationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kpe",
			Subsystem: "gap",
			Name:      "remedy_validations_total",
			Help:      "Remedial-action validations by verdict.",
		},
		[]string{"service", "verdict"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		uploadsTotal,
		decisionsTotal,
		contributionsTotal,
		skippedIndicators,
		approvalDuration,
		aggregateReadsTotal,
		remedyValidationTotal,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		uploadsTotal:          uploadsTotal,
		decisionsTotal:        decisionsTotal,
		contributionsTotal:    contributionsTotal,
		skippedIndicators:     skippedIndicators,
		approvalDuration:      approvalDuration,
		aggregateReadsTotal:   aggregateReadsTotal,
		remedyValidationTotal: remedyValidationTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses per-resource path segments so metric cardinality
// stays bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/analyses/"):
		return "/v1/analyses/{analysis_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordUpload(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.uploadsTotal.WithLabelValues(service, status).Inc()
}

func (m *HTTPServerMetrics) RecordDecision(service, decision string, duration time.Duration, updated, skipped int) {
	if decision == "" {
		decision = "unknown"
	}
	m.decisionsTotal.WithLabelValues(service, decision).Inc()
	m.approvalDuration.WithLabelValues(service).Observe(duration.Seconds())
	if updated > 0 {
		m.contributionsTotal.WithLabelValues(service).Add(float64(updated))
	}
	if skipped > 0 {
		m.skippedIndicators.WithLabelValues(service).Add(float64(skipped))
	}
}

func (m *HTTPServerMetrics) RecordAggregateRead(service string, pending bool) {
	source := "ledger"
	if pending {
		source = "placeholder"
	}
	m.aggregateReadsTotal.WithLabelValues(service, source).Inc()
}

func (m *HTTPServerMetrics) RecordRemedyValidation(service string, valid bool) {
	verdict := "valid"
	if !valid {
		verdict = "rejected"
	}
	m.remedyValidationTotal.WithLabelValues(service, verdict).Inc()
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
