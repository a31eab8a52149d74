package monitoring

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OutcomeRejected labels submissions refused before reaching the service.
const OutcomeRejected = "rejected"

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateTotal      *prometheus.CounterVec

	// Ask metrics
	askRequestsTotal  *prometheus.CounterVec
	askDuration       prometheus.Histogram
	normalizeDuration prometheus.Histogram

	uptimeSeconds prometheus.Counter
}

// NewMetricsCollector creates a collector on its own registry, so that
// several instances (one per test) never collide on registration.
func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &MetricsCollector{
		logger:   logger,
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
		errorRateTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "error_rate_total",
				Help: "Total error rate",
			},
			[]string{"service", "error_type"},
		),

		askRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ask_requests_total",
				Help: "Total number of questions forwarded to the ask service",
			},
			[]string{"outcome"},
		),
		askDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ask_request_duration_seconds",
				Help:    "Round trip to the ask service in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
		),
		normalizeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "answer_normalize_duration_seconds",
				Help:    "Time spent normalizing one answer and its results",
				Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
			},
		),

		uptimeSeconds: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "uptime_seconds_total",
				Help: "Total uptime in seconds",
			},
		),
	}
}

// Registry exposes the underlying registry (tests gather from it).
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPMiddleware records request count and latency per route pattern.
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		code := strconv.Itoa(status)
		duration := time.Since(start).Seconds()

		m.httpRequestsTotal.WithLabelValues(r.Method, path, code).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, path, code).Observe(duration)

		if status >= 400 {
			errorType := "client_error"
			if status >= 500 {
				errorType = "server_error"
			}
			m.errorRateTotal.WithLabelValues("http", errorType).Inc()
		}
	})
}

// AskRequest records one round trip to the ask service.
func (m *MetricsCollector) AskRequest(outcome string, duration time.Duration) {
	m.askRequestsTotal.WithLabelValues(outcome).Inc()
	m.askDuration.Observe(duration.Seconds())
}

// AskRejected counts a submission turned away before reaching the service.
func (m *MetricsCollector) AskRejected() {
	m.askRequestsTotal.WithLabelValues(OutcomeRejected).Inc()
}

func (m *MetricsCollector) Normalized(duration time.Duration) {
	m.normalizeDuration.Observe(duration.Seconds())
}

func (m *MetricsCollector) RecordError(service, errorType string) {
	m.errorRateTotal.WithLabelValues(service, errorType).Inc()
}

// StartUptimeCounter starts the uptime counter
func (m *MetricsCollector) StartUptimeCounter(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.uptimeSeconds.Inc()
		}
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(m.logger),
	})
}
