package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"webllm-bridge/internal/application/port/output"
	"webllm-bridge/internal/domain/entity"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ output.BridgeMetricsPort = (*Metrics)(nil)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Bridge metrics
	BridgeState            *prometheus.GaugeVec
	Initializations        *prometheus.CounterVec
	InitializationDuration prometheus.Histogram
	Invocations            *prometheus.CounterVec
	InvocationDuration     *prometheus.HistogramVec
}

// NewMetrics registers every collector on reg. Passing a fresh registry per
// instance keeps tests independent of each other.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webllm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webllm_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"method", "route"},
		),

		BridgeState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "webllm_bridge_state",
				Help: "Current bridge lifecycle state (1 for the active state)",
			},
			[]string{"state"},
		),
		Initializations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webllm_bridge_initializations_total",
				Help: "Bridge initialization attempts by outcome",
			},
			[]string{"outcome"},
		),
		InitializationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webllm_bridge_initialization_duration_seconds",
				Help:    "Time from browser launch to engine ready",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		Invocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webllm_bridge_invocations_total",
				Help: "In-page engine invocations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		InvocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webllm_bridge_invocation_duration_seconds",
				Help:    "In-page engine invocation duration in seconds",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"operation"},
		),
	}
}

func (m *Metrics) SetBridgeState(state entity.SessionState) {
	if m == nil {
		return
	}
	for _, s := range []entity.SessionState{
		entity.StateUninitialized,
		entity.StateInitializing,
		entity.StateReady,
		entity.StateFailed,
	} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.BridgeState.WithLabelValues(s.String()).Set(v)
	}
}

func (m *Metrics) ObserveInitialization(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Initializations.WithLabelValues(outcome).Inc()
	m.InitializationDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveInvocation(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(operation, outcome).Inc()
	m.InvocationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordHTTPRequest records one finished HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the Prometheus exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by the matched chi
// route pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.RecordHTTPRequest(r.Method, route, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
