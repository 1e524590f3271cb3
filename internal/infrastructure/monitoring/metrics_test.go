package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"webllm-bridge/internal/domain/entity"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_SetBridgeState(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetBridgeState(entity.StateInitializing)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BridgeState.WithLabelValues("initializing")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BridgeState.WithLabelValues("ready")))

	m.SetBridgeState(entity.StateReady)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BridgeState.WithLabelValues("initializing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BridgeState.WithLabelValues("ready")))
}

func TestMetrics_ObserveCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveInitialization("success", 3*time.Second)
	m.ObserveInitialization("failure", time.Second)
	m.ObserveInitialization("failure", time.Second)
	m.ObserveInvocation("generateText", "success", 200*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Initializations.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Initializations.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invocations.WithLabelValues("generateText", "success")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetBridgeState(entity.StateReady)
		m.ObserveInitialization("success", time.Second)
		m.ObserveInvocation("generateText", "success", time.Second)
		m.RecordHTTPRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
	})
}

func TestMetrics_MiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/metrics", m.Handler().ServeHTTP)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/v1/models", "418")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "webllm_http_requests_total"))
}
