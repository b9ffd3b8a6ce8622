package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/runs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/runs/abc", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/runs/{id}", "404")))
}

func TestObserverCounters(t *testing.T) {
	m := New()
	m.StepFinished("plan", "fallback", 2*time.Second)
	m.StepFinished("plan", "fallback", time.Second)
	m.RunFinished("succeeded")
	m.PaymentEvent("applied")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.steps.WithLabelValues("plan", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.payments.WithLabelValues("applied")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.RunFinished("failed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `aether_orchestration_runs_total{status="failed"} 1`))
}
