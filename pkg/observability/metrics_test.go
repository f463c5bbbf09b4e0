package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.CacheHitsTotal.Inc()
	metrics.ObserveCommand("get")
	metrics.EventsTrackedTotal.WithLabelValues("pageview").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreCommandsTotal.WithLabelValues("get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsTrackedTotal.WithLabelValues("pageview")))
}

func TestHTTPMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := metrics.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/thing", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	count := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/v1/thing", "418"))
	assert.Equal(t, 1.0, count)
}

func TestHandlerServesRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.CacheMissesTotal.Inc()

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pulse_cache_misses_total 1")
}
