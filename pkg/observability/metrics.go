package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Tiered cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	CacheLocalSize   prometheus.Gauge

	// Durable store metrics
	StoreErrorsTotal    *prometheus.CounterVec
	StoreCommandsTotal  *prometheus.CounterVec
	StoreConnectionsNum prometheus.Gauge

	// Analytics metrics
	EventsTrackedTotal   *prometheus.CounterVec
	EventStepErrorsTotal *prometheus.CounterVec
	InsightQueriesTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulse_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulse_cache_hits_total",
				Help: "Total number of tiered cache hits (either tier)",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulse_cache_misses_total",
				Help: "Total number of tiered cache misses, including fail-open misses",
			},
		),
		CacheLocalSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pulse_cache_local_size",
				Help: "Current item count of the local cache tier",
			},
		),

		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_store_errors_total",
				Help: "Total number of durable store errors by operation",
			},
			[]string{"operation"},
		),
		StoreCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_store_commands_total",
				Help: "Total number of durable store commands by operation",
			},
			[]string{"operation"},
		),
		StoreConnectionsNum: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pulse_store_connections",
				Help: "Current durable store connection pool size",
			},
		),

		EventsTrackedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_events_tracked_total",
				Help: "Total number of analytics events recorded",
			},
			[]string{"type"},
		),
		EventStepErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_event_step_errors_total",
				Help: "Total number of failed best-effort tracking steps",
			},
			[]string{"type", "step"},
		),
		InsightQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_insight_queries_total",
				Help: "Total number of aggregate insight queries by status",
			},
			[]string{"query", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheLocalSize,
		m.StoreErrorsTotal,
		m.StoreCommandsTotal,
		m.StoreConnectionsNum,
		m.EventsTrackedTotal,
		m.EventStepErrorsTotal,
		m.InsightQueriesTotal,
	)

	return m
}

// ObserveCommand counts one executed durable store command. Satisfies the
// store client's observer contract.
func (m *Metrics) ObserveCommand(name string) {
	m.StoreCommandsTotal.WithLabelValues(name).Inc()
}

// Handler returns an HTTP handler exposing the registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMiddleware records request counts and durations per route
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
