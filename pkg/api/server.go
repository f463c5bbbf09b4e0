package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/openfolio/pulse/pkg/analytics"
	"github.com/openfolio/pulse/pkg/cache"
	"github.com/openfolio/pulse/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Server is the HTTP server for the pulse subsystem
type Server struct {
	router  *mux.Router
	tracker *analytics.Tracker
	cache   *cache.Tiered
	health  *observability.HealthChecker
	log     *observability.Logger
}

// NewServer wires the HTTP surface. registry may be nil to disable /metrics.
func NewServer(tracker *analytics.Tracker, tiered *cache.Tiered, health *observability.HealthChecker, log *observability.Logger, metrics *observability.Metrics, registry *prometheus.Registry) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		tracker: tracker,
		cache:   tiered,
		health:  health,
		log:     log,
	}

	s.router.Use(requestIDMiddleware)
	s.router.Use(s.loggerMiddleware)
	if metrics != nil {
		s.router.Use(metrics.HTTPMiddleware)
	}

	s.router.HandleFunc("/v1/profiles/{profileID}/events/pageview", s.trackPageView).Methods("POST")
	s.router.HandleFunc("/v1/profiles/{profileID}/events/linkclick", s.trackLinkClick).Methods("POST")

	s.router.HandleFunc("/v1/profiles/{profileID}/stats/realtime", s.getRealTimeStats).Methods("GET")
	s.router.HandleFunc("/v1/profiles/{profileID}/stats/visitors", s.getVisitorInsights).Methods("GET")
	s.router.HandleFunc("/v1/profiles/{profileID}/stats/engagement", s.getEngagementMetrics).Methods("GET")
	s.router.HandleFunc("/v1/profiles/{profileID}/stats/funnel", s.getFunnelAnalytics).Methods("GET")

	s.router.HandleFunc("/v1/cache/stats", s.getCacheStats).Methods("GET")
	s.router.HandleFunc("/v1/cache/invalidate", s.invalidateCache).Methods("POST")

	s.router.HandleFunc("/healthz", health.Readiness).Methods("GET")
	s.router.HandleFunc("/healthz/live", health.Liveness).Methods("GET")
	if registry != nil {
		s.router.Handle("/metrics", observability.Handler(registry)).Methods("GET")
	}

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestIDMiddleware assigns each request an ID for log correlation
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(observability.WithRequestID(r.Context(), requestID)))
	})
}

// loggerMiddleware makes the server logger available to handlers via context
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(observability.WithLogger(r.Context(), s.log)))
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
