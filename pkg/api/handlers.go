package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/openfolio/pulse/pkg/analytics"
	"github.com/openfolio/pulse/pkg/observability"
)

const (
	defaultInsightDays = 7
	maxInsightDays     = 90
)

// trackPageView handles POST /v1/profiles/{profileID}/events/pageview.
// Tracking is fire-and-forget: the response is 202 regardless of what the
// store does with the event.
func (s *Server) trackPageView(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profileID"]

	var ev analytics.PageViewEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body")
		return
	}
	// The path, not the body, decides whose stats the event lands in.
	ev.ProfileID = profileID
	if ev.VisitorID == "" {
		writeError(w, http.StatusBadRequest, "visitor_id is required")
		return
	}

	ctx := observability.WithProfileID(r.Context(), profileID)
	s.tracker.TrackPageView(ctx, ev)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// trackLinkClick handles POST /v1/profiles/{profileID}/events/linkclick
func (s *Server) trackLinkClick(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profileID"]

	var ev analytics.LinkClickEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event body")
		return
	}
	ev.ProfileID = profileID
	if ev.VisitorID == "" || ev.LinkID == "" {
		writeError(w, http.StatusBadRequest, "visitor_id and link_id are required")
		return
	}

	ctx := observability.WithProfileID(r.Context(), profileID)
	s.tracker.TrackLinkClick(ctx, ev)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// getRealTimeStats handles GET /v1/profiles/{profileID}/stats/realtime.
// Never errors: an unreachable store reads as a quiet profile.
func (s *Server) getRealTimeStats(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profileID"]
	stats := s.tracker.GetRealTimeStats(r.Context(), profileID)
	writeJSON(w, http.StatusOK, stats)
}

// getVisitorInsights handles GET /v1/profiles/{profileID}/stats/visitors
//
// Query parameters:
//   - days: lookback window in days (default 7, max 90)
func (s *Server) getVisitorInsights(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profileID"]
	days, ok := parseDays(w, r)
	if !ok {
		return
	}

	insights, err := s.tracker.GetVisitorInsights(r.Context(), profileID, days)
	if err != nil {
		s.writeInsightError(w, r, "visitor insights", err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

// getEngagementMetrics handles GET /v1/profiles/{profileID}/stats/engagement
//
// Query parameters:
//   - days: lookback window in days (default 7, max 90)
func (s *Server) getEngagementMetrics(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profileID"]
	days, ok := parseDays(w, r)
	if !ok {
		return
	}

	metrics, err := s.tracker.GetEngagementMetrics(r.Context(), profileID, days)
	if err != nil {
		s.writeInsightError(w, r, "engagement metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// getFunnelAnalytics handles GET /v1/profiles/{profileID}/stats/funnel
func (s *Server) getFunnelAnalytics(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profileID"]

	funnel, err := s.tracker.GetFunnelAnalytics(r.Context(), profileID)
	if err != nil {
		s.writeInsightError(w, r, "funnel analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, funnel)
}

// getCacheStats handles GET /v1/cache/stats
func (s *Server) getCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

// invalidateRequest is the body for POST /v1/cache/invalidate. Exactly one
// of key or pattern must be set.
type invalidateRequest struct {
	Key     string `json:"key,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// invalidateCache handles POST /v1/cache/invalidate
func (s *Server) invalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case req.Key != "" && req.Pattern != "":
		writeError(w, http.StatusBadRequest, "key and pattern are mutually exclusive")
	case req.Key != "":
		s.cache.Invalidate(r.Context(), req.Key)
		writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
	case req.Pattern != "":
		s.cache.InvalidatePattern(r.Context(), req.Pattern)
		writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
	default:
		writeError(w, http.StatusBadRequest, "key or pattern is required")
	}
}

// parseDays reads the days query parameter, writing a 400 on bad input
func parseDays(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return defaultInsightDays, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxInsightDays {
		writeError(w, http.StatusBadRequest, "days must be an integer between 1 and 90")
		return 0, false
	}
	return days, true
}

func (s *Server) writeInsightError(w http.ResponseWriter, r *http.Request, query string, err error) {
	observability.FromContext(r.Context()).WithError(err).Warnf("%s query failed", query)
	if errors.Is(err, analytics.ErrDataUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "analytics data unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}
