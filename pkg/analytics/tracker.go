package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/openfolio/pulse/pkg/cache"
	"github.com/openfolio/pulse/pkg/observability"
	"github.com/openfolio/pulse/pkg/store"
)

// Tracker records page views and link clicks and serves the real-time stats
// read path. It owns no state: counters and histograms live in the durable
// store, event records in the tiered cache.
type Tracker struct {
	store   *store.Client
	cache   *cache.Tiered
	log     *observability.Logger
	metrics *observability.Metrics
	cfg     Config

	now func() time.Time
}

// NewTracker creates a tracker. metrics may be nil.
func NewTracker(storeClient *store.Client, tiered *cache.Tiered, log *observability.Logger, metrics *observability.Metrics, cfg Config) *Tracker {
	return &Tracker{
		store:   storeClient,
		cache:   tiered,
		log:     log,
		metrics: metrics,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
}

// TrackPageView records a page view. Side-effecting only: every step is
// independently best-effort, so a failure in one never blocks the others and
// nothing is surfaced to the originating request.
func (t *Tracker) TrackPageView(ctx context.Context, ev PageViewEvent) {
	if ev.ProfileID == "" {
		t.log.Warn("page view dropped, missing profile ID")
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = t.now().UTC()
	}
	t.recordEvent("pageview")

	t.persistRecord(ctx, "pageview", pageViewRecordKey(ev.ProfileID, ev.OccurredAt, ev.ID), ev)
	t.bumpWindowCounter(ctx, "pageview", realtimeViewsKey(ev.ProfileID))
	t.bumpHistogram(ctx, "pageview", geoKey(ev.ProfileID), orUnknown(ev.Country))
	t.bumpHistogram(ctx, "pageview", devicesKey(ev.ProfileID), orUnknown(ev.Device))
	if ev.FunnelStep != "" {
		t.bumpHistogram(ctx, "pageview", funnelKey(ev.ProfileID), ev.FunnelStep)
	}
	t.recordVisitor(ctx, "pageview", ev.ProfileID, ev.VisitorID, ev.OccurredAt)
}

// TrackLinkClick records a link click with the same best-effort contract as
// TrackPageView.
func (t *Tracker) TrackLinkClick(ctx context.Context, ev LinkClickEvent) {
	if ev.ProfileID == "" {
		t.log.Warn("link click dropped, missing profile ID")
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = t.now().UTC()
	}
	t.recordEvent("linkclick")

	t.persistRecord(ctx, "linkclick", linkClickRecordKey(ev.ProfileID, ev.OccurredAt, ev.ID), ev)
	t.bumpWindowCounter(ctx, "linkclick", realtimeClicksKey(ev.ProfileID))
	t.bumpHistogram(ctx, "linkclick", linksKey(ev.ProfileID), orUnknown(ev.LinkID))
}

// RealTimeStats is the low-latency activity snapshot for one profile
type RealTimeStats struct {
	CurrentVisitors int64            `json:"current_visitors"`
	RecentClicks    int64            `json:"recent_clicks"`
	ActiveCountries map[string]int64 `json:"active_countries"`
}

// GetRealTimeStats reads the activity counters and the country histogram.
// Expired or absent counters report zero; an unreachable store degrades to
// zeroes and an empty histogram, never an error.
func (t *Tracker) GetRealTimeStats(ctx context.Context, profileID string) RealTimeStats {
	stats := RealTimeStats{
		ActiveCountries: make(map[string]int64),
	}
	if profileID == "" {
		return stats
	}

	stats.CurrentVisitors = t.readCounter(ctx, realtimeViewsKey(profileID))
	stats.RecentClicks = t.readCounter(ctx, realtimeClicksKey(profileID))

	countries, err := t.store.HGetAllInt(ctx, geoKey(profileID))
	if err != nil {
		t.log.WithField("profile_id", profileID).WithError(err).Warn("country histogram read failed, serving empty")
		return stats
	}
	stats.ActiveCountries = countries
	return stats
}

// persistRecord stores the raw event through the tiered cache with the
// retention TTL. The cache is fail-open, so this never errors; a durable
// write failure only shortens the record's effective retention.
func (t *Tracker) persistRecord(ctx context.Context, eventType, key string, record interface{}) {
	data, err := json.Marshal(record)
	if err != nil {
		t.recordStepError(eventType, "persist")
		t.log.WithField("key", key).WithError(err).Warn("event record marshal failed")
		return
	}
	t.cache.Set(ctx, key, data, t.cfg.RetentionWindow)
}

// bumpWindowCounter increments a TTL bucket, retrying once on failure.
// Undercounting is tolerable; cascading latency into the originating request
// is not, hence the single retry with no backoff.
func (t *Tracker) bumpWindowCounter(ctx context.Context, eventType, key string) {
	_, err := t.store.IncrWithTTL(ctx, key, t.cfg.RealtimeWindow)
	if err != nil {
		_, err = t.store.IncrWithTTL(ctx, key, t.cfg.RealtimeWindow)
	}
	if err != nil {
		t.recordStepError(eventType, "counter")
		t.log.WithField("key", key).WithError(err).Warn("activity counter increment failed")
	}
}

func (t *Tracker) bumpHistogram(ctx context.Context, eventType, hashKey, field string) {
	if _, err := t.store.HIncrBy(ctx, hashKey, field, 1); err != nil {
		t.recordStepError(eventType, "histogram")
		t.log.WithFields(map[string]interface{}{
			"key":   hashKey,
			"field": field,
		}).WithError(err).Warn("histogram increment failed")
	}
}

// recordVisitor adds the visitor identity to the day's probabilistic set and
// bounds the set's lifetime to one calendar day.
func (t *Tracker) recordVisitor(ctx context.Context, eventType, profileID, visitorID string, at time.Time) {
	if visitorID == "" {
		return
	}

	key := visitorsKey(profileID, at)
	if err := t.store.CardinalityAdd(ctx, key, visitorID); err != nil {
		t.recordStepError(eventType, "visitor_set")
		t.log.WithField("key", key).WithError(err).Warn("visitor set add failed")
		return
	}
	if err := t.store.Expire(ctx, key, t.cfg.VisitorSetTTL); err != nil {
		t.log.WithField("key", key).WithError(err).Warn("visitor set expire failed")
	}
}

func (t *Tracker) readCounter(ctx context.Context, key string) int64 {
	val, err := t.store.GetInt(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return 0
	} else if err != nil {
		t.log.WithField("key", key).WithError(err).Warn("counter read failed, serving zero")
		return 0
	}
	return val
}

func (t *Tracker) recordEvent(eventType string) {
	if t.metrics != nil {
		t.metrics.EventsTrackedTotal.WithLabelValues(eventType).Inc()
	}
}

func (t *Tracker) recordStepError(eventType, step string) {
	if t.metrics != nil {
		t.metrics.EventStepErrorsTotal.WithLabelValues(eventType, step).Inc()
	}
}

func orUnknown(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
