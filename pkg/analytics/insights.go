package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// VisitorInsights summarizes retained page-view records over a date range
type VisitorInsights struct {
	ProfileID            string          `json:"profile_id"`
	Days                 int             `json:"days"`
	TotalViews           int64           `json:"total_views"`
	UniqueVisitors       int64           `json:"unique_visitors"`
	ReturningVisitors    int64           `json:"returning_visitors"`
	ReturningRate        float64         `json:"returning_rate"`
	AvgTimeOnPageSeconds float64         `json:"avg_time_on_page_seconds"`
	BounceRate           float64         `json:"bounce_rate"`
	TopReferrers         []ReferrerCount `json:"top_referrers"`
}

// ReferrerCount is one entry of the referrer ranking
type ReferrerCount struct {
	Referrer string `json:"referrer"`
	Views    int64  `json:"views"`
}

// EngagementMetrics summarizes interaction depth over a date range
type EngagementMetrics struct {
	ProfileID       string           `json:"profile_id"`
	Days            int              `json:"days"`
	TotalViews      int64            `json:"total_views"`
	TotalClicks     int64            `json:"total_clicks"`
	ViewsPerVisitor float64          `json:"views_per_visitor"`
	ClicksPerView   float64          `json:"clicks_per_view"`
	Devices         map[string]int64 `json:"devices"`
	TopLinks        []LinkCount      `json:"top_links"`
}

// LinkCount is one entry of the link ranking
type LinkCount struct {
	LinkID string `json:"link_id"`
	Clicks int64  `json:"clicks"`
}

// FunnelAnalytics reports per-step counts and conversion rates
type FunnelAnalytics struct {
	ProfileID string       `json:"profile_id"`
	Steps     []FunnelStep `json:"steps"`
}

// FunnelStep is one step of the funnel in canonical order
type FunnelStep struct {
	Step       string  `json:"step"`
	Count      int64   `json:"count"`
	Conversion float64 `json:"conversion"`
}

// GetVisitorInsights aggregates the retained page-view records whose
// timestamp falls in [now - days, now]. Unique visitors come from merging
// the daily cardinality estimates; everything else is computed from the
// records themselves. A scan or estimate failure returns ErrDataUnavailable.
func (t *Tracker) GetVisitorInsights(ctx context.Context, profileID string, days int) (*VisitorInsights, error) {
	if profileID == "" {
		return nil, ErrMissingProfile
	}
	if days < 1 {
		days = 1
	}

	now := t.now().UTC()
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	records, err := t.pageViewsSince(ctx, profileID, cutoff)
	if err != nil {
		t.recordInsightQuery("visitors", "error")
		return nil, err
	}

	unique, err := t.uniqueVisitors(ctx, profileID, cutoff, now)
	if err != nil {
		t.recordInsightQuery("visitors", "error")
		return nil, err
	}

	insights := &VisitorInsights{
		ProfileID:      profileID,
		Days:           days,
		TotalViews:     int64(len(records)),
		UniqueVisitors: unique,
	}

	// Returning visitors: identities seen on two or more distinct days.
	// Bounce rate: sessions (visitor+day) with exactly one page view.
	visitorDays := make(map[string]map[string]struct{})
	sessionViews := make(map[string]int)
	referrers := make(map[string]int64)
	var totalTime float64

	for _, rec := range records {
		day := rec.OccurredAt.UTC().Format("2006-01-02")
		if rec.VisitorID != "" {
			if visitorDays[rec.VisitorID] == nil {
				visitorDays[rec.VisitorID] = make(map[string]struct{})
			}
			visitorDays[rec.VisitorID][day] = struct{}{}
			sessionViews[rec.VisitorID+"|"+day]++
		}
		if rec.Referrer != "" {
			referrers[rec.Referrer]++
		}
		totalTime += rec.TimeOnPageSeconds
	}

	for _, daySet := range visitorDays {
		if len(daySet) >= 2 {
			insights.ReturningVisitors++
		}
	}
	if len(visitorDays) > 0 {
		insights.ReturningRate = float64(insights.ReturningVisitors) / float64(len(visitorDays))
	}
	if len(records) > 0 {
		insights.AvgTimeOnPageSeconds = totalTime / float64(len(records))
	}
	if len(sessionViews) > 0 {
		var bounced int
		for _, views := range sessionViews {
			if views == 1 {
				bounced++
			}
		}
		insights.BounceRate = float64(bounced) / float64(len(sessionViews))
	}
	insights.TopReferrers = rankReferrers(referrers, t.cfg.TopReferrers)

	t.recordInsightQuery("visitors", "ok")
	return insights, nil
}

// GetEngagementMetrics combines record counts with the device and link
// histograms.
func (t *Tracker) GetEngagementMetrics(ctx context.Context, profileID string, days int) (*EngagementMetrics, error) {
	if profileID == "" {
		return nil, ErrMissingProfile
	}
	if days < 1 {
		days = 1
	}

	now := t.now().UTC()
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	views, err := t.pageViewsSince(ctx, profileID, cutoff)
	if err != nil {
		t.recordInsightQuery("engagement", "error")
		return nil, err
	}
	clicks, err := t.linkClicksSince(ctx, profileID, cutoff)
	if err != nil {
		t.recordInsightQuery("engagement", "error")
		return nil, err
	}

	devices, err := t.store.HGetAllInt(ctx, devicesKey(profileID))
	if err != nil {
		t.recordInsightQuery("engagement", "error")
		return nil, fmt.Errorf("%w: device histogram: %v", ErrDataUnavailable, err)
	}
	links, err := t.store.HGetAllInt(ctx, linksKey(profileID))
	if err != nil {
		t.recordInsightQuery("engagement", "error")
		return nil, fmt.Errorf("%w: link histogram: %v", ErrDataUnavailable, err)
	}

	metrics := &EngagementMetrics{
		ProfileID:   profileID,
		Days:        days,
		TotalViews:  int64(len(views)),
		TotalClicks: int64(len(clicks)),
		Devices:     devices,
		TopLinks:    rankLinks(links, t.cfg.TopLinks),
	}

	visitors := make(map[string]struct{})
	for _, v := range views {
		if v.VisitorID != "" {
			visitors[v.VisitorID] = struct{}{}
		}
	}
	if len(visitors) > 0 {
		metrics.ViewsPerVisitor = float64(len(views)) / float64(len(visitors))
	}
	if len(views) > 0 {
		metrics.ClicksPerView = float64(len(clicks)) / float64(len(views))
	}

	t.recordInsightQuery("engagement", "ok")
	return metrics, nil
}

// GetFunnelAnalytics reads the funnel-step histogram and reports counts in
// canonical step order with step-over-step conversion.
func (t *Tracker) GetFunnelAnalytics(ctx context.Context, profileID string) (*FunnelAnalytics, error) {
	if profileID == "" {
		return nil, ErrMissingProfile
	}

	counts, err := t.store.HGetAllInt(ctx, funnelKey(profileID))
	if err != nil {
		t.recordInsightQuery("funnel", "error")
		return nil, fmt.Errorf("%w: funnel histogram: %v", ErrDataUnavailable, err)
	}

	funnel := &FunnelAnalytics{ProfileID: profileID}
	var prev int64 = -1
	for _, step := range t.cfg.FunnelSteps {
		count := counts[step]
		fs := FunnelStep{Step: step, Count: count}
		if prev > 0 {
			fs.Conversion = float64(count) / float64(prev)
		} else if prev == -1 && count > 0 {
			fs.Conversion = 1.0
		}
		funnel.Steps = append(funnel.Steps, fs)
		prev = count
	}

	t.recordInsightQuery("funnel", "ok")
	return funnel, nil
}

// pageViewsSince loads retained page-view records newer than cutoff. Records
// that expired between the scan and the batched fetch are skipped, not an
// error; a failed scan or fetch is.
func (t *Tracker) pageViewsSince(ctx context.Context, profileID string, cutoff time.Time) ([]PageViewEvent, error) {
	keys, err := t.recordKeysSince(ctx, pageViewRecordPattern(profileID), cutoff)
	if err != nil {
		return nil, err
	}

	var records []PageViewEvent
	for _, raw := range t.cache.MGet(ctx, keys) {
		if raw == nil {
			continue
		}
		var ev PageViewEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.log.WithError(err).Debug("skipping undecodable page view record")
			continue
		}
		if ev.OccurredAt.Before(cutoff) {
			continue
		}
		records = append(records, ev)
	}
	return records, nil
}

func (t *Tracker) linkClicksSince(ctx context.Context, profileID string, cutoff time.Time) ([]LinkClickEvent, error) {
	keys, err := t.recordKeysSince(ctx, linkClickRecordPattern(profileID), cutoff)
	if err != nil {
		return nil, err
	}

	var records []LinkClickEvent
	for _, raw := range t.cache.MGet(ctx, keys) {
		if raw == nil {
			continue
		}
		var ev LinkClickEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.log.WithError(err).Debug("skipping undecodable link click record")
			continue
		}
		if ev.OccurredAt.Before(cutoff) {
			continue
		}
		records = append(records, ev)
	}
	return records, nil
}

// recordKeysSince scans record keys and pre-filters on the timestamp
// embedded in the key, so the batched fetch only touches in-range records.
func (t *Tracker) recordKeysSince(ctx context.Context, pattern string, cutoff time.Time) ([]string, error) {
	keys, err := t.store.ScanKeys(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: record scan: %v", ErrDataUnavailable, err)
	}

	inRange := keys[:0]
	for _, key := range keys {
		at, err := recordKeyTime(key)
		if err != nil {
			continue
		}
		if !at.Before(cutoff) {
			inRange = append(inRange, key)
		}
	}
	return inRange, nil
}

// uniqueVisitors merges the daily cardinality estimates covering the range.
// Sets older than their 24h TTL contribute zero, which bounds the estimate's
// horizon; that trade-off is accepted in exchange for constant memory.
func (t *Tracker) uniqueVisitors(ctx context.Context, profileID string, cutoff, now time.Time) (int64, error) {
	var setKeys []string
	for day := cutoff.Truncate(24 * time.Hour); !day.After(now); day = day.Add(24 * time.Hour) {
		setKeys = append(setKeys, visitorsKey(profileID, day))
	}

	count, err := t.store.CardinalityCount(ctx, setKeys...)
	if err != nil {
		return 0, fmt.Errorf("%w: visitor cardinality: %v", ErrDataUnavailable, err)
	}
	return count, nil
}

func (t *Tracker) recordInsightQuery(query, status string) {
	if t.metrics != nil {
		t.metrics.InsightQueriesTotal.WithLabelValues(query, status).Inc()
	}
}

func rankReferrers(counts map[string]int64, limit int) []ReferrerCount {
	ranked := make([]ReferrerCount, 0, len(counts))
	for referrer, views := range counts {
		ranked = append(ranked, ReferrerCount{Referrer: referrer, Views: views})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Views != ranked[j].Views {
			return ranked[i].Views > ranked[j].Views
		}
		return ranked[i].Referrer < ranked[j].Referrer
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func rankLinks(counts map[string]int64, limit int) []LinkCount {
	ranked := make([]LinkCount, 0, len(counts))
	for linkID, clicks := range counts {
		if linkID == linkOverflowBucket {
			continue
		}
		ranked = append(ranked, LinkCount{LinkID: linkID, Clicks: clicks})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Clicks != ranked[j].Clicks {
			return ranked[i].Clicks > ranked[j].Clicks
		}
		return ranked[i].LinkID < ranked[j].LinkID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
