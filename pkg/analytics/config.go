package analytics

import "time"

// Config holds analytics tuning knobs
type Config struct {
	// RealtimeWindow is the TTL of the view/click activity buckets. Each
	// increment refreshes the window.
	RealtimeWindow time.Duration

	// VisitorSetTTL bounds the lifetime of a daily unique-visitor set.
	VisitorSetTTL time.Duration

	// RetentionWindow is how long raw event records are kept for aggregate
	// insight queries.
	RetentionWindow time.Duration

	// TopReferrers and TopLinks cap the ranked lists in insight responses.
	TopReferrers int
	TopLinks     int

	// LinkHistogramTopK is the per-profile link histogram size enforced by
	// the rollup job; trimmed counts accumulate in an overflow bucket.
	LinkHistogramTopK int

	// FunnelSteps is the canonical step order for funnel analytics.
	FunnelSteps []string
}

// DefaultConfig returns default analytics configuration
func DefaultConfig() Config {
	return Config{
		RealtimeWindow:    300 * time.Second,
		VisitorSetTTL:     24 * time.Hour,
		RetentionWindow:   7 * 24 * time.Hour,
		TopReferrers:      10,
		TopLinks:          10,
		LinkHistogramTopK: 100,
		FunnelSteps:       []string{"visit", "engage", "click", "contact"},
	}
}

// withDefaults fills zero-valued fields from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RealtimeWindow <= 0 {
		c.RealtimeWindow = def.RealtimeWindow
	}
	if c.VisitorSetTTL <= 0 {
		c.VisitorSetTTL = def.VisitorSetTTL
	}
	if c.RetentionWindow <= 0 {
		c.RetentionWindow = def.RetentionWindow
	}
	if c.TopReferrers <= 0 {
		c.TopReferrers = def.TopReferrers
	}
	if c.TopLinks <= 0 {
		c.TopLinks = def.TopLinks
	}
	if c.LinkHistogramTopK <= 0 {
		c.LinkHistogramTopK = def.LinkHistogramTopK
	}
	if len(c.FunnelSteps) == 0 {
		c.FunnelSteps = def.FunnelSteps
	}
	return c
}
