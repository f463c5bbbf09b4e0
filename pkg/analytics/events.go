package analytics

import "time"

// PageViewEvent represents a single page view of a portfolio profile
type PageViewEvent struct {
	ID        string `json:"id"`
	ProfileID string `json:"profile_id"`

	// VisitorID is a stable anonymous identity (for example a hashed
	// IP+user-agent pair minted by the web frontend).
	VisitorID string `json:"visitor_id"`

	Path       string `json:"path,omitempty"`
	Country    string `json:"country,omitempty"`
	Device     string `json:"device,omitempty"`
	Referrer   string `json:"referrer,omitempty"`
	FunnelStep string `json:"funnel_step,omitempty"`

	TimeOnPageSeconds float64   `json:"time_on_page_seconds,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// LinkClickEvent represents a click on one of a profile's links
type LinkClickEvent struct {
	ID        string `json:"id"`
	ProfileID string `json:"profile_id"`
	VisitorID string `json:"visitor_id"`

	LinkID  string `json:"link_id"`
	Country string `json:"country,omitempty"`
	Device  string `json:"device,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}
