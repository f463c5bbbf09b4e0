package analytics

import "errors"

var (
	// ErrDataUnavailable is returned when an aggregate insight query cannot
	// produce trustworthy numbers, typically after a partial scan failure.
	// Callers render a "data unavailable" state rather than stale zeros.
	ErrDataUnavailable = errors.New("analytics data unavailable")

	// ErrMissingProfile is returned when an operation is called without a
	// profile ID.
	ErrMissingProfile = errors.New("profile ID required")
)
