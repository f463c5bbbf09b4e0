// Package analytics implements real-time visitor analytics for portfolio
// profiles on top of the durable store's atomic primitives and the tiered
// cache.
//
// Counters, histograms and visitor-cardinality sets are written directly to
// the durable store, bypassing the local cache tier: increments must be
// exact per writer, and the store's atomic INCR/HINCRBY/PFADD commutes
// across concurrent writers, so no coordination protocol is needed. Full
// event records are persisted through the tiered cache with a bounded
// retention TTL and consulted by the slower aggregate insight queries.
//
// Tracking is fire-and-forget: every step of TrackPageView and
// TrackLinkClick is independently best-effort, and a failed step is logged
// and counted, never surfaced to the originating request. Aggregate queries
// are the opposite: a partial failure returns ErrDataUnavailable so that
// dashboards render an explicit "data unavailable" state instead of silently
// wrong numbers.
//
// The real-time view and click counters are TTL buckets refreshed on every
// increment. They behave as a decaying "recent activity" signal reset by
// traffic, not an exact sliding five-minute count; that approximation is
// intentional.
package analytics
