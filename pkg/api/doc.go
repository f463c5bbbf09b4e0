// Package api exposes the HTTP surface consumed by the portfolio web app:
// fire-and-forget event tracking, real-time and aggregate stats reads, and
// administrative cache introspection/invalidation.
//
// Tracking endpoints always answer 202: the analytics subsystem is
// best-effort by contract and never fails the caller's request. Aggregate
// stats endpoints answer 503 with a "data unavailable" body when the
// underlying query cannot produce trustworthy numbers.
package api
