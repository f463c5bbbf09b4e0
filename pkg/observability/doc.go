// Package observability provides structured logging, Prometheus metrics and
// health checks for the pulse service.
//
// Logging uses stdlib slog with a JSON handler behind a small wrapper that
// supports field chaining and context propagation of request and profile
// IDs. Metrics are registered against an explicit registry created at
// process start and passed by dependency injection, never a package-level
// default.
package observability
