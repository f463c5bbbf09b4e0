// Package store provides the typed client for the shared durable key-value
// store (Redis). It is the system of record for cached values, real-time
// counters, histograms and probabilistic visitor sets.
//
// All operations are network round-trips and return distinguishable errors;
// callers (the tiered cache, the analytics tracker) decide whether a failure
// is suppressed or surfaced. Every call carries a bounded timeout: if the
// caller's context has no deadline, the client applies Config.OpTimeout.
//
// Atomic primitives (Incr, HIncrBy, CardinalityAdd) are commutative at the
// store, so concurrent writers across processes never need a distributed
// lock.
package store
