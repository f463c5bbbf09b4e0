package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/openfolio/pulse/pkg/observability"
	"github.com/openfolio/pulse/pkg/store"
)

// Tiered coordinates the local accelerator tier and the durable store behind
// a single get/set/invalidate/batch API. It owns the fail-open policy: no
// method raises past its boundary, and durable-store failures degrade to a
// miss or a no-op.
type Tiered struct {
	local   *Local
	store   *store.Client
	log     *observability.Logger
	metrics *observability.Metrics

	hits        atomic.Int64
	misses      atomic.Int64
	storeErrors atomic.Int64
}

// NewTiered creates the cache coordinator. metrics may be nil.
func NewTiered(local *Local, storeClient *store.Client, log *observability.Logger, metrics *observability.Metrics) *Tiered {
	return &Tiered{
		local:   local,
		store:   storeClient,
		log:     log,
		metrics: metrics,
	}
}

// Get returns the cached value or nil. A nil return means "not cached":
// callers cannot (and must not need to) distinguish a true absence from a
// durable-store failure. The distinction is preserved internally for logging
// and metrics.
func (t *Tiered) Get(ctx context.Context, key string) []byte {
	value, err := t.lookup(ctx, key)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			t.storeErrors.Add(1)
			t.recordStoreError("get")
			t.log.WithField("key", key).WithError(err).Warn("durable store read failed, serving miss")
		}
		t.misses.Add(1)
		t.recordMiss()
		return nil
	}
	t.hits.Add(1)
	t.recordHit()
	return value
}

// lookup is the typed inner read: ErrCacheMiss for a genuine absence,
// ErrStoreUnavailable for an unreachable durable tier.
func (t *Tiered) lookup(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	if value := t.local.Get(key); value != nil {
		return value, nil
	}

	raw, err := t.store.Get(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, ErrCacheMiss
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	value := []byte(raw)
	t.backfillLocal(ctx, key, value)
	return value, nil
}

// backfillLocal populates the local tier after a durable hit, clamped to the
// remaining durable TTL so the local copy cannot outlive the durable entry.
func (t *Tiered) backfillLocal(ctx context.Context, key string, value []byte) {
	remaining, err := t.store.TTL(ctx, key)
	if err != nil || remaining == -2 {
		// Unknown or already-gone durable lifetime: skip the backfill rather
		// than risk a local copy outliving the durable entry.
		return
	}
	if remaining < 0 {
		remaining = 0 // no durable expiry, Local applies its own cap
	}
	t.local.Set(key, value, remaining)
}

// Set writes the local tier first (always succeeds), then propagates to the
// durable store best-effort. A failed durable write is logged and swallowed:
// the local copy stands until it expires or is evicted, a bounded staleness
// window that other processes never observe.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if key == "" {
		return
	}

	t.local.Set(key, value, ttl)
	t.syncLocalSize()

	if err := t.store.Set(ctx, key, value, ttl); err != nil {
		t.storeErrors.Add(1)
		t.recordStoreError("set")
		t.log.WithField("key", key).WithError(err).Warn("durable store write failed, local tier ahead until expiry")
	}
}

// Invalidate removes a key from both tiers. Both deletions are idempotent,
// so no ordering is required between them.
func (t *Tiered) Invalidate(ctx context.Context, key string) {
	if key == "" {
		return
	}

	t.local.Delete(key)
	t.syncLocalSize()

	if err := t.store.Delete(ctx, key); err != nil {
		t.storeErrors.Add(1)
		t.recordStoreError("delete")
		t.log.WithField("key", key).WithError(err).Warn("durable store delete failed")
	}
}

// InvalidatePattern removes every key matching a glob from both tiers. The
// scan is O(total keys in the durable store); callers restrict it to coarse,
// infrequent invalidations.
func (t *Tiered) InvalidatePattern(ctx context.Context, pattern string) {
	keys, err := t.store.ScanKeys(ctx, pattern)
	if err != nil {
		t.storeErrors.Add(1)
		t.recordStoreError("scan")
		t.log.WithField("pattern", pattern).WithError(err).Warn("pattern invalidation scan failed")
		return
	}

	for _, key := range keys {
		t.local.Delete(key)
	}
	t.syncLocalSize()
	if err := t.store.Delete(ctx, keys...); err != nil {
		t.storeErrors.Add(1)
		t.recordStoreError("delete")
		t.log.WithField("pattern", pattern).WithError(err).Warn("pattern invalidation delete failed")
	}
}

// MGet retrieves multiple keys. The result is positionally aligned with the
// input; keys found locally short-circuit, and only the local-miss subset
// round-trips to the durable store in one batched call. Absent or
// unavailable keys yield nil at their position.
func (t *Tiered) MGet(ctx context.Context, keys []string) [][]byte {
	values := make([][]byte, len(keys))

	var missKeys []string
	var missIdx []int
	for i, key := range keys {
		if value := t.local.Get(key); value != nil {
			values[i] = value
			t.hits.Add(1)
			t.recordHit()
			continue
		}
		missKeys = append(missKeys, key)
		missIdx = append(missIdx, i)
	}
	if len(missKeys) == 0 {
		return values
	}

	fetched, err := t.store.MGet(ctx, missKeys...)
	if err != nil {
		t.storeErrors.Add(int64(len(missKeys)))
		t.recordStoreError("mget")
		t.misses.Add(int64(len(missKeys)))
		t.log.WithField("keys", len(missKeys)).WithError(err).Warn("durable store batch read failed, serving misses")
		return values
	}

	for j, raw := range fetched {
		if raw == nil {
			t.misses.Add(1)
			t.recordMiss()
			continue
		}
		value := []byte(*raw)
		values[missIdx[j]] = value
		t.backfillLocal(ctx, missKeys[j], value)
		t.hits.Add(1)
		t.recordHit()
	}
	return values
}

// MSet stores multiple entries with a shared TTL: local writes first, then
// one pipelined durable write, best-effort like Set.
func (t *Tiered) MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) {
	if len(entries) == 0 {
		return
	}

	for key, value := range entries {
		t.local.Set(key, value, ttl)
	}
	t.syncLocalSize()

	if err := t.store.MSet(ctx, entries, ttl); err != nil {
		t.storeErrors.Add(1)
		t.recordStoreError("mset")
		t.log.WithField("keys", len(entries)).WithError(err).Warn("durable store batch write failed, local tier ahead until expiry")
	}
}

// Stats returns cache introspection data. No side effects.
func (t *Tiered) Stats() Stats {
	size := t.local.Len()
	capacity := t.local.Capacity()
	t.syncLocalSize()

	stats := Stats{
		LocalSize:     size,
		LocalCapacity: capacity,
		Hits:          t.hits.Load(),
		Misses:        t.misses.Load(),
		StoreErrors:   t.storeErrors.Load(),
	}
	if capacity > 0 {
		stats.LoadRatio = float64(size) / float64(capacity)
	}
	return stats
}

func (t *Tiered) syncLocalSize() {
	if t.metrics != nil {
		t.metrics.CacheLocalSize.Set(float64(t.local.Len()))
	}
}

func (t *Tiered) recordHit() {
	if t.metrics != nil {
		t.metrics.CacheHitsTotal.Inc()
	}
}

func (t *Tiered) recordMiss() {
	if t.metrics != nil {
		t.metrics.CacheMissesTotal.Inc()
	}
}

func (t *Tiered) recordStoreError(op string) {
	if t.metrics != nil {
		t.metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	}
}
