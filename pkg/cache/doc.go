// Package cache implements the tiered cache: a capacity-bounded, in-process
// LRU accelerator in front of the shared durable store.
//
// The local tier is never authoritative. Losing it changes latency, never
// correctness, and its entries always live at most as long as their durable
// counterparts. The coordinator is fail-open: durable store failures are
// logged and collapse to a cache miss or a no-op, never an error to the
// caller.
//
// # Usage
//
//	local := cache.NewLocal(cfg)
//	tiered := cache.NewTiered(local, storeClient, logger, metrics)
//
//	tiered.Set(ctx, "schedule:p1:abc", payload, 10*time.Minute)
//	if data := tiered.Get(ctx, "schedule:p1:abc"); data != nil {
//		// cached
//	}
//
// Pattern invalidation scans the whole durable keyspace and is reserved for
// coarse administrative busting (for example all schedules of one profile),
// never per-request use.
package cache
