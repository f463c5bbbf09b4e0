package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openfolio/pulse/pkg/observability"
	"github.com/openfolio/pulse/pkg/store"
	"golang.org/x/sync/errgroup"
)

// rollupParallelism bounds concurrent per-profile compactions.
const rollupParallelism = 4

// Rollup is the scheduled maintenance job. It keeps the only unbounded
// dimension, the per-link click histogram, capped at a top-K with an
// overflow bucket, and sweeps retained event records past the retention
// window whose store TTL was lost (for example after a restore).
//
// Geo, device and funnel histograms grow with real-world cardinality, which
// is naturally small, and are deliberately left uncompacted.
type Rollup struct {
	store *store.Client
	log   *observability.Logger
	cfg   Config
	now   func() time.Time
}

// NewRollup creates a rollup job
func NewRollup(storeClient *store.Client, log *observability.Logger, cfg Config) *Rollup {
	return &Rollup{
		store: storeClient,
		log:   log,
		cfg:   cfg.withDefaults(),
		now:   time.Now,
	}
}

// Run executes one full maintenance pass
func (r *Rollup) Run(ctx context.Context) error {
	if err := r.CompactLinkHistograms(ctx); err != nil {
		return fmt.Errorf("link histogram compaction: %w", err)
	}
	if err := r.SweepExpiredRecords(ctx); err != nil {
		return fmt.Errorf("record sweep: %w", err)
	}
	return nil
}

// CompactLinkHistograms trims every per-profile link histogram to the
// configured top-K, folding trimmed counts into the overflow bucket so the
// histogram sum is preserved. Concurrent increments to surviving fields are
// unaffected; an increment to a trimmed field racing the compaction simply
// recreates that field, which the next pass folds again.
func (r *Rollup) CompactLinkHistograms(ctx context.Context) error {
	keys, err := r.store.ScanKeys(ctx, "links:*")
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(rollupParallelism)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			return r.compactHistogram(ctx, key)
		})
	}
	return g.Wait()
}

func (r *Rollup) compactHistogram(ctx context.Context, key string) error {
	fields, err := r.store.HGetAllInt(ctx, key)
	if err != nil {
		return err
	}

	overflow := fields[linkOverflowBucket]
	delete(fields, linkOverflowBucket)
	if len(fields) <= r.cfg.LinkHistogramTopK {
		return nil
	}

	type fieldCount struct {
		field string
		count int64
	}
	ranked := make([]fieldCount, 0, len(fields))
	for field, count := range fields {
		ranked = append(ranked, fieldCount{field, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].field < ranked[j].field
	})

	trimmed := ranked[r.cfg.LinkHistogramTopK:]
	var trimmedSum int64
	trimmedFields := make([]string, 0, len(trimmed))
	for _, fc := range trimmed {
		trimmedSum += fc.count
		trimmedFields = append(trimmedFields, fc.field)
	}

	// Fold before delete: a crash between the two overstates the sum, which
	// keeps the "histogram sum >= events" invariant intact.
	if _, err := r.store.HIncrBy(ctx, key, linkOverflowBucket, trimmedSum); err != nil {
		return err
	}
	if err := r.store.HDel(ctx, key, trimmedFields...); err != nil {
		return err
	}

	r.log.WithFields(map[string]interface{}{
		"key":      key,
		"trimmed":  len(trimmedFields),
		"overflow": overflow + trimmedSum,
	}).Info("compacted link histogram")
	return nil
}

// SweepExpiredRecords deletes event records older than the retention window.
// Records normally expire via their store TTL; the sweep is a backstop keyed
// on the timestamp embedded in the record key.
func (r *Rollup) SweepExpiredRecords(ctx context.Context) error {
	cutoff := r.now().UTC().Add(-r.cfg.RetentionWindow)

	var stale []string
	for _, pattern := range []string{"pageview:*", "linkclick:*"} {
		keys, err := r.store.ScanKeys(ctx, pattern)
		if err != nil {
			return err
		}
		for _, key := range keys {
			at, err := recordKeyTime(key)
			if err != nil {
				r.log.WithField("key", key).WithError(err).Warn("skipping malformed record key")
				continue
			}
			if at.Before(cutoff) {
				stale = append(stale, key)
			}
		}
	}

	if len(stale) == 0 {
		return nil
	}
	if err := r.store.Delete(ctx, stale...); err != nil {
		return err
	}
	r.log.WithField("deleted", len(stale)).Info("swept expired event records")
	return nil
}
