package cache

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/openfolio/pulse/pkg/observability"
	"github.com/openfolio/pulse/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTieredTest(t *testing.T, cfg Config) (*Tiered, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	storeCfg := store.DefaultConfig()
	storeCfg.RedisURL = fmt.Sprintf("redis://%s", mr.Addr())
	client, err := store.NewClient(storeCfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	log := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewTiered(NewLocal(cfg), client, log, nil), mr
}

func TestTieredRoundTrip(t *testing.T) {
	ctx := context.Background()
	tiered, mr := setupTieredTest(t, Config{Capacity: 10, LocalTTL: time.Minute})

	tiered.Set(ctx, "k1", []byte("v1"), time.Hour)
	assert.Equal(t, []byte("v1"), tiered.Get(ctx, "k1"))

	// The write reached the durable tier too.
	raw, err := mr.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", raw)
}

func TestTieredGetMiss(t *testing.T) {
	ctx := context.Background()
	tiered, _ := setupTieredTest(t, Config{Capacity: 10, LocalTTL: time.Minute})

	assert.Nil(t, tiered.Get(ctx, "missing"))
	assert.Nil(t, tiered.Get(ctx, ""))

	stats := tiered.Stats()
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(0), stats.StoreErrors)
}

func TestTieredBackfill(t *testing.T) {
	ctx := context.Background()
	tiered, mr := setupTieredTest(t, Config{Capacity: 10, LocalTTL: time.Minute})

	// Seed the durable tier directly, bypassing the local tier.
	mr.Set("k1", "v1")

	require.Equal(t, []byte("v1"), tiered.Get(ctx, "k1"))
	assert.Equal(t, 1, tiered.local.Len())

	// A second read is served locally even after the durable tier is gone.
	mr.Del("k1")
	assert.Equal(t, []byte("v1"), tiered.Get(ctx, "k1"))
}

func TestTieredFailOpen(t *testing.T) {
	ctx := context.Background()
	tiered, mr := setupTieredTest(t, Config{Capacity: 10, LocalTTL: time.Minute})

	tiered.Set(ctx, "warm", []byte("v"), time.Hour)
	mr.Close()

	t.Run("get degrades to miss", func(t *testing.T) {
		assert.Nil(t, tiered.Get(ctx, "cold"))
		assert.Greater(t, tiered.Stats().StoreErrors, int64(0))
	})

	t.Run("local tier still serves", func(t *testing.T) {
		assert.Equal(t, []byte("v"), tiered.Get(ctx, "warm"))
	})

	t.Run("set succeeds locally", func(t *testing.T) {
		tiered.Set(ctx, "k2", []byte("v2"), time.Hour)
		assert.Equal(t, []byte("v2"), tiered.Get(ctx, "k2"))
	})

	t.Run("invalidate is a no-op that does not panic", func(t *testing.T) {
		tiered.Invalidate(ctx, "warm")
		assert.Nil(t, tiered.Get(ctx, "warm"))
	})
}

func TestTieredInvalidate(t *testing.T) {
	ctx := context.Background()
	tiered, mr := setupTieredTest(t, Config{Capacity: 10, LocalTTL: time.Minute})

	tiered.Set(ctx, "k1", []byte("v1"), time.Hour)
	tiered.Invalidate(ctx, "k1")

	assert.Nil(t, tiered.Get(ctx, "k1"))
	assert.False(t, mr.Exists("k1"))

	// Idempotent.
	tiered.Invalidate(ctx, "k1")
}

func TestTieredInvalidatePattern(t *testing.T) {
	ctx := context.Background()
	tiered, mr := setupTieredTest(t, Config{Capacity: 10, LocalTTL: time.Minute})

	tiered.Set(ctx, "profile:1:views", []byte("10"), time.Hour)
	tiered.Set(ctx, "profile:1:clicks", []byte("3"), time.Hour)
	tiered.Set(ctx, "profile:2:views", []byte("7"), time.Hour)

	tiered.InvalidatePattern(ctx, "profile:1:*")

	assert.Nil(t, tiered.Get(ctx, "profile:1:views"))
	assert.Nil(t, tiered.Get(ctx, "profile:1:clicks"))
	assert.Equal(t, []byte("7"), tiered.Get(ctx, "profile:2:views"))
	assert.False(t, mr.Exists("profile:1:views"))
	assert.True(t, mr.Exists("profile:2:views"))
}

func TestTieredMGet(t *testing.T) {
	ctx := context.Background()
	tiered, mr := setupTieredTest(t, Config{Capacity: 10, LocalTTL: time.Minute})

	tiered.Set(ctx, "a", []byte("1"), time.Hour)
	mr.Set("b", "2") // durable only

	values := tiered.MGet(ctx, []string{"a", "missing", "b"})
	require.Len(t, values, 3)
	assert.Equal(t, []byte("1"), values[0])
	assert.Nil(t, values[1])
	assert.Equal(t, []byte("2"), values[2])

	t.Run("all absent", func(t *testing.T) {
		values := tiered.MGet(ctx, []string{"x", "y"})
		require.Len(t, values, 2)
		assert.Nil(t, values[0])
		assert.Nil(t, values[1])
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, tiered.MGet(ctx, nil))
	})
}

func TestTieredMSet(t *testing.T) {
	ctx := context.Background()
	tiered, mr := setupTieredTest(t, Config{Capacity: 10, LocalTTL: time.Minute})

	tiered.MSet(ctx, map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}, time.Hour)

	assert.Equal(t, []byte("1"), tiered.Get(ctx, "a"))
	assert.Equal(t, []byte("2"), tiered.Get(ctx, "b"))
	assert.True(t, mr.Exists("a"))
	assert.True(t, mr.Exists("b"))

	tiered.MSet(ctx, nil, time.Hour) // no-op
}

func TestTieredDurableExpiry(t *testing.T) {
	ctx := context.Background()
	tiered, mr := setupTieredTest(t, Config{Capacity: 10, LocalTTL: 500 * time.Millisecond})

	tiered.Set(ctx, "k1", []byte("v1"), time.Second)

	// Within both lifetimes the value is served.
	require.Equal(t, []byte("v1"), tiered.Get(ctx, "k1"))

	// Past the durable TTL, both tiers must agree the key is gone. The local
	// tier was clamped to the shorter lifetime, so it cannot serve a ghost.
	mr.FastForward(1500 * time.Millisecond)
	time.Sleep(600 * time.Millisecond)
	assert.Nil(t, tiered.Get(ctx, "k1"))
}

func TestTieredStats(t *testing.T) {
	ctx := context.Background()
	tiered, _ := setupTieredTest(t, Config{Capacity: 10, LocalTTL: time.Minute})

	tiered.Set(ctx, "k1", []byte("v1"), time.Hour)
	tiered.Get(ctx, "k1")    // hit
	tiered.Get(ctx, "nope")  // miss
	tiered.Get(ctx, "still") // miss

	stats := tiered.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 1, stats.LocalSize)
	assert.Equal(t, 10, stats.LocalCapacity)
	assert.InDelta(t, 0.1, stats.LoadRatio, 1e-9)
}
