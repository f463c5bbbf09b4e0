package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

// setupClientTest creates a miniredis instance and returns the client and cleanup function
func setupClientTest(t *testing.T) (*Client, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	config := DefaultConfig()
	config.RedisURL = "redis://" + mr.Addr()

	client, err := NewClient(config)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create store client: %v", err)
	}

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, mr, cleanup
}

func TestNewClient_InvalidURL(t *testing.T) {
	config := DefaultConfig()
	config.RedisURL = "invalid://url"

	_, err := NewClient(config)
	if err == nil {
		t.Fatal("Expected error for invalid Redis URL")
	}
}

func TestNewClient_ConnectionFailure(t *testing.T) {
	config := DefaultConfig()
	config.RedisURL = "redis://localhost:9999" // Non-existent server

	_, err := NewClient(config)
	if err == nil {
		t.Fatal("Expected connection error")
	}
}

func TestClient_SetAndGet(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()

	ctx := context.Background()

	if err := client.Set(ctx, "schedule:p1:abc", []byte(`{"slots":3}`), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := client.Get(ctx, "schedule:p1:abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != `{"slots":3}` {
		t.Errorf("Expected stored value, got %q", val)
	}
}

func TestClient_Get_NotFound(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()

	_, err := client.Get(context.Background(), "missing:key")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Expected ErrKeyNotFound, got %v", err)
	}
}

func TestClient_Set_TTLExpiry(t *testing.T) {
	client, mr, cleanup := setupClientTest(t)
	defer cleanup()

	ctx := context.Background()

	if err := client.Set(ctx, "k1", []byte("v1"), time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mr.FastForward(1500 * time.Millisecond)

	_, err := client.Get(ctx, "k1")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Expected ErrKeyNotFound after TTL, got %v", err)
	}
}

func TestClient_Set_NoTTLPersists(t *testing.T) {
	client, mr, cleanup := setupClientTest(t)
	defer cleanup()

	ctx := context.Background()

	if err := client.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mr.FastForward(24 * time.Hour)

	if _, err := client.Get(ctx, "k1"); err != nil {
		t.Fatalf("Expected key without TTL to persist, got %v", err)
	}
}

func TestClient_Delete(t *testing.T) {
	client, mr, cleanup := setupClientTest(t)
	defer cleanup()

	ctx := context.Background()
	mr.Set("k1", "v1")
	mr.Set("k2", "v2")

	if err := client.Delete(ctx, "k1", "k2"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if mr.Exists("k1") || mr.Exists("k2") {
		t.Error("Expected keys to be deleted")
	}

	// Deleting absent keys is a no-op
	if err := client.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete of absent key failed: %v", err)
	}
}

func TestClient_ScanKeys(t *testing.T) {
	client, mr, cleanup := setupClientTest(t)
	defer cleanup()

	mr.Set("schedule:p1:a", "1")
	mr.Set("schedule:p1:b", "2")
	mr.Set("schedule:p2:a", "3")

	keys, err := client.ScanKeys(context.Background(), "schedule:p1:*")
	if err != nil {
		t.Fatalf("ScanKeys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Expected 2 keys, got %d: %v", len(keys), keys)
	}
}

func TestClient_ScanKeys_NoMatches(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()

	keys, err := client.ScanKeys(context.Background(), "nothing:*")
	if err != nil {
		t.Fatalf("ScanKeys failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected no keys, got %v", keys)
	}
}

func TestClient_Incr(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()

	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		val, err := client.Incr(ctx, "realtime:views:p1")
		if err != nil {
			t.Fatalf("Incr failed: %v", err)
		}
		if val != want {
			t.Errorf("Expected %d, got %d", want, val)
		}
	}
}

func TestClient_IncrWithTTL(t *testing.T) {
	client, mr, cleanup := setupClientTest(t)
	defer cleanup()

	ctx := context.Background()

	val, err := client.IncrWithTTL(ctx, "realtime:views:p1", 300*time.Second)
	if err != nil {
		t.Fatalf("IncrWithTTL failed: %v", err)
	}
	if val != 1 {
		t.Errorf("Expected 1, got %d", val)
	}

	ttl, err := client.TTL(ctx, "realtime:views:p1")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > 300*time.Second {
		t.Errorf("Expected TTL in (0, 300s], got %v", ttl)
	}

	// Counter expires after the window
	mr.FastForward(301 * time.Second)
	if _, err := client.GetInt(ctx, "realtime:views:p1"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Expected counter to expire, got %v", err)
	}
}

func TestClient_GetInt(t *testing.T) {
	client, mr, cleanup := setupClientTest(t)
	defer cleanup()

	ctx := context.Background()
	mr.Set("counter", "42")

	val, err := client.GetInt(ctx, "counter")
	if err != nil {
		t.Fatalf("GetInt failed: %v", err)
	}
	if val != 42 {
		t.Errorf("Expected 42, got %d", val)
	}

	mr.Set("garbage", "not a number")
	if _, err := client.GetInt(ctx, "garbage"); err == nil {
		t.Fatal("Expected error for non-integer value")
	}
}

func TestClient_HIncrByAndHGetAll(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := client.HIncrBy(ctx, "geo:p1", "US", 1); err != nil {
		t.Fatalf("HIncrBy failed: %v", err)
	}
	if _, err := client.HIncrBy(ctx, "geo:p1", "US", 1); err != nil {
		t.Fatalf("HIncrBy failed: %v", err)
	}
	val, err := client.HIncrBy(ctx, "geo:p1", "FR", 1)
	if err != nil {
		t.Fatalf("HIncrBy failed: %v", err)
	}
	if val != 1 {
		t.Errorf("Expected 1 for new field, got %d", val)
	}

	fields, err := client.HGetAllInt(ctx, "geo:p1")
	if err != nil {
		t.Fatalf("HGetAllInt failed: %v", err)
	}
	if fields["US"] != 2 || fields["FR"] != 1 {
		t.Errorf("Unexpected histogram: %v", fields)
	}
}

func TestClient_HGetAll_AbsentHash(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()

	fields, err := client.HGetAll(context.Background(), "geo:none")
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if len(fields) != 0 {
		t.Errorf("Expected empty map for absent hash, got %v", fields)
	}
}

func TestClient_HDel(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()

	ctx := context.Background()
	client.HIncrBy(ctx, "links:p1", "a", 5)
	client.HIncrBy(ctx, "links:p1", "b", 3)

	if err := client.HDel(ctx, "links:p1", "b"); err != nil {
		t.Fatalf("HDel failed: %v", err)
	}

	fields, err := client.HGetAllInt(ctx, "links:p1")
	if err != nil {
		t.Fatalf("HGetAllInt failed: %v", err)
	}
	if _, ok := fields["b"]; ok {
		t.Error("Expected field b to be removed")
	}
	if fields["a"] != 5 {
		t.Errorf("Expected field a untouched, got %v", fields)
	}
}

func TestClient_MGet_PositionalAlignment(t *testing.T) {
	client, mr, cleanup := setupClientTest(t)
	defer cleanup()

	mr.Set("a", "1")
	mr.Set("c", "3")

	values, err := client.MGet(context.Background(), "a", "b", "c")
	if err != nil {
		t.Fatalf("MGet failed: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("Expected 3 values, got %d", len(values))
	}
	if values[0] == nil || *values[0] != "1" {
		t.Errorf("Expected values[0] == 1, got %v", values[0])
	}
	if values[1] != nil {
		t.Errorf("Expected nil for absent key, got %v", *values[1])
	}
	if values[2] == nil || *values[2] != "3" {
		t.Errorf("Expected values[2] == 3, got %v", values[2])
	}
}

func TestClient_MSet(t *testing.T) {
	client, mr, cleanup := setupClientTest(t)
	defer cleanup()

	entries := map[string][]byte{
		"k1": []byte("v1"),
		"k2": []byte("v2"),
	}
	if err := client.MSet(context.Background(), entries, time.Minute); err != nil {
		t.Fatalf("MSet failed: %v", err)
	}

	for key, want := range entries {
		got, err := mr.Get(key)
		if err != nil {
			t.Fatalf("Expected %s to exist: %v", key, err)
		}
		if got != string(want) {
			t.Errorf("Expected %s == %s, got %s", key, want, got)
		}
	}
}

func TestClient_CardinalityAdd_Estimate(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()

	ctx := context.Background()
	const n = 10000

	elements := make([]string, 0, n)
	for i := 0; i < n; i++ {
		elements = append(elements, fmt.Sprintf("visitor-%d", i))
	}
	if err := client.CardinalityAdd(ctx, "visitors:p1:2026-09-01", elements...); err != nil {
		t.Fatalf("CardinalityAdd failed: %v", err)
	}

	count, err := client.CardinalityCount(ctx, "visitors:p1:2026-09-01")
	if err != nil {
		t.Fatalf("CardinalityCount failed: %v", err)
	}

	// HyperLogLog standard error is ~0.81%; allow 2%
	if count < n*98/100 || count > n*102/100 {
		t.Errorf("Expected estimate within 2%% of %d, got %d", n, count)
	}
}

func TestClient_CardinalityAdd_Idempotent(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()

	ctx := context.Background()
	key := "visitors:p1:2026-09-01"

	if err := client.CardinalityAdd(ctx, key, "visitor-1", "visitor-2"); err != nil {
		t.Fatalf("CardinalityAdd failed: %v", err)
	}
	before, err := client.CardinalityCount(ctx, key)
	if err != nil {
		t.Fatalf("CardinalityCount failed: %v", err)
	}

	// Re-adding the same identities must not change the estimate
	if err := client.CardinalityAdd(ctx, key, "visitor-1", "visitor-2"); err != nil {
		t.Fatalf("CardinalityAdd failed: %v", err)
	}
	after, err := client.CardinalityCount(ctx, key)
	if err != nil {
		t.Fatalf("CardinalityCount failed: %v", err)
	}

	if before != after {
		t.Errorf("Expected estimate unchanged, got %d then %d", before, after)
	}
}

func TestClient_CardinalityCount_AbsentSets(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()

	count, err := client.CardinalityCount(context.Background(), "visitors:none:2026-01-01", "visitors:none:2026-01-02")
	if err != nil {
		t.Fatalf("CardinalityCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 for absent sets, got %d", count)
	}
}

func TestClient_ExpireAndTTL(t *testing.T) {
	client, mr, cleanup := setupClientTest(t)
	defer cleanup()

	ctx := context.Background()
	mr.Set("k", "v")

	if err := client.Expire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}

	ttl, err := client.TTL(ctx, "k")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("Expected TTL in (0, 1m], got %v", ttl)
	}

	// -2 for absent keys, Redis semantics
	ttl, err = client.TTL(ctx, "missing")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl != -2 {
		t.Errorf("Expected -2 for absent key, got %v", ttl)
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatal("Expected error with cancelled context")
	}
}

func TestClient_Ping(t *testing.T) {
	client, mr, cleanup := setupClientTest(t)
	defer cleanup()

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	mr.Close()
	if err := client.Ping(context.Background()); err == nil {
		t.Error("Expected ping failure after store shutdown")
	}
}
