package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client is a typed wrapper around the shared Redis instance
type Client struct {
	client *redis.Client
	config Config
}

// NewClient creates a new store client and verifies connectivity
func NewClient(config Config) (*Client, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Override with config values if provided
	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB >= 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if config.OpTimeout <= 0 {
		config.OpTimeout = DefaultConfig().OpTimeout
	}

	return &Client{
		client: client,
		config: config,
	}, nil
}

// CommandObserver receives one callback per executed store command.
type CommandObserver interface {
	ObserveCommand(name string)
}

type observerHook struct {
	obs CommandObserver
}

func (h observerHook) BeforeProcess(ctx context.Context, cmd redis.Cmder) (context.Context, error) {
	return ctx, nil
}

func (h observerHook) AfterProcess(ctx context.Context, cmd redis.Cmder) error {
	h.obs.ObserveCommand(cmd.Name())
	return nil
}

func (h observerHook) BeforeProcessPipeline(ctx context.Context, cmds []redis.Cmder) (context.Context, error) {
	return ctx, nil
}

func (h observerHook) AfterProcessPipeline(ctx context.Context, cmds []redis.Cmder) error {
	for _, cmd := range cmds {
		h.obs.ObserveCommand(cmd.Name())
	}
	return nil
}

// Instrument registers an observer notified for every command this client
// issues, including pipelined ones.
func (c *Client) Instrument(obs CommandObserver) {
	c.client.AddHook(observerHook{obs: obs})
}

// withTimeout applies the configured operation timeout when the caller's
// context has no deadline of its own.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.config.OpTimeout)
}

// Get retrieves a value. Returns ErrKeyNotFound when the key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrKeyNotFound
	} else if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return val, nil
}

// Set stores a value. A zero ttl means the entry persists until deleted.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes one or more keys. Deleting an absent key is a no-op.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// ScanKeys returns all keys matching a glob pattern. Cost is proportional to
// the total key count, so this is reserved for coarse invalidation and
// administrative jobs, never the hot path.
func (c *Client) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan failed for pattern %s: %w", pattern, err)
	}
	return keys, nil
}

// Incr atomically increments an integer counter, treating an absent key as 0.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	val, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr failed: %w", err)
	}
	return val, nil
}

// IncrWithTTL atomically increments a counter and refreshes its expiry in a
// single pipelined round-trip. The bucket therefore decays ttl after the
// last increment, not the first.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr+expire failed: %w", err)
	}
	return incr.Val(), nil
}

// GetInt reads an integer counter. Returns ErrKeyNotFound when absent.
func (c *Client) GetInt(ctx context.Context, key string) (int64, error) {
	val, err := c.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("non-integer counter value for %s: %w", key, err)
	}
	return n, nil
}

// HIncrBy atomically increments a hash field.
func (c *Client) HIncrBy(ctx context.Context, hashKey, field string, delta int64) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	val, err := c.client.HIncrBy(ctx, hashKey, field, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hincrby failed: %w", err)
	}
	return val, nil
}

// HGetAll returns all fields of a hash. An absent hash yields an empty map.
func (c *Client) HGetAll(ctx context.Context, hashKey string) (map[string]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	fields, err := c.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	return fields, nil
}

// HGetAllInt returns all fields of a hash parsed as integers. Non-integer
// fields are skipped rather than failing the whole read.
func (c *Client) HGetAllInt(ctx context.Context, hashKey string) (map[string]int64, error) {
	fields, err := c.HGetAll(ctx, hashKey)
	if err != nil {
		return nil, err
	}

	parsed := make(map[string]int64, len(fields))
	for field, raw := range fields {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			parsed[field] = n
		}
	}
	return parsed, nil
}

// HDel removes fields from a hash.
func (c *Client) HDel(ctx context.Context, hashKey string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.HDel(ctx, hashKey, fields...).Err(); err != nil {
		return fmt.Errorf("redis hdel failed: %w", err)
	}
	return nil
}

// Expire sets or refreshes a TTL on an existing key.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis expire failed: %w", err)
	}
	return nil
}

// TTL returns the remaining time to live of a key. Mirrors Redis semantics:
// -1 for no expiry, -2 for an absent key.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ttl failed: %w", err)
	}
	return ttl, nil
}

// MGet retrieves multiple keys in one round-trip. The result is positionally
// aligned with the input; absent keys yield nil entries.
func (c *Client) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	raw, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	values := make([]*string, len(raw))
	for i, v := range raw {
		if s, ok := v.(string); ok {
			values[i] = &s
		}
	}
	return values, nil
}

// MSet stores multiple key/value pairs with a shared TTL in one pipelined
// round-trip.
func (c *Client) MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	pipe := c.client.Pipeline()
	for key, value := range entries {
		pipe.Set(ctx, key, value, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipelined set failed: %w", err)
	}
	return nil
}

// CardinalityAdd adds elements to a probabilistic (HyperLogLog) set.
// Re-adding an element is idempotent with respect to the estimate.
func (c *Client) CardinalityAdd(ctx context.Context, setKey string, elements ...string) error {
	if len(elements) == 0 {
		return nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	args := make([]interface{}, len(elements))
	for i, e := range elements {
		args[i] = e
	}
	if err := c.client.PFAdd(ctx, setKey, args...).Err(); err != nil {
		return fmt.Errorf("redis pfadd failed: %w", err)
	}
	return nil
}

// CardinalityCount estimates the number of distinct elements across one or
// more probabilistic sets. Absent sets contribute zero.
func (c *Client) CardinalityCount(ctx context.Context, setKeys ...string) (int64, error) {
	if len(setKeys) == 0 {
		return 0, nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	count, err := c.client.PFCount(ctx, setKeys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis pfcount failed: %w", err)
	}
	return count, nil
}

// Ping checks store connectivity
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// PoolStats returns connection pool statistics
func (c *Client) PoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}

// Close closes the store connection
func (c *Client) Close() error {
	return c.client.Close()
}
