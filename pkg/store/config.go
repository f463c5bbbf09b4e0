package store

import "time"

// Config holds durable store connection configuration
type Config struct {
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// OpTimeout bounds individual store calls when the caller's context
	// carries no deadline.
	OpTimeout time.Duration
}

// DefaultConfig returns default store configuration
func DefaultConfig() Config {
	return Config{
		RedisURL:        "redis://localhost:6379",
		RedisDB:         -1,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
		OpTimeout:       2 * time.Second,
	}
}
