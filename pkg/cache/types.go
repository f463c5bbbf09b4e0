package cache

import "time"

// Stats represents cache statistics
type Stats struct {
	LocalSize     int     `json:"local_size"`
	LocalCapacity int     `json:"local_capacity"`
	LoadRatio     float64 `json:"load_ratio"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	StoreErrors   int64   `json:"store_errors"`
}

// Config holds cache configuration
type Config struct {
	// Capacity is the max item count of the local tier.
	Capacity int

	// LocalTTL caps how long a local copy may outlive its last write when the
	// durable entry carries no expiry of its own. Entries written with an
	// explicit TTL are clamped to that TTL instead.
	LocalTTL time.Duration
}

// DefaultConfig returns default cache configuration
func DefaultConfig() Config {
	return Config{
		Capacity: 10000,
		LocalTTL: 5 * time.Minute,
	}
}
