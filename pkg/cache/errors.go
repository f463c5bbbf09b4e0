package cache

import "errors"

var (
	// ErrCacheMiss is returned internally when a key is absent from both tiers.
	ErrCacheMiss = errors.New("cache miss")

	// ErrStoreUnavailable is returned internally when the durable tier cannot
	// be reached. Public methods collapse it to a miss, but keeping the
	// distinction lets logging and metrics tell "not found" from "store down".
	ErrStoreUnavailable = errors.New("durable store unavailable")

	// ErrInvalidKey is returned for empty cache keys.
	ErrInvalidKey = errors.New("invalid cache key")
)
