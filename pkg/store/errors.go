package store

import "errors"

var (
	// ErrKeyNotFound is returned when a key does not exist in the store.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStoreUnavailable is returned when the store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)
