package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// localEntry pairs a value with its logical expiry. A zero expiresAt means
// the entry lives until evicted.
type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// Local is the process-local, capacity-bounded LRU tier. It performs no I/O
// and never fails; golang-lru guards its internals, so concurrent use from
// request workers is safe with last-write-wins semantics.
type Local struct {
	entries  *lru.Cache[string, localEntry]
	capacity int
	localTTL time.Duration

	now func() time.Time
}

// NewLocal creates a bounded local cache. Capacity must be positive;
// non-positive values fall back to the default.
func NewLocal(config Config) *Local {
	if config.Capacity <= 0 {
		config.Capacity = DefaultConfig().Capacity
	}
	if config.LocalTTL <= 0 {
		config.LocalTTL = DefaultConfig().LocalTTL
	}

	// New only errors on non-positive capacity, which is guarded above.
	entries, _ := lru.New[string, localEntry](config.Capacity)

	return &Local{
		entries:  entries,
		capacity: config.Capacity,
		localTTL: config.LocalTTL,
		now:      time.Now,
	}
}

// Get returns the cached value, or nil when the key is absent or expired.
// An expired entry is evicted on read.
func (l *Local) Get(key string) []byte {
	entry, ok := l.entries.Get(key)
	if !ok {
		return nil
	}
	if !entry.expiresAt.IsZero() && l.now().After(entry.expiresAt) {
		l.entries.Remove(key)
		return nil
	}
	return entry.value
}

// Set stores a value. The local lifetime is the smaller of ttl and the
// configured LocalTTL, so a local copy never outlives its durable
// counterpart. Overflow evicts the least-recently-used entry.
func (l *Local) Set(key string, value []byte, ttl time.Duration) {
	effective := l.localTTL
	if ttl > 0 && ttl < effective {
		effective = ttl
	}
	l.entries.Add(key, localEntry{
		value:     value,
		expiresAt: l.now().Add(effective),
	})
}

// Delete removes a key. Deleting an absent key is a no-op.
func (l *Local) Delete(key string) {
	l.entries.Remove(key)
}

// Len returns the current item count, including not-yet-evicted expired
// entries.
func (l *Local) Len() int {
	return l.entries.Len()
}

// Capacity returns the fixed max item count.
func (l *Local) Capacity() int {
	return l.capacity
}

// Purge drops all entries.
func (l *Local) Purge() {
	l.entries.Purge()
}
