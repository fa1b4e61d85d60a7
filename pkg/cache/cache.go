// Package cache stores computed artifacts, such as layout results, keyed by
// content hashes.
//
// Three backends share the [Cache] interface: [NullCache] (caching
// disabled), [FileCache] (local CLI use) and [RedisCache] (shared by server
// replicas). Keys come from a [Keyer], so the same inputs always map to the
// same entry regardless of backend.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the stored value and whether it was found. Expired
	// entries are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// Clearer is implemented by caches that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}
