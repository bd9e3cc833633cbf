// Package cache defines the storage contract used by session state and ships
// an in-process implementation of it.
//
// A Cache stores opaque byte blobs under string keys. Each entry carries a
// sliding expiration: reading, writing or refreshing the entry pushes its
// expiry forward by the configured window. Backends for Redis, PostgreSQL,
// MongoDB and Badger live in sibling packages and satisfy the same interface.
//
// # Usage
//
//	c := cache.NewMemoryCache(
//		cache.WithCapacity(10_000),
//		cache.WithCleanupInterval(time.Minute),
//	)
//	defer c.Close()
//
//	_ = c.Set(ctx, "sid", blob, cache.EntryOptions{SlidingExpiration: 20 * time.Minute})
//	blob, err := c.Get(ctx, "sid") // nil, nil when missing or expired
//
// # Memory cache
//
// MemoryCache keeps entries in recency order. When a capacity is configured
// the least recently used entry is evicted first. Expired entries are removed
// when touched and, if WithCleanupInterval is set, by a background sweep.
// Values are copied on the way in and on the way out, so callers can reuse
// their buffers.
//
// # Availability
//
// Backends that can probe their storage implement Pinger. Available reports
// reachability and treats caches without Pinger as always reachable.
package cache
