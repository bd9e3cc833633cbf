package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmptyKey is returned when an operation is called with an empty key.
	ErrEmptyKey = errors.New("cache.empty_key")

	// ErrClosed is returned by a cache that has already been closed.
	ErrClosed = errors.New("cache.closed")
)

// EntryOptions describes how long an entry stays in the cache.
type EntryOptions struct {
	// SlidingExpiration removes the entry if it has not been read or written
	// for this long. Every successful Get, Set or Refresh resets the window.
	// Zero means the entry never expires.
	SlidingExpiration time.Duration
}

// Cache is a key-value store of opaque byte blobs with sliding expiration.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the blob stored under key and resets its sliding window.
	// A missing or expired key yields (nil, nil).
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous entry.
	Set(ctx context.Context, key string, value []byte, opts EntryOptions) error

	// Refresh resets the sliding window of key without reading its value.
	// Refreshing a missing key is not an error.
	Refresh(ctx context.Context, key string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Connect eagerly establishes connectivity to the backing storage.
	Connect(ctx context.Context) error
}

// Pinger is implemented by caches that can report whether the backing
// storage is reachable right now.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Available reports whether c is reachable. Caches that do not implement
// Pinger are assumed to be available.
func Available(ctx context.Context, c Cache) bool {
	if c == nil {
		return false
	}
	p, ok := c.(Pinger)
	if !ok {
		return true
	}
	return p.Ping(ctx) == nil
}
