package cache

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache. Entries expire lazily on access and
// eagerly through an optional cleanup loop. An optional capacity bounds the
// number of entries, evicting the least recently used one first.
type MemoryCache struct {
	mu     sync.Mutex
	index  *lruIndex
	now    func() time.Time
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
	closed bool
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	capacity        int
	cleanupInterval time.Duration
	now             func() time.Time
}

// WithCapacity bounds the number of entries. Zero or negative means unbounded.
func WithCapacity(n int) MemoryOption {
	return func(c *memoryConfig) {
		c.capacity = n
	}
}

// WithCleanupInterval sets how often expired entries are swept.
// Zero disables the background sweep.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		c.cleanupInterval = d
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *memoryConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// NewMemoryCache creates an in-process cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &memoryConfig{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &MemoryCache{
		index: newLRUIndex(cfg.capacity),
		now:   cfg.now,
		done:  make(chan struct{}),
	}

	if cfg.cleanupInterval > 0 {
		c.ticker = time.NewTicker(cfg.cleanupInterval)
		go c.cleanupLoop()
	}

	return c
}

// Get returns a copy of the stored blob.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	entry, ok := c.index.get(key)
	if !ok {
		return nil, nil
	}

	now := c.now()
	if entry.expired(now) {
		c.index.remove(key)
		return nil, nil
	}
	entry.touch(now)

	return bytes.Clone(entry.value), nil
}

// Set stores a copy of value.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, opts EntryOptions) error {
	if key == "" {
		return ErrEmptyKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	entry := &memoryEntry{
		key:     key,
		value:   bytes.Clone(value),
		sliding: opts.SlidingExpiration,
	}
	entry.touch(c.now())
	c.index.put(entry)

	return nil
}

// Refresh resets the sliding window of key.
func (c *MemoryCache) Refresh(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	entry, ok := c.index.get(key)
	if !ok {
		return nil
	}

	now := c.now()
	if entry.expired(now) {
		c.index.remove(key)
		return nil
	}
	entry.touch(now)

	return nil
}

// Remove deletes key.
func (c *MemoryCache) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.index.remove(key)
	return nil
}

// Connect is a no-op for the in-process cache.
func (c *MemoryCache) Connect(ctx context.Context) error {
	return c.Ping(ctx)
}

// Ping fails only after Close.
func (c *MemoryCache) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return nil
}

// DeleteExpired drops every expired entry and returns how many were removed.
func (c *MemoryCache) DeleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.index.removeExpired(c.now())
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.index.len()
}

// Close stops the cleanup goroutine and rejects further operations.
func (c *MemoryCache) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		if c.ticker != nil {
			c.ticker.Stop()
		}
		close(c.done)
	})
	return nil
}

func (c *MemoryCache) cleanupLoop() {
	for {
		select {
		case <-c.ticker.C:
			c.DeleteExpired()
		case <-c.done:
			return
		}
	}
}
