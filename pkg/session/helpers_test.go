package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionstate/pkg/cache"
	"github.com/dmitrymomot/sessionstate/pkg/cookie"
	"github.com/dmitrymomot/sessionstate/pkg/session"
)

const testSecret = "test-secret-key-that-is-long-enough"

// countingCache wraps a MemoryCache and counts round trips.
type countingCache struct {
	*cache.MemoryCache

	gets      atomic.Int32
	sets      atomic.Int32
	refreshes atomic.Int32
	removes   atomic.Int32

	mu     sync.Mutex
	getErr error
	setErr error
	block  chan struct{} // waited on before the read
	hold   chan struct{} // waited on after the next read
}

func newCountingCache() *countingCache {
	return &countingCache{MemoryCache: cache.NewMemoryCache()}
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	err, block, hold := c.getErr, c.block, c.hold
	c.hold = nil
	c.mu.Unlock()
	c.gets.Add(1)
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	data, err := c.MemoryCache.Get(ctx, key)
	if hold != nil {
		<-hold
	}
	return data, err
}

func (c *countingCache) Set(ctx context.Context, key string, value []byte, opts cache.EntryOptions) error {
	c.sets.Add(1)
	c.mu.Lock()
	err := c.setErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.MemoryCache.Set(ctx, key, value, opts)
}

func (c *countingCache) Refresh(ctx context.Context, key string) error {
	c.refreshes.Add(1)
	return c.MemoryCache.Refresh(ctx, key)
}

func (c *countingCache) Remove(ctx context.Context, key string) error {
	c.removes.Add(1)
	return c.MemoryCache.Remove(ctx, key)
}

// holdNextRead makes the next read wait on ch after it has read the stored
// value.
func (c *countingCache) holdNextRead(ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hold = ch
}

func (c *countingCache) failGets(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getErr = err
}

func (c *countingCache) failSets(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setErr = err
}

var errCacheDown = errors.New("cache down")

func setupCookies(t *testing.T) *cookie.Manager {
	t.Helper()
	cookies, err := cookie.New([]string{testSecret})
	require.NoError(t, err)
	return cookies
}

func setupManager(t *testing.T, opts ...session.Option) (*session.Manager, *countingCache) {
	t.Helper()
	c := newCountingCache()
	t.Cleanup(func() { _ = c.Close() })

	base := []session.Option{
		session.WithCookieManager(setupCookies(t)),
		session.WithCache(c),
	}
	return session.New(append(base, opts...)...), c
}

// rejectingEstablisher never allows a new session to be created.
type rejectingEstablisher struct{}

func (rejectingEstablisher) TryEstablish() bool { return false }

// countingEstablisher allows every session and counts the requests.
type countingEstablisher struct {
	calls atomic.Int32
}

func (e *countingEstablisher) TryEstablish() bool {
	e.calls.Add(1)
	return true
}
