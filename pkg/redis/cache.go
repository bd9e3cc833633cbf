package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/sessionstate/pkg/cache"
)

// Entries are stored as hashes holding the blob and its sliding window in
// milliseconds (-1 for none), so reads can renew the TTL without the caller
// knowing the window.
const noExpiration = "-1"

var (
	setScript = redis.NewScript(`
redis.call('HSET', KEYS[1], 'data', ARGV[1], 'sldexp', ARGV[2])
if ARGV[2] ~= '-1' then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
else
  redis.call('PERSIST', KEYS[1])
end
return 1`)

	getScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'data', 'sldexp')
if not v[1] then
  return false
end
if v[2] and v[2] ~= '-1' then
  redis.call('PEXPIRE', KEYS[1], v[2])
end
return v[1]`)

	refreshScript = redis.NewScript(`
local s = redis.call('HGET', KEYS[1], 'sldexp')
if s and s ~= '-1' then
  redis.call('PEXPIRE', KEYS[1], s)
end
return 1`)
)

// Cache stores session blobs in Redis with sliding expiration.
type Cache struct {
	client redis.UniversalClient
	prefix string
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithKeyPrefix prepends prefix to every key.
func WithKeyPrefix(prefix string) CacheOption {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// NewCache creates a Cache on top of client.
func NewCache(client redis.UniversalClient, opts ...CacheOption) *Cache {
	c := &Cache{client: client}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the blob under key and renews its sliding window.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, cache.ErrEmptyKey
	}

	val, err := getScript.Run(ctx, c.client, []string{c.prefix + key}).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(val), nil
}

// Set stores value under key with the given sliding window.
func (c *Cache) Set(ctx context.Context, key string, value []byte, opts cache.EntryOptions) error {
	if key == "" {
		return cache.ErrEmptyKey
	}

	sliding := noExpiration
	if opts.SlidingExpiration > 0 {
		sliding = strconv.FormatInt(max(opts.SlidingExpiration.Milliseconds(), 1), 10)
	}
	return setScript.Run(ctx, c.client, []string{c.prefix + key}, value, sliding).Err()
}

// Refresh renews the sliding window of key.
func (c *Cache) Refresh(ctx context.Context, key string) error {
	if key == "" {
		return cache.ErrEmptyKey
	}
	return refreshScript.Run(ctx, c.client, []string{c.prefix + key}).Err()
}

// Remove deletes key.
func (c *Cache) Remove(ctx context.Context, key string) error {
	if key == "" {
		return cache.ErrEmptyKey
	}
	return c.client.Del(ctx, c.prefix+key).Err()
}

// Connect verifies the server answers.
func (c *Cache) Connect(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return errors.Join(ErrRedisNotReady, err)
	}
	return nil
}

// Ping implements cache.Pinger.
func (c *Cache) Ping(ctx context.Context) error {
	return Healthcheck(c.client)(ctx)
}
