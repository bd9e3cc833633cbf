package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dmitrymomot/sessionstate/pkg/cache"
)

// Every value is prefixed with a header of two big-endian int64s: the
// sliding window and the absolute expiry, both in milliseconds. Zero means
// no expiration. Badger's TTL has second granularity, so it only serves as a
// backstop for garbage collection; the header is authoritative.
const (
	headerLen   = 16
	ttlBackstop = time.Second
	maxAttempts = 5
)

// Cache stores session blobs in an embedded Badger database.
type Cache struct {
	db  *badger.DB
	now func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock overrides the time source used for expiration.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a Cache on db.
func NewCache(db *badger.DB, opts ...CacheOption) *Cache {
	c := &Cache{db: db, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type header struct {
	sliding time.Duration
	expires int64
}

func (c *Cache) entry(key string, h header, value []byte) *badger.Entry {
	buf := make([]byte, headerLen+len(value))
	binary.BigEndian.PutUint64(buf[0:8], uint64(h.sliding.Milliseconds()))
	binary.BigEndian.PutUint64(buf[8:16], uint64(h.expires))
	copy(buf[headerLen:], value)

	e := badger.NewEntry([]byte(key), buf)
	if h.sliding > 0 {
		e = e.WithTTL(h.sliding + ttlBackstop)
	}
	return e
}

func (c *Cache) renew(h header) header {
	if h.sliding > 0 {
		h.expires = c.now().Add(h.sliding).UnixMilli()
	}
	return h
}

func parse(raw []byte) (header, []byte, error) {
	if len(raw) < headerLen {
		return header{}, nil, ErrCorruptEntry
	}
	h := header{
		sliding: time.Duration(int64(binary.BigEndian.Uint64(raw[0:8]))) * time.Millisecond,
		expires: int64(binary.BigEndian.Uint64(raw[8:16])),
	}
	return h, raw[headerLen:], nil
}

// touch loads key, drops it when expired and otherwise rewrites it with a
// renewed expiry. It returns the value, or nil when the key is absent.
func (c *Cache) touch(key string) ([]byte, error) {
	var value []byte
	err := c.update(func(txn *badger.Txn) error {
		value = nil
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		h, v, err := parse(raw)
		if err != nil {
			return errors.Join(err, txn.Delete([]byte(key)))
		}
		if h.expires > 0 && c.now().UnixMilli() >= h.expires {
			return txn.Delete([]byte(key))
		}
		value = v
		if h.sliding == 0 {
			return nil
		}
		return txn.SetEntry(c.entry(key, c.renew(h), v))
	})
	return value, err
}

// update runs fn in a read-write transaction, retrying on conflicts with
// concurrent writers.
func (c *Cache) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxAttempts {
		err = c.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// Get returns the blob under key and renews its sliding window.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, cache.ErrEmptyKey
	}
	v, err := c.touch(key)
	if errors.Is(err, ErrCorruptEntry) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v, nil
}

// Set stores value under key.
func (c *Cache) Set(_ context.Context, key string, value []byte, opts cache.EntryOptions) error {
	if key == "" {
		return cache.ErrEmptyKey
	}
	h := c.renew(header{sliding: max(opts.SlidingExpiration, 0)})
	if h.sliding > 0 && h.sliding < time.Millisecond {
		h = c.renew(header{sliding: time.Millisecond})
	}
	return c.update(func(txn *badger.Txn) error {
		return txn.SetEntry(c.entry(key, h, value))
	})
}

// Refresh renews the sliding window of key.
func (c *Cache) Refresh(_ context.Context, key string) error {
	if key == "" {
		return cache.ErrEmptyKey
	}
	_, err := c.touch(key)
	if errors.Is(err, ErrCorruptEntry) {
		return nil
	}
	return err
}

// Remove deletes key.
func (c *Cache) Remove(_ context.Context, key string) error {
	if key == "" {
		return cache.ErrEmptyKey
	}
	return c.update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Connect reports whether the database is open.
func (c *Cache) Connect(ctx context.Context) error {
	return c.Ping(ctx)
}

// Ping implements cache.Pinger.
func (c *Cache) Ping(context.Context) error {
	if c.db == nil || c.db.IsClosed() {
		return errors.Join(ErrHealthcheckFailed, cache.ErrClosed)
	}
	return nil
}

// RunGC reclaims value log space every interval until ctx is done.
func (c *Cache) RunGC(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for c.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}
