package pg

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/sessionstate/pkg/cache"
)

const (
	getQuery = `
UPDATE session_cache
SET expires_at = CASE WHEN sliding_ms > 0 THEN now() + sliding_ms * interval '1 millisecond' END
WHERE id = $1 AND (expires_at IS NULL OR expires_at > now())
RETURNING value`

	setQuery = `
INSERT INTO session_cache (id, value, sliding_ms, expires_at)
VALUES ($1, $2, $3::bigint, CASE WHEN $3::bigint > 0 THEN now() + $3::bigint * interval '1 millisecond' END)
ON CONFLICT (id) DO UPDATE
SET value = EXCLUDED.value, sliding_ms = EXCLUDED.sliding_ms, expires_at = EXCLUDED.expires_at`

	refreshQuery = `
UPDATE session_cache
SET expires_at = now() + sliding_ms * interval '1 millisecond'
WHERE id = $1 AND sliding_ms > 0 AND expires_at > now()`

	removeQuery = `DELETE FROM session_cache WHERE id = $1`

	deleteExpiredQuery = `DELETE FROM session_cache WHERE expires_at IS NOT NULL AND expires_at <= now()`
)

// DB is the subset of *pgxpool.Pool used by Cache.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Cache stores session blobs in the session_cache table. Expired rows are
// invisible to reads and removed by DeleteExpired or the sweeper.
type Cache struct {
	db  DB
	log logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger sets the logger used by the sweeper.
func WithLogger(l logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCache creates a Cache. Run Migrate first to create the table.
func NewCache(db DB, opts ...CacheOption) *Cache {
	c := &Cache{db: db, log: slog.New(slog.DiscardHandler)}
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

	var value []byte
	err := c.db.QueryRow(ctx, getQuery, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set upserts value under key.
func (c *Cache) Set(ctx context.Context, key string, value []byte, opts cache.EntryOptions) error {
	if key == "" {
		return cache.ErrEmptyKey
	}
	if value == nil {
		value = []byte{}
	}

	var sliding int64
	if opts.SlidingExpiration > 0 {
		sliding = max(opts.SlidingExpiration.Milliseconds(), 1)
	}
	_, err := c.db.Exec(ctx, setQuery, key, value, sliding)
	return err
}

// Refresh renews the sliding window of key.
func (c *Cache) Refresh(ctx context.Context, key string) error {
	if key == "" {
		return cache.ErrEmptyKey
	}
	_, err := c.db.Exec(ctx, refreshQuery, key)
	return err
}

// Remove deletes key.
func (c *Cache) Remove(ctx context.Context, key string) error {
	if key == "" {
		return cache.ErrEmptyKey
	}
	_, err := c.db.Exec(ctx, removeQuery, key)
	return err
}

// Connect verifies the database answers.
func (c *Cache) Connect(ctx context.Context) error {
	if err := c.db.Ping(ctx); err != nil {
		return errors.Join(ErrFailedToOpenDBConnection, err)
	}
	return nil
}

// Ping implements cache.Pinger.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.db.Ping(ctx); err != nil {
		return errors.Join(ErrHealthcheckFailed, err)
	}
	return nil
}

// DeleteExpired removes expired rows and returns how many were deleted.
func (c *Cache) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := c.db.Exec(ctx, deleteExpiredQuery)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RunSweeper calls DeleteExpired every interval until ctx is done.
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := c.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.log.ErrorContext(ctx, "failed to delete expired sessions", "error", err)
				continue
			}
			if n > 0 {
				c.log.InfoContext(ctx, "deleted expired sessions", "count", n)
			}
		}
	}
}
