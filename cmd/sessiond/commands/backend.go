package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/sessionstate/pkg/badger"
	"github.com/dmitrymomot/sessionstate/pkg/cache"
	"github.com/dmitrymomot/sessionstate/pkg/config"
	"github.com/dmitrymomot/sessionstate/pkg/logger"
	"github.com/dmitrymomot/sessionstate/pkg/mongo"
	"github.com/dmitrymomot/sessionstate/pkg/pg"
	"github.com/dmitrymomot/sessionstate/pkg/redis"
)

const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendPostgres = "postgres"
	backendMongo    = "mongo"
	backendBadger   = "badger"
)

// backend is an opened session cache together with its housekeeping loop
// and the function that releases its connections.
type backend struct {
	cache cache.Cache
	// background runs until ctx is done; nil when the backend needs none.
	background func(ctx context.Context) error
	close      func()
}

// openBackend connects to the named cache. Only the selected backend's
// configuration is read, so unrelated required variables may be unset.
func openBackend(ctx context.Context, name string, log *slog.Logger) (*backend, error) {
	log = log.With(logger.Backend(name))

	switch name {
	case backendMemory:
		c := cache.NewMemoryCache()
		return &backend{cache: c, close: func() { _ = c.Close() }}, nil

	case backendRedis:
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &backend{
			cache: redis.NewCache(client, redis.WithKeyPrefix(cfg.KeyPrefix)),
			close: func() { _ = client.Close() },
		}, nil

	case backendPostgres:
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
			pool.Close()
			return nil, err
		}
		c := pg.NewCache(pool, pg.WithLogger(log))
		b := &backend{cache: c, close: pool.Close}
		if cfg.SweepInterval > 0 {
			b.background = func(ctx context.Context) error {
				return c.RunSweeper(ctx, cfg.SweepInterval)
			}
		}
		return b, nil

	case backendMongo:
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := mongo.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &backend{
			cache: mongo.NewCache(client.Database(cfg.Database).Collection(cfg.Collection)),
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(ctx)
			},
		}, nil

	case backendBadger:
		var cfg badger.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		db, err := badger.Open(cfg)
		if err != nil {
			return nil, err
		}
		c := badger.NewCache(db)
		b := &backend{cache: c, close: func() { _ = db.Close() }}
		if cfg.GCInterval > 0 && !cfg.InMemory {
			b.background = func(ctx context.Context) error {
				return c.RunGC(ctx, cfg.GCInterval)
			}
		}
		return b, nil
	}

	return nil, unknownBackend(name)
}
