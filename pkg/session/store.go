package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/sessionstate/pkg/cache"
)

// Store creates Session values bound to a backing cache.
type Store interface {
	// IsAvailable reports whether the backing cache is reachable.
	IsAvailable(ctx context.Context) bool

	// Connect eagerly connects to the backing cache.
	Connect(ctx context.Context) error

	// Create binds a session to id. No I/O happens until the session is
	// first accessed. A nil establisher means the session already exists.
	Create(id string, idleTimeout time.Duration, establisher Establisher, isNew bool) *Session
}

// DistributedStore is a Store backed by any cache.Cache.
type DistributedStore struct {
	cache   cache.Cache
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	loads   singleflight.Group
}

// StoreOption configures a DistributedStore.
type StoreOption func(*DistributedStore)

// WithStoreLogger sets the logger used by sessions created by the store.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *DistributedStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStoreMetrics records load and commit outcomes in m.
func WithStoreMetrics(m *Metrics) StoreOption {
	return func(s *DistributedStore) {
		s.metrics = m
	}
}

// WithTracer traces session loads and commits.
func WithTracer(t trace.Tracer) StoreOption {
	return func(s *DistributedStore) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewDistributedStore creates a store on top of c.
func NewDistributedStore(c cache.Cache, opts ...StoreOption) *DistributedStore {
	if c == nil {
		panic("session: cache is required")
	}

	s := &DistributedStore{
		cache:  c,
		logger: slog.New(slog.DiscardHandler),
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsAvailable pings the cache when it supports it.
func (s *DistributedStore) IsAvailable(ctx context.Context) bool {
	return cache.Available(ctx, s.cache)
}

// Connect connects the cache and reports failures.
func (s *DistributedStore) Connect(ctx context.Context) error {
	if err := s.cache.Connect(ctx); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// Create binds a new Session to id.
func (s *DistributedStore) Create(id string, idleTimeout time.Duration, establisher Establisher, isNew bool) *Session {
	if establisher == nil {
		establisher = AlreadyEstablished
	}
	return &Session{
		id:          id,
		idleTimeout: idleTimeout,
		establisher: establisher,
		isNew:       isNew,
		store:       s,
	}
}

// fetch reads the blob for id. Concurrent reads of the same id share one
// cache round trip; the shared blob is only ever decoded, never modified.
// Writers call forget so that a read starting after a write never joins a
// round trip that began before it.
func (s *DistributedStore) fetch(ctx context.Context, id string) ([]byte, error) {
	ch := s.loads.DoChan(id, func() (any, error) {
		return s.cache.Get(context.WithoutCancel(ctx), id)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		data, _ := res.Val.([]byte)
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// forget detaches id from any in-flight fetch.
func (s *DistributedStore) forget(id string) {
	s.loads.Forget(id)
}
