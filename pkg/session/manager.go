package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/sessionstate/pkg/cache"
	"github.com/dmitrymomot/sessionstate/pkg/cookie"
	"github.com/dmitrymomot/sessionstate/pkg/logger"
)

const (
	// ProtectorPurpose isolates session cookie protection from other uses of the same secrets
	ProtectorPurpose = "sessionstate.session.identifier"

	tracerName = "github.com/dmitrymomot/sessionstate/pkg/session"
)

// Manager resolves the session for each request and commits it afterwards.
type Manager struct {
	store     Store
	cache     cache.Cache
	cookies   *cookie.Manager
	protector *cookie.Protector
	keys      KeyGenerator
	config    Config
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
}

// New creates a new session manager with the given options.
// It panics when no cookie manager is configured.
func New(opts ...Option) *Manager {
	m := &Manager{
		config: DefaultConfig(),
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.cookies == nil {
		// Fail fast on misconfiguration to prevent insecure runtime behavior
		panic(ErrNoCookieManager)
	}

	if m.protector == nil {
		p, err := m.cookies.Protector(ProtectorPurpose)
		if err != nil {
			panic(errors.Join(errors.New("session: derive cookie protector"), err))
		}
		m.protector = p
	}

	if m.keys == nil {
		m.keys = DefaultKeyGenerator()
	}

	if m.config.CookieName == "" {
		m.config.CookieName = DefaultCookieName
	}
	if m.config.IdleTimeout <= 0 {
		m.config.IdleTimeout = DefaultIdleTimeout
	}

	if m.store == nil {
		if m.cache == nil {
			m.cache = cache.NewMemoryCache()
		}
		m.store = NewDistributedStore(m.cache,
			WithStoreLogger(m.logger),
			WithStoreMetrics(m.metrics),
			WithTracer(m.tracer),
		)
	}

	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Store returns the store sessions are created in.
func (m *Manager) Store() Store {
	return m.store
}

// Connect eagerly connects the backing store.
func (m *Manager) Connect(ctx context.Context) error {
	return m.store.Connect(ctx)
}

// Healthcheck reports an error when the backing store is unreachable.
func (m *Manager) Healthcheck(ctx context.Context) error {
	if !m.store.IsAvailable(ctx) {
		return ErrStoreUnavailable
	}
	return nil
}

// resolve binds the request to a session. A cookie carrying a valid
// identifier reuses it; anything else gets a fresh identifier whose cookie
// is only issued if the session is written before the response starts.
func (m *Manager) resolve(w http.ResponseWriter, r *http.Request, response *responseTracker) (*Session, error) {
	ctx := r.Context()

	if protected, err := m.cookies.Get(r, m.config.CookieName); err == nil && protected != "" {
		id, err := m.protector.Unprotect(protected)
		switch {
		case err != nil:
			m.logger.DebugContext(ctx, "session cookie unprotect failed", logger.Error(err))
		case len(id) != m.keys.KeyLength():
			m.logger.DebugContext(ctx, "session cookie carries identifier of unexpected length",
				slog.Int("length", len(id)))
		default:
			return m.store.Create(id, m.config.IdleTimeout, AlreadyEstablished, false), nil
		}
	}

	id, err := m.keys.NewKey()
	if err != nil {
		return nil, err
	}
	if len(id) != m.keys.KeyLength() {
		return nil, ErrInvalidKeyLength
	}

	protected, err := m.protector.Protect(id)
	if err != nil {
		return nil, err
	}

	establisher := newCookieEstablisher(w, r, response, m.cookies, m.config, protected, m.metrics)
	return m.store.Create(id, m.config.IdleTimeout, establisher, true), nil
}

// Abandon ends the session bound to r. The stored contents are removed, a
// pending cookie is withdrawn and an existing one is expired on the client.
// It must be called before the response starts for the cookie changes to
// take effect.
func (m *Manager) Abandon(w http.ResponseWriter, r *http.Request) error {
	s, ok := FromContext(r.Context())
	if !ok {
		return ErrNoSession
	}
	if e, ok := s.establisher.(*cookieEstablisher); ok {
		e.revoke()
	}
	if !s.IsNew() {
		m.cookies.Delete(w, m.config.CookieName, cookieOptions(m.config, r)...)
	}
	return s.Abandon(r.Context())
}

// commit persists the session once the handler is done. Failures are logged
// because the response is already on its way.
func (m *Manager) commit(r *http.Request, s *Session) {
	ctx := context.WithoutCancel(r.Context())
	if m.config.RefreshUntouched {
		if err := s.Refresh(ctx); err != nil {
			m.logger.WarnContext(ctx, "session refresh failed", logger.SessionID(s.ID()), logger.Error(err))
		}
	}
	if err := s.Commit(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			m.logger.InfoContext(ctx, "session commit canceled", logger.SessionID(s.ID()))
			return
		}
		m.logger.ErrorContext(ctx, "error closing the session", logger.SessionID(s.ID()), logger.Error(err))
	}
}
