package session

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/sessionstate/pkg/cache"
	"github.com/dmitrymomot/sessionstate/pkg/cookie"
)

// Option is a functional option for configuring the Manager
type Option func(*Manager)

// WithStore sets a custom session store
func WithStore(store Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithCache backs the default store with c instead of an in-process cache
func WithCache(c cache.Cache) Option {
	return func(m *Manager) {
		m.cache = c
	}
}

// WithCookieManager sets the cookie manager used to read and issue the session cookie
func WithCookieManager(cookieMgr *cookie.Manager) Option {
	return func(m *Manager) {
		m.cookies = cookieMgr
	}
}

// WithProtector sets the protector for the session identifier carried in the cookie
func WithProtector(p *cookie.Protector) Option {
	return func(m *Manager) {
		m.protector = p
	}
}

// WithKeyGenerator sets the generator for new session identifiers
func WithKeyGenerator(g KeyGenerator) Option {
	return func(m *Manager) {
		m.keys = g
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithTracerProvider sets the tracer used by the default store
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) {
		if tp != nil {
			m.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithConfig sets custom configuration
func WithConfig(config Config) Option {
	return func(m *Manager) {
		m.config = config
	}
}

// WithCookieName sets the session cookie name
func WithCookieName(name string) Option {
	return func(m *Manager) {
		m.config.CookieName = name
	}
}

// WithCookieDomain sets the session cookie domain
func WithCookieDomain(domain string) Option {
	return func(m *Manager) {
		m.config.CookieDomain = domain
	}
}

// WithCookiePath sets the session cookie path
func WithCookiePath(path string) Option {
	return func(m *Manager) {
		m.config.CookiePath = path
	}
}

// WithHTTPOnly sets the HttpOnly flag of the session cookie
func WithHTTPOnly(httpOnly bool) Option {
	return func(m *Manager) {
		m.config.CookieHTTPOnly = httpOnly
	}
}

// WithSecurePolicy sets how the Secure flag of the session cookie is decided
func WithSecurePolicy(p SecurePolicy) Option {
	return func(m *Manager) {
		m.config.CookieSecure = p
	}
}

// WithIdleTimeout sets how long session contents survive without a write
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.config.IdleTimeout = d
	}
}

// WithBypassHeadRequests skips session handling for HEAD requests
func WithBypassHeadRequests(bypass bool) Option {
	return func(m *Manager) {
		m.config.BypassHeadRequests = bypass
	}
}

// WithRefreshUntouched renews the idle timeout of stored sessions that a
// request did not access
func WithRefreshUntouched(refresh bool) Option {
	return func(m *Manager) {
		m.config.RefreshUntouched = refresh
	}
}
