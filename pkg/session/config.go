package session

import (
	"time"
)

const (
	// DefaultCookieName is the name of the session cookie
	DefaultCookieName = "sid"

	// DefaultCookiePath is the path of the session cookie
	DefaultCookiePath = "/"

	// DefaultIdleTimeout is how long a session survives without being written
	DefaultIdleTimeout = 20 * time.Minute
)

// Config holds session configuration
type Config struct {
	// CookieName is the name of the session cookie (default: "sid")
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"sid"`

	// CookieDomain is the cookie domain, unset by default
	CookieDomain string `env:"SESSION_COOKIE_DOMAIN" envDefault:""`

	// CookiePath is the cookie path (default: "/")
	CookiePath string `env:"SESSION_COOKIE_PATH" envDefault:"/"`

	// CookieHTTPOnly hides the cookie from client-side scripts
	CookieHTTPOnly bool `env:"SESSION_COOKIE_HTTP_ONLY" envDefault:"true"`

	// CookieSecure decides the Secure flag: "always", "never" or "same-as-request"
	CookieSecure SecurePolicy `env:"SESSION_COOKIE_SECURE" envDefault:"never"`

	// IdleTimeout is how long session contents survive without a write.
	// It applies to the stored contents, not to the cookie.
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"20m"`

	// RefreshUntouched renews the idle timeout of stored sessions the
	// request never read or wrote
	RefreshUntouched bool `env:"SESSION_REFRESH_UNTOUCHED" envDefault:"false"`

	// BypassHeadRequests skips session handling for HEAD requests
	BypassHeadRequests bool `env:"SESSION_BYPASS_HEAD_REQUESTS" envDefault:"false"`
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		CookieName:     DefaultCookieName,
		CookiePath:     DefaultCookiePath,
		CookieHTTPOnly: true,
		CookieSecure:   SecureNever,
		IdleTimeout:    DefaultIdleTimeout,
	}
}

// NewFromConfig creates a new Manager from the provided Config.
// A cookie manager must be supplied via options.
func NewFromConfig(cfg Config, opts ...Option) *Manager {
	configOpts := []Option{
		WithConfig(cfg),
	}

	configOpts = append(configOpts, opts...)

	return New(configOpts...)
}
