package session

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/felixge/httpsnoop"

	"github.com/dmitrymomot/sessionstate/pkg/cookie"
)

// Establisher decides whether a session may still be created for the
// current request.
type Establisher interface {
	// TryEstablish reports whether the session exists or can still be
	// created. Once it has returned true it keeps returning true.
	TryEstablish() bool
}

// AlreadyEstablished is used for sessions whose identifier came from a
// valid cookie.
var AlreadyEstablished Establisher = establishedAlways{}

type establishedAlways struct{}

func (establishedAlways) TryEstablish() bool { return true }

// responseTracker observes the first byte of a response and runs the
// registered callbacks right before it reaches the client.
type responseTracker struct {
	mu        sync.Mutex
	started   bool
	callbacks []func()
}

// trackResponse wraps w so that header writes, body writes and flushes mark
// the response as started. Optional interfaces of w are preserved.
func trackResponse(w http.ResponseWriter) (*responseTracker, http.ResponseWriter) {
	t := &responseTracker{}
	wrapped := httpsnoop.Wrap(w, httpsnoop.Hooks{
		WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
			return func(code int) {
				// Informational responses leave the final header open.
				if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
					next(code)
					return
				}
				t.start()
				next(code)
			}
		},
		Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
			return func(b []byte) (int, error) {
				t.start()
				return next(b)
			}
		},
		ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
			return func(src io.Reader) (int64, error) {
				t.start()
				return next(src)
			}
		},
		Flush: func(next httpsnoop.FlushFunc) httpsnoop.FlushFunc {
			return func() {
				t.start()
				next()
			}
		},
		Hijack: func(next httpsnoop.HijackFunc) httpsnoop.HijackFunc {
			return func() (net.Conn, *bufio.ReadWriter, error) {
				t.start()
				return next()
			}
		},
	})
	return t, wrapped
}

// OnStarting registers fn to run once, before the response starts.
// Registering after the start has no effect.
func (t *responseTracker) OnStarting(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.callbacks = append(t.callbacks, fn)
}

// HasStarted reports whether any part of the response has been sent.
func (t *responseTracker) HasStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// start marks the response as started and runs pending callbacks.
func (t *responseTracker) start() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	callbacks := t.callbacks
	t.callbacks = nil
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// cookieEstablisher issues the session cookie for a freshly generated
// identifier, but only if the session was written to before the response
// started.
type cookieEstablisher struct {
	w        http.ResponseWriter
	r        *http.Request
	response *responseTracker
	cookies  *cookie.Manager
	config   Config
	value    string // protected identifier
	metrics  *Metrics

	mu              sync.Mutex
	shouldEstablish bool
	revoked         bool
}

func newCookieEstablisher(w http.ResponseWriter, r *http.Request, response *responseTracker, cookies *cookie.Manager, cfg Config, value string, metrics *Metrics) *cookieEstablisher {
	e := &cookieEstablisher{
		w:        w,
		r:        r,
		response: response,
		cookies:  cookies,
		config:   cfg,
		value:    value,
		metrics:  metrics,
	}
	response.OnStarting(e.onStarting)
	return e
}

// TryEstablish latches the decision to issue the cookie if the response has
// not started yet.
func (e *cookieEstablisher) TryEstablish() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.revoked {
		return false
	}
	if !e.shouldEstablish && !e.response.HasStarted() {
		e.shouldEstablish = true
	}
	return e.shouldEstablish
}

// revoke withdraws a latched decision so no cookie is issued.
func (e *cookieEstablisher) revoke() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shouldEstablish = false
	e.revoked = true
}

func (e *cookieEstablisher) onStarting() {
	e.mu.Lock()
	establish := e.shouldEstablish && !e.revoked
	e.mu.Unlock()

	if establish {
		e.setCookie()
	}
}

func (e *cookieEstablisher) setCookie() {
	e.cookies.Set(e.w, e.config.CookieName, e.value, cookieOptions(e.config, e.r)...)

	h := e.w.Header()
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "-1")

	e.metrics.recordEstablished()
}

// cookieOptions returns the attributes shared by the issued and the
// expired session cookie.
func cookieOptions(cfg Config, r *http.Request) []cookie.Option {
	path := cfg.CookiePath
	if path == "" {
		path = DefaultCookiePath
	}
	return []cookie.Option{
		cookie.WithDomain(cfg.CookieDomain),
		cookie.WithPath(path),
		cookie.WithHTTPOnly(cfg.CookieHTTPOnly),
		cookie.WithSecure(cfg.CookieSecure.Secure(r)),
	}
}
