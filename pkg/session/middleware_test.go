package session_test

import (
	"bytes"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionstate/pkg/cookie"
	"github.com/dmitrymomot/sessionstate/pkg/session"
)

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestMiddleware_EstablishesOnWrite(t *testing.T) {
	t.Parallel()
	manager, c := setupManager(t)

	var setErr error
	handler := manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.MustFromContext(r.Context())
		assert.True(t, sess.IsNew())
		setErr = sess.SetString(r.Context(), "name", "gopher")
		_, _ = w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NoError(t, setErr)
	assert.Equal(t, "ok", w.Body.String())

	ck := sessionCookie(t, w, session.DefaultCookieName)
	require.NotNil(t, ck, "cookie must be issued")
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, "/", ck.Path)
	assert.False(t, ck.Secure)
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", w.Header().Get("Pragma"))
	assert.Equal(t, "-1", w.Header().Get("Expires"))
	assert.Equal(t, 1, c.Len(), "session committed after the handler")

	// The cookie carries a protected identifier, never the raw one.
	p, err := setupCookies(t).Protector(session.ProtectorPurpose)
	require.NoError(t, err)
	id, err := p.Unprotect(ck.Value)
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NotContains(t, ck.Value, id)

	// A follow-up request reuses the session without a new cookie.
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(ck)
	w2 := httptest.NewRecorder()
	manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.MustFromContext(r.Context())
		assert.False(t, sess.IsNew())
		assert.Equal(t, id, sess.ID())
		name, ok := sess.GetString(r.Context(), "name")
		assert.True(t, ok)
		assert.Equal(t, "gopher", name)
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(w2, r2)

	assert.Equal(t, http.StatusNoContent, w2.Code)
	assert.Nil(t, sessionCookie(t, w2, session.DefaultCookieName))
}

func TestMiddleware_WriteAfterResponseStarted(t *testing.T) {
	t.Parallel()
	manager, c := setupManager(t)

	var setErr error
	handler := manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		setErr = session.MustFromContext(r.Context()).Set(r.Context(), "k", []byte("v"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.ErrorIs(t, setErr, session.ErrNotEstablishable)
	assert.Nil(t, sessionCookie(t, w, session.DefaultCookieName))
	assert.Empty(t, w.Header().Get("Cache-Control"))
	assert.Equal(t, 0, c.Len())
}

func TestMiddleware_ExistingSessionWritesAfterStart(t *testing.T) {
	t.Parallel()
	manager, _ := setupManager(t)

	// Establish first.
	w := httptest.NewRecorder()
	manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, session.MustFromContext(r.Context()).SetInt32(r.Context(), "n", 1))
	})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	ck := sessionCookie(t, w, session.DefaultCookieName)
	require.NotNil(t, ck, "cookie is issued even if the handler never writes")

	// An established session accepts writes at any time.
	var setErr error
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(ck)
	manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("streaming"))
		setErr = session.MustFromContext(r.Context()).SetInt32(r.Context(), "n", 2)
	})).ServeHTTP(httptest.NewRecorder(), r)
	require.NoError(t, setErr)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(ck)
	manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, ok := session.MustFromContext(r.Context()).GetInt32(r.Context(), "n")
		assert.True(t, ok)
		assert.Equal(t, int32(2), n)
	})).ServeHTTP(httptest.NewRecorder(), r)
}

func TestMiddleware_ReadOnlyRequestIssuesNoCookie(t *testing.T) {
	t.Parallel()
	manager, c := setupManager(t)

	w := httptest.NewRecorder()
	manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := session.MustFromContext(r.Context()).TryGet(r.Context(), "k")
		assert.False(t, ok)
		_, _ = w.Write([]byte("anonymous"))
	})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Nil(t, sessionCookie(t, w, session.DefaultCookieName))
	assert.Equal(t, 0, c.Len())
}

func TestMiddleware_InvalidCookie(t *testing.T) {
	t.Parallel()
	manager, _ := setupManager(t)

	foreign, err := cookie.NewProtector([]string{"another-secret-that-is-long-enough!!"}, session.ProtectorPurpose)
	require.NoError(t, err)
	forged, err := foreign.Protect("0f8fad5b-d9cb-469f-a165-70867728950e")
	require.NoError(t, err)

	own, err := setupCookies(t).Protector(session.ProtectorPurpose)
	require.NoError(t, err)
	shortID, err := own.Protect("too-short")
	require.NoError(t, err)

	for name, value := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": forged,
		"wrong length": shortID,
	} {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: value})
			w := httptest.NewRecorder()

			manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				sess := session.MustFromContext(r.Context())
				assert.True(t, sess.IsNew())
				assert.NotEqual(t, "too-short", sess.ID())
				require.NoError(t, sess.SetString(r.Context(), "k", "v"))
			})).ServeHTTP(w, r)

			ck := sessionCookie(t, w, session.DefaultCookieName)
			require.NotNil(t, ck)
			assert.NotEqual(t, value, ck.Value)
		})
	}
}

func TestMiddleware_CookieAttributes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		policy     session.SecurePolicy
		tls        bool
		wantSecure bool
	}{
		{name: "never over tls", policy: session.SecureNever, tls: true, wantSecure: false},
		{name: "always over http", policy: session.SecureAlways, wantSecure: true},
		{name: "same as request over http", policy: session.SecureSameAsRequest, wantSecure: false},
		{name: "same as request over tls", policy: session.SecureSameAsRequest, tls: true, wantSecure: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, _ := setupManager(t,
				session.WithCookieName("app_session"),
				session.WithCookieDomain("example.com"),
				session.WithCookiePath("/app"),
				session.WithHTTPOnly(false),
				session.WithSecurePolicy(tt.policy),
			)

			r := httptest.NewRequest(http.MethodGet, "/app", nil)
			if tt.tls {
				r.TLS = &tls.ConnectionState{}
			}
			w := httptest.NewRecorder()
			manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, session.MustFromContext(r.Context()).SetString(r.Context(), "k", "v"))
			})).ServeHTTP(w, r)

			ck := sessionCookie(t, w, "app_session")
			require.NotNil(t, ck)
			assert.Equal(t, "example.com", ck.Domain)
			assert.Equal(t, "/app", ck.Path)
			assert.False(t, ck.HttpOnly)
			assert.Equal(t, tt.wantSecure, ck.Secure)
		})
	}
}

func TestMiddleware_BypassHeadRequests(t *testing.T) {
	t.Parallel()
	manager, c := setupManager(t, session.WithBypassHeadRequests(true))

	var found bool
	handler := manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, found = session.FromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodHead, "/", nil))
	assert.False(t, found)
	assert.Equal(t, int32(0), c.gets.Load())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, found)
}

func TestMiddleware_CommitFailureIsLogged(t *testing.T) {
	t.Parallel()
	manager, c := setupManager(t)
	c.failSets(errors.New("write refused"))

	w := httptest.NewRecorder()
	manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, session.MustFromContext(r.Context()).SetString(r.Context(), "k", "v"))
		w.WriteHeader(http.StatusAccepted)
	})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, w.Code, "response is unaffected")
}

type failingKeyGenerator struct{ length int }

func (g failingKeyGenerator) NewKey() (string, error) { return "short", nil }
func (g failingKeyGenerator) KeyLength() int          { return g.length }

func TestMiddleware_KeyGeneratorLengthMismatch(t *testing.T) {
	t.Parallel()
	manager, _ := setupManager(t, session.WithKeyGenerator(failingKeyGenerator{length: 36}))

	called := false
	w := httptest.NewRecorder()
	manager.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestManager_New(t *testing.T) {
	t.Parallel()

	assert.PanicsWithValue(t, session.ErrNoCookieManager, func() {
		session.New()
	})

	manager := session.New(
		session.WithCookieManager(setupCookies(t)),
		session.WithIdleTimeout(0),
		session.WithCookieName(""),
	)
	cfg := manager.Config()
	assert.Equal(t, session.DefaultCookieName, cfg.CookieName)
	assert.Equal(t, session.DefaultIdleTimeout, cfg.IdleTimeout)
	assert.NotNil(t, manager.Store())
	assert.NoError(t, manager.Healthcheck(t.Context()))
	assert.NoError(t, manager.Connect(t.Context()))
}

func TestManager_IdleTimeoutApplied(t *testing.T) {
	t.Parallel()

	manager, _ := setupManager(t, session.WithIdleTimeout(5*time.Minute))
	assert.Equal(t, 5*time.Minute, manager.Config().IdleTimeout)
}

func TestManager_Abandon(t *testing.T) {
	t.Parallel()
	manager, c := setupManager(t, session.WithCookiePath("/app"))

	w := httptest.NewRecorder()
	manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, session.MustFromContext(r.Context()).SetString(r.Context(), "user", "gopher"))
	})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app", nil))
	ck := sessionCookie(t, w, session.DefaultCookieName)
	require.NotNil(t, ck)
	require.Equal(t, 1, c.Len())

	r := httptest.NewRequest(http.MethodPost, "/app/logout", nil)
	r.AddCookie(ck)
	w = httptest.NewRecorder()
	manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, manager.Abandon(w, r))
		err := session.MustFromContext(r.Context()).SetString(r.Context(), "user", "again")
		assert.ErrorIs(t, err, session.ErrAbandoned)
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(w, r)

	expired := sessionCookie(t, w, session.DefaultCookieName)
	require.NotNil(t, expired)
	assert.Empty(t, expired.Value)
	assert.Equal(t, -1, expired.MaxAge)
	assert.Equal(t, "/app", expired.Path)
	assert.Equal(t, 0, c.Len())
}

func TestManager_AbandonNewSession(t *testing.T) {
	t.Parallel()
	manager, c := setupManager(t)

	w := httptest.NewRecorder()
	manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, session.MustFromContext(r.Context()).SetString(r.Context(), "k", "v"))
		require.NoError(t, manager.Abandon(w, r))
		_, _ = w.Write([]byte("bye"))
	})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, w.Result().Cookies(), "no cookie issued or expired")
	assert.Empty(t, w.Header().Get("Cache-Control"))
	assert.Equal(t, 0, c.Len())
}

func TestManager_AbandonWithoutMiddleware(t *testing.T) {
	t.Parallel()
	manager, _ := setupManager(t)

	err := manager.Abandon(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestMiddleware_RefreshUntouched(t *testing.T) {
	t.Parallel()

	for _, refresh := range []bool{true, false} {
		manager, c := setupManager(t, session.WithRefreshUntouched(refresh))

		w := httptest.NewRecorder()
		manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, session.MustFromContext(r.Context()).SetInt32(r.Context(), "n", 1))
		})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		ck := sessionCookie(t, w, session.DefaultCookieName)
		require.NotNil(t, ck)

		serve := func(h http.HandlerFunc) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.AddCookie(ck)
			manager.Middleware(h).ServeHTTP(httptest.NewRecorder(), r)
		}

		serve(func(http.ResponseWriter, *http.Request) {})
		serve(func(_ http.ResponseWriter, r *http.Request) {
			_, _ = session.MustFromContext(r.Context()).GetInt32(r.Context(), "n")
		})

		var want int32
		if refresh {
			want = 1
		}
		assert.Equal(t, want, c.refreshes.Load(), "refresh=%v: only the untouched request refreshes", refresh)
	}
}

type brokenKeyGenerator struct{}

func (brokenKeyGenerator) NewKey() (string, error) {
	return "", errors.Join(session.ErrKeyGeneration, errors.New("entropy exhausted"))
}
func (brokenKeyGenerator) KeyLength() int { return 36 }

func TestMiddleware_KeyGenerationFailure(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	manager, _ := setupManager(t,
		session.WithKeyGenerator(brokenKeyGenerator{}),
		session.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)

	w := httptest.NewRecorder()
	manager.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not run")
	})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, strings.Count(logs.String(), session.ErrKeyGeneration.Error()))
}
