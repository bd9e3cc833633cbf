package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionstate/pkg/cache"
	"github.com/dmitrymomot/sessionstate/pkg/session"
)

func TestMetrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	metrics := session.NewMetrics(reg)
	require.NotPanics(t, func() { session.NewMetrics(reg) }, "re-registration is tolerated")

	manager, _ := setupManager(t, session.WithMetrics(metrics))

	// Established and committed.
	manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, session.MustFromContext(r.Context()).SetString(r.Context(), "k", "v"))
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	// Rejected after the response started.
	manager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = session.MustFromContext(r.Context()).SetString(r.Context(), "k", "v")
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EstablishedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RejectedWritesTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.LoadsTotal.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CommitsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.RecordBytes))
}

func TestMetrics_LoadResults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	metrics := session.NewMetrics(nil)

	c := newCountingCache()
	t.Cleanup(func() { _ = c.Close() })
	store := session.NewDistributedStore(c, session.WithStoreMetrics(metrics))

	require.NoError(t, c.MemoryCache.Set(ctx, "hit", []byte{1, 0, 0, 0}, cache.EntryOptions{SlidingExpiration: time.Minute}))
	require.NoError(t, c.MemoryCache.Set(ctx, "corrupt", []byte{9}, cache.EntryOptions{SlidingExpiration: time.Minute}))

	require.NoError(t, store.Create("hit", time.Minute, nil, false).Load(ctx))
	require.NoError(t, store.Create("corrupt", time.Minute, nil, false).Load(ctx))
	c.failGets(errCacheDown)
	require.Error(t, store.Create("down", time.Minute, nil, false).Load(ctx))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LoadsTotal.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LoadsTotal.WithLabelValues("corrupt")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LoadsTotal.WithLabelValues("error")))
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _ := newStore(t)

	s := store.Create(testID, time.Minute, nil, false)
	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Commit(ctx))
}
