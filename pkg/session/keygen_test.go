package session_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionstate/pkg/session"
)

func TestUUIDKeyGenerator(t *testing.T) {
	t.Parallel()

	t.Run("default generator", func(t *testing.T) {
		g := session.DefaultKeyGenerator()
		assert.Same(t, g, session.DefaultKeyGenerator())

		key, err := g.NewKey()
		require.NoError(t, err)
		assert.Len(t, key, g.KeyLength())
		assert.Equal(t, 36, g.KeyLength())

		id, err := uuid.Parse(key)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(4), id.Version())
	})

	t.Run("injected source", func(t *testing.T) {
		g := session.NewUUIDKeyGenerator(bytes.NewReader(bytes.Repeat([]byte{0}, 16)))
		key, err := g.NewKey()
		require.NoError(t, err)
		assert.Equal(t, "00000000-0000-4000-8000-000000000000", key)
	})

	t.Run("exhausted source", func(t *testing.T) {
		g := session.NewUUIDKeyGenerator(bytes.NewReader([]byte{1, 2, 3}))
		_, err := g.NewKey()
		assert.ErrorIs(t, err, session.ErrKeyGeneration)
	})

	t.Run("concurrent use", func(t *testing.T) {
		g := session.DefaultKeyGenerator()
		var (
			mu   sync.Mutex
			seen = make(map[string]struct{})
			wg   sync.WaitGroup
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 100 {
					key, err := g.NewKey()
					assert.NoError(t, err)
					mu.Lock()
					seen[key] = struct{}{}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Len(t, seen, 800)
	})
}
