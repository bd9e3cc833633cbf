package session_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionstate/pkg/session"
)

func mustKey(t testing.TB, s string) session.EncodedKey {
	t.Helper()
	k, err := session.EncodeKey(s)
	require.NoError(t, err)
	return k
}

func assertSameRecord(t *testing.T, want, got *session.Record) {
	t.Helper()
	require.Equal(t, want.Keys(), got.Keys())
	want.Range(func(key *session.EncodedKey, value []byte) bool {
		v, ok := got.Get(*key)
		assert.True(t, ok, "key %q", key.String())
		assert.Equal(t, value, v, "key %q", key.String())
		return true
	})
}

func TestEncodeRecord_Layout(t *testing.T) {
	t.Parallel()

	r := session.NewRecord()
	r.Set(mustKey(t, "ab"), []byte{7, 8, 9})

	data, err := session.EncodeRecord(r)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		1,       // revision
		0, 0, 1, // entry count
		0, 2, 'a', 'b', // key
		0, 0, 0, 3, 7, 8, 9, // value
	}, data)

	empty, err := session.EncodeRecord(session.NewRecord())
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0}, empty)
}

func TestRecord_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		build func(r *session.Record)
	}{
		{name: "empty", build: func(*session.Record) {}},
		{name: "empty value and empty key", build: func(r *session.Record) {
			r.Set(mustKey(t, ""), nil)
			r.Set(mustKey(t, "k"), []byte{})
		}},
		{name: "unicode keys", build: func(r *session.Record) {
			r.Set(mustKey(t, "ключ"), []byte("значение"))
			r.Set(mustKey(t, "鍵"), []byte{0, 0xff})
			r.Set(mustKey(t, "🔑"), []byte("emoji"))
		}},
		{name: "max length key", build: func(r *session.Record) {
			r.Set(mustKey(t, strings.Repeat("x", session.MaxKeyLength)), []byte{1})
		}},
		{name: "large value", build: func(r *session.Record) {
			r.Set(mustKey(t, "big"), bytes.Repeat([]byte{0xab}, 200<<10))
		}},
		{name: "thousands of entries", build: func(r *session.Record) {
			for i := range 3000 {
				r.Set(mustKey(t, fmt.Sprintf("key-%d", i)), []byte(fmt.Sprint(i)))
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := session.NewRecord()
			tt.build(want)

			data, err := session.EncodeRecord(want)
			require.NoError(t, err)

			got, err := session.DecodeRecord(data)
			require.NoError(t, err)
			assertSameRecord(t, want, got)

			// Byte-at-a-time sources must decode identically.
			got, err = session.ReadRecord(iotest.OneByteReader(bytes.NewReader(data)))
			require.NoError(t, err)
			assertSameRecord(t, want, got)
		})
	}
}

func TestDecodeRecord_Truncated(t *testing.T) {
	t.Parallel()

	// One entry whose value promises 10 bytes but carries 4.
	data := []byte{1, 0, 0, 1, 0, 1, 'a', 0, 0, 0, 10, 1, 2, 3, 4}

	r, err := session.DecodeRecord(data)
	assert.ErrorIs(t, err, session.ErrTruncatedStream)
	assert.Equal(t, 0, r.Len())

	_, err = session.ReadRecord(iotest.OneByteReader(bytes.NewReader(data)))
	assert.ErrorIs(t, err, session.ErrTruncatedStream)

	tests := map[string][]byte{
		"count cut":      {1, 0},
		"key length cut": {1, 0, 0, 1, 0},
		"key cut":        {1, 0, 0, 1, 0, 3, 'a'},
		"value len cut":  {1, 0, 0, 1, 0, 1, 'a', 0, 0},
		"missing entry":  {1, 0, 0, 2, 0, 1, 'a', 0, 0, 0, 0},
	}
	for name, blob := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := session.DecodeRecord(blob)
			assert.ErrorIs(t, err, session.ErrTruncatedStream)
		})
	}
}

func TestDecodeRecord_UnsupportedRevision(t *testing.T) {
	t.Parallel()

	for _, blob := range [][]byte{nil, {}, {0}, {2, 0, 0, 0}, {0xff, 1, 2, 3}} {
		r, err := session.DecodeRecord(blob)
		assert.ErrorIs(t, err, session.ErrUnsupportedRevision)
		require.NotNil(t, r)
		assert.Equal(t, 0, r.Len())
	}
}

func TestDecodeRecord_ValueLengthOverflow(t *testing.T) {
	t.Parallel()

	data := []byte{1, 0, 0, 1, 0, 1, 'a', 0x80, 0, 0, 0}
	_, err := session.DecodeRecord(data)
	assert.ErrorIs(t, err, session.ErrLengthOverflow)
}

func TestRecord_Mutations(t *testing.T) {
	t.Parallel()

	r := session.NewRecord()
	assert.False(t, r.Remove(mustKey(t, "missing")))
	assert.False(t, r.Clear())

	value := []byte{1, 2, 3}
	r.Set(mustKey(t, "a"), value)
	value[0] = 9

	got, ok := r.Get(mustKey(t, "a"))
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, got, "record keeps its own copy")

	r.Set(mustKey(t, "b"), nil)
	got, ok = r.Get(mustKey(t, "b"))
	require.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Equal(t, []string{"a", "b"}, r.Keys())
	assert.True(t, r.Remove(mustKey(t, "a")))
	assert.True(t, r.Clear())
	assert.Equal(t, 0, r.Len())
}

func TestRecord_HashedLookup(t *testing.T) {
	t.Parallel()

	r := session.NewRecord()
	for i := range 1000 {
		r.Set(mustKey(t, fmt.Sprintf("key-%d", i)), []byte{byte(i)})
	}
	require.Equal(t, 1000, r.Len())

	for i := range 1000 {
		got, ok := r.Get(mustKey(t, fmt.Sprintf("key-%d", i)))
		require.True(t, ok, "key-%d", i)
		assert.Equal(t, []byte{byte(i)}, got)
	}

	for i := 0; i < 1000; i += 2 {
		require.True(t, r.Remove(mustKey(t, fmt.Sprintf("key-%d", i))))
	}
	assert.Equal(t, 500, r.Len())
	_, ok := r.Get(mustKey(t, "key-10"))
	assert.False(t, ok)
	_, ok = r.Get(mustKey(t, "key-11"))
	assert.True(t, ok)
	assert.Len(t, r.Keys(), 500)
}

func TestRecord_KeysMatchByBytes(t *testing.T) {
	t.Parallel()

	r := session.NewRecord()
	r.Set(mustKey(t, "caf\u00e9"), []byte("precomposed"))
	r.Set(mustKey(t, "cafe\u0301"), []byte("decomposed"))
	assert.Equal(t, 2, r.Len(), "canonically equivalent keys stay distinct")

	// A key read back from storage finds the entry written under its string.
	got, ok := r.Get(session.DecodeKey([]byte("caf\u00e9")))
	require.True(t, ok)
	assert.Equal(t, []byte("precomposed"), got)

	r.Set(session.DecodeKey([]byte("cafe\u0301")), []byte("replaced"))
	assert.Equal(t, 2, r.Len())
	got, _ = r.Get(mustKey(t, "cafe\u0301"))
	assert.Equal(t, []byte("replaced"), got)
}

func FuzzDecodeRecord(f *testing.F) {
	seed := session.NewRecord()
	seed.Set(mustKey(f, "k"), []byte("v"))
	data, _ := session.EncodeRecord(seed)
	f.Add(data)
	f.Add([]byte{1, 0, 0, 0})
	f.Add([]byte{1, 0, 0, 1, 0, 1, 'a', 0, 0, 0, 10, 1, 2, 3, 4})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		r, err := session.DecodeRecord(data)
		require.NotNil(t, r)
		if err != nil {
			assert.Equal(t, 0, r.Len())
			return
		}

		again, err := session.EncodeRecord(r)
		require.NoError(t, err)
		r2, err := session.DecodeRecord(again)
		require.NoError(t, err)
		assertSameRecord(t, r, r2)
	})
}
