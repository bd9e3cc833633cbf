package session

import (
	"bytes"
	"slices"
	"sort"
)

type recordEntry struct {
	key   EncodedKey
	value []byte
}

// Record is the full set of entries of one session. Entries are bucketed by
// key hash and resolved by byte equality. Entry order carries no meaning.
// A Record is not safe for concurrent use.
type Record struct {
	buckets map[uint64][]*recordEntry
	n       int
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{buckets: make(map[uint64][]*recordEntry)}
}

// Len returns the number of entries.
func (r *Record) Len() int {
	return r.n
}

// find returns the entry stored under key and its index in the bucket.
func (r *Record) find(key *EncodedKey) (*recordEntry, int) {
	for i, e := range r.buckets[key.Hash()] {
		if e.key.Equal(key) {
			return e, i
		}
	}
	return nil, -1
}

// Get returns the value stored under key. The returned slice is owned by
// the record.
func (r *Record) Get(key EncodedKey) ([]byte, bool) {
	e, _ := r.find(&key)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Set stores a private copy of value under key, replacing any previous value.
func (r *Record) Set(key EncodedKey, value []byte) {
	r.put(key, bytes.Clone(nonNil(value)))
}

// put stores value without copying it.
func (r *Record) put(key EncodedKey, value []byte) {
	if e, _ := r.find(&key); e != nil {
		e.value = value
		return
	}
	h := key.Hash()
	r.buckets[h] = append(r.buckets[h], &recordEntry{key: key, value: value})
	r.n++
}

// Remove deletes key and reports whether it was present.
func (r *Record) Remove(key EncodedKey) bool {
	e, i := r.find(&key)
	if e == nil {
		return false
	}
	h := key.Hash()
	if bucket := slices.Delete(r.buckets[h], i, i+1); len(bucket) > 0 {
		r.buckets[h] = bucket
	} else {
		delete(r.buckets, h)
	}
	r.n--
	return true
}

// Clear deletes every entry and reports whether the record was non-empty.
func (r *Record) Clear() bool {
	if r.n == 0 {
		return false
	}
	clear(r.buckets)
	r.n = 0
	return true
}

// Keys returns the entry keys in lexical byte order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, r.n)
	r.Range(func(key *EncodedKey, _ []byte) bool {
		keys = append(keys, key.String())
		return true
	})
	sort.Strings(keys)
	return keys
}

// Range calls fn for each entry until fn returns false.
func (r *Record) Range(fn func(key *EncodedKey, value []byte) bool) {
	for _, bucket := range r.buckets {
		for _, e := range bucket {
			if !fn(&e.key, e.value) {
				return
			}
		}
	}
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
