package cache

import (
	"container/list"
	"time"
)

type memoryEntry struct {
	key       string
	value     []byte
	sliding   time.Duration
	expiresAt time.Time // zero when sliding is zero
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func (e *memoryEntry) touch(now time.Time) {
	if e.sliding > 0 {
		e.expiresAt = now.Add(e.sliding)
	}
}

// lruIndex keeps entries ordered by recency of use. When capacity is
// positive and exceeded, the least recently used entry is dropped.
// It is not safe for concurrent use; MemoryCache serializes access.
type lruIndex struct {
	capacity int
	items    map[string]*list.Element
	order    *list.List
}

func newLRUIndex(capacity int) *lruIndex {
	return &lruIndex{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (l *lruIndex) get(key string) (*memoryEntry, bool) {
	elem, ok := l.items[key]
	if !ok {
		return nil, false
	}
	l.order.MoveToFront(elem)
	return elem.Value.(*memoryEntry), true
}

// put inserts or replaces the entry and returns how many entries were
// evicted to stay within capacity.
func (l *lruIndex) put(entry *memoryEntry) int {
	if elem, ok := l.items[entry.key]; ok {
		elem.Value = entry
		l.order.MoveToFront(elem)
		return 0
	}

	l.items[entry.key] = l.order.PushFront(entry)

	evicted := 0
	for l.capacity > 0 && l.order.Len() > l.capacity {
		l.removeElement(l.order.Back())
		evicted++
	}
	return evicted
}

func (l *lruIndex) remove(key string) bool {
	elem, ok := l.items[key]
	if !ok {
		return false
	}
	l.removeElement(elem)
	return true
}

// removeExpired walks from the least recently used end and drops every
// expired entry. It returns the number of dropped entries.
func (l *lruIndex) removeExpired(now time.Time) int {
	removed := 0
	for elem := l.order.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).expired(now) {
			l.removeElement(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

func (l *lruIndex) len() int {
	return l.order.Len()
}

func (l *lruIndex) removeElement(elem *list.Element) {
	l.order.Remove(elem)
	delete(l.items, elem.Value.(*memoryEntry).key)
}
