package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dmitrymomot/sessionstate/pkg/cache"
	"github.com/dmitrymomot/sessionstate/pkg/logger"
)

// Session is the key-value state of one client for the duration of one
// request. It loads lazily on first access, tracks modifications and writes
// back on Commit. A Session belongs to a single request and is discarded
// with it.
type Session struct {
	id          string
	idleTimeout time.Duration
	establisher Establisher
	isNew       bool
	store       *DistributedStore

	mu        sync.Mutex
	record    *Record
	loaded    bool
	existed   bool // a blob was found on load
	dirty     bool
	abandoned bool
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// IsNew reports whether the identifier was generated for this request.
func (s *Session) IsNew() bool {
	return s.isNew
}

// IsLoaded reports whether the record has been fetched from the cache.
func (s *Session) IsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// IsModified reports whether there are changes not yet committed.
func (s *Session) IsModified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Keys returns a snapshot of the entry keys. Load failures are logged and
// reported as an empty session.
func (s *Session) Keys(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loadBestEffort(ctx) {
		return nil
	}
	return s.record.Keys()
}

// TryGet returns a copy of the value stored under key. Load failures are
// logged and reported as a missing key.
func (s *Session) TryGet(ctx context.Context, key string) ([]byte, bool) {
	ek, err := EncodeKey(key)
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loadBestEffort(ctx) {
		return nil, false
	}
	value, ok := s.record.Get(ek)
	if !ok {
		return nil, false
	}
	return bytes.Clone(value), true
}

// Set stores a copy of value under key. It fails with ErrKeyTooLong for
// oversized keys, with ErrAbandoned after Abandon, with ErrNotEstablishable
// when this is a new session and the response has already started, or with
// the cache error if loading failed. The record is loaded before the
// establisher is asked, so a failed load never issues a cookie.
func (s *Session) Set(ctx context.Context, key string, value []byte) error {
	ek, err := EncodeKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.abandoned {
		return ErrAbandoned
	}
	if err := s.loadLocked(ctx); err != nil {
		return err
	}
	if !s.establisher.TryEstablish() {
		s.store.metrics.recordRejected()
		return ErrNotEstablishable
	}

	s.dirty = true
	s.record.Set(ek, value)
	return nil
}

// Remove deletes key. The session only becomes modified if the key existed.
func (s *Session) Remove(ctx context.Context, key string) {
	ek, err := EncodeKey(key)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loadBestEffort(ctx) {
		return
	}
	if s.record.Remove(ek) {
		s.dirty = true
	}
}

// Clear deletes every entry. The session only becomes modified if it had
// entries.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loadBestEffort(ctx) {
		return
	}
	if s.record.Clear() {
		s.dirty = true
	}
}

// Load fetches the session record. It is a no-op once the record has been
// loaded, and unlike the accessors it returns cache failures to the caller.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked(ctx)
}

// Commit writes the record back if it was modified, resetting the sliding
// expiration to the idle timeout. The modified flag is cleared before the
// write, so a failed commit is not retried by a later call.
func (s *Session) Commit(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty || s.abandoned {
		return nil
	}

	ctx, span := s.store.tracer.Start(ctx, "session.Commit")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !s.existed {
		s.store.logger.InfoContext(ctx, "session started", logger.SessionID(s.id))
	}
	s.dirty = false

	data, err := EncodeRecord(s.record)
	if err != nil {
		s.store.metrics.recordCommit(err)
		return err
	}
	span.SetAttributes(attribute.Int("session.record_bytes", len(data)))

	s.store.forget(s.id)
	err = s.store.cache.Set(ctx, s.id, data, cache.EntryOptions{SlidingExpiration: s.idleTimeout})
	s.store.forget(s.id)
	s.store.metrics.recordCommit(err)
	if err != nil {
		return fmt.Errorf("commit session: %w", err)
	}

	s.existed = true
	s.store.metrics.observeRecordSize(len(data))
	return nil
}

// Refresh resets the idle timeout of a stored session that this request
// never loaded. Loading or committing already renews it, and a new session
// has nothing stored, so in those cases Refresh does nothing.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isNew || s.loaded || s.abandoned {
		return nil
	}
	return s.store.cache.Refresh(ctx, s.id)
}

// Abandon deletes the stored session and empties this one. Later writes
// fail with ErrAbandoned and Commit does nothing.
func (s *Session) Abandon(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.abandoned {
		return nil
	}
	s.abandoned = true
	s.record = NewRecord()
	s.loaded = true
	s.dirty = false

	s.store.forget(s.id)
	err := s.store.cache.Remove(ctx, s.id)
	s.store.forget(s.id)
	if err != nil {
		return fmt.Errorf("abandon session: %w", err)
	}
	s.store.logger.InfoContext(ctx, "session abandoned", logger.SessionID(s.id))
	return nil
}

// loadBestEffort loads the record and logs failures. It reports whether the
// record is available. A failed load is retried on the next access.
func (s *Session) loadBestEffort(ctx context.Context) bool {
	if err := s.loadLocked(ctx); err != nil {
		s.store.logger.WarnContext(ctx, "session load failed", logger.SessionID(s.id), logger.Error(err))
		return false
	}
	return true
}

func (s *Session) loadLocked(ctx context.Context) (err error) {
	if s.loaded {
		return nil
	}

	ctx, span := s.store.tracer.Start(ctx, "session.Load")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.Bool("session.new", s.isNew))

	data, err := s.store.fetch(ctx, s.id)
	if err != nil {
		s.store.metrics.recordLoad(loadResultError)
		return fmt.Errorf("load session: %w", err)
	}

	switch {
	case data == nil:
		if !s.isNew {
			s.store.logger.InfoContext(ctx, "accessing expired session", logger.SessionID(s.id))
		}
		s.record = NewRecord()
		s.store.metrics.recordLoad(loadResultMiss)
	default:
		s.existed = true
		record, err := DecodeRecord(data)
		if err != nil {
			// Unreadable blobs are replaced on the next commit.
			s.store.logger.WarnContext(ctx, "session blob unreadable, discarding",
				logger.SessionID(s.id), logger.Error(err), slog.Int("bytes", len(data)))
			s.dirty = true
			s.store.metrics.recordLoad(loadResultCorrupt)
		} else {
			s.store.metrics.recordLoad(loadResultHit)
		}
		s.record = record
	}

	s.loaded = true
	return nil
}
