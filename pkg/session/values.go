package session

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// SetString stores value as UTF-8 bytes.
func (s *Session) SetString(ctx context.Context, key, value string) error {
	return s.Set(ctx, key, []byte(value))
}

// GetString returns the entry as a string.
func (s *Session) GetString(ctx context.Context, key string) (string, bool) {
	data, ok := s.TryGet(ctx, key)
	if !ok {
		return "", false
	}
	return string(data), true
}

// SetInt32 stores value as 4 big-endian bytes.
func (s *Session) SetInt32(ctx context.Context, key string, value int32) error {
	return s.Set(ctx, key, binary.BigEndian.AppendUint32(nil, uint32(value)))
}

// GetInt32 returns the entry as an int32. Entries that are not exactly
// 4 bytes long are reported as absent.
func (s *Session) GetInt32(ctx context.Context, key string) (int32, bool) {
	data, ok := s.TryGet(ctx, key)
	if !ok || len(data) != 4 {
		return 0, false
	}
	return int32(binary.BigEndian.Uint32(data)), true
}

// Formatter converts values of T to and from session entry bytes.
type Formatter[T any] interface {
	Format(v T) ([]byte, error)
	Parse(data []byte) (T, error)
}

// SetValue formats v with f and stores it under key.
func SetValue[T any](ctx context.Context, s *Session, key string, v T, f Formatter[T]) error {
	data, err := f.Format(v)
	if err != nil {
		return fmt.Errorf("format session value %q: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// GetValue reads the entry under key and parses it with f. The boolean is
// false when the entry is absent.
func GetValue[T any](ctx context.Context, s *Session, key string, f Formatter[T]) (T, bool, error) {
	var zero T
	data, ok := s.TryGet(ctx, key)
	if !ok {
		return zero, false, nil
	}
	v, err := f.Parse(data)
	if err != nil {
		return zero, true, fmt.Errorf("parse session value %q: %w", key, err)
	}
	return v, true, nil
}

// JSONFormatter stores values as JSON documents.
type JSONFormatter[T any] struct{}

func (JSONFormatter[T]) Format(v T) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONFormatter[T]) Parse(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// BoolFormatter stores a bool as a single byte.
type BoolFormatter struct{}

func (BoolFormatter) Format(v bool) ([]byte, error) {
	if v {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func (BoolFormatter) Parse(data []byte) (bool, error) {
	if len(data) != 1 || data[0] > 1 {
		return false, fmt.Errorf("invalid bool encoding of %d bytes", len(data))
	}
	return data[0] == 1, nil
}
