package session

import "errors"

var (
	// ErrKeyTooLong indicates an entry key longer than 65,535 bytes once encoded
	ErrKeyTooLong = errors.New("session.key_too_long")

	// ErrLengthOverflow indicates a count or length that does not fit its field in the record format
	ErrLengthOverflow = errors.New("session.length_overflow")

	// ErrTruncatedStream indicates a stored record shorter than its length fields promise
	ErrTruncatedStream = errors.New("session.truncated_stream")

	// ErrUnsupportedRevision indicates a stored record written in an unknown format revision
	ErrUnsupportedRevision = errors.New("session.unsupported_revision")

	// ErrNotEstablishable indicates a write to a new session after the response has started
	ErrNotEstablishable = errors.New("session.not_establishable")

	// ErrInvalidKeyLength indicates a generated session key of unexpected length
	ErrInvalidKeyLength = errors.New("session.invalid_key_length")

	// ErrKeyGeneration indicates the random source failed while generating a session key
	ErrKeyGeneration = errors.New("session.key_generation_failed")

	// ErrAbandoned indicates a write to a session after it was abandoned
	ErrAbandoned = errors.New("session.abandoned")

	// ErrNoSession indicates a request that did not pass through the session middleware
	ErrNoSession = errors.New("session.not_found")

	// ErrNoCookieManager indicates the manager was built without a cookie manager
	ErrNoCookieManager = errors.New("session.no_cookie_manager")

	// ErrStoreUnavailable indicates the backing cache cannot be reached
	ErrStoreUnavailable = errors.New("session.store_unavailable")
)
