package session

import (
	"fmt"
	"net/http"
	"strings"
)

// SecurePolicy decides whether the session cookie carries the Secure flag.
type SecurePolicy int

const (
	// SecureNever never sets the Secure flag.
	SecureNever SecurePolicy = iota
	// SecureAlways always sets the Secure flag.
	SecureAlways
	// SecureSameAsRequest sets the Secure flag when the request came over TLS.
	SecureSameAsRequest
)

// Secure resolves the policy for r.
func (p SecurePolicy) Secure(r *http.Request) bool {
	switch p {
	case SecureAlways:
		return true
	case SecureSameAsRequest:
		return r != nil && r.TLS != nil
	default:
		return false
	}
}

func (p SecurePolicy) String() string {
	switch p {
	case SecureAlways:
		return "always"
	case SecureSameAsRequest:
		return "same-as-request"
	default:
		return "never"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p SecurePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so the policy can be read
// from environment variables.
func (p *SecurePolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "never", "none":
		*p = SecureNever
	case "always":
		*p = SecureAlways
	case "same-as-request", "same_as_request", "sameasrequest":
		*p = SecureSameAsRequest
	default:
		return fmt.Errorf("session: unknown cookie secure policy %q", text)
	}
	return nil
}
