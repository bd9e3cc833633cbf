package cookie

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"
)

const minSecretLength = 32

// Manager reads and writes cookies with shared defaults and hands out
// Protectors derived from its secrets.
type Manager struct {
	secrets  []string
	defaults Options
}

// New creates a Manager. The first secret protects new values, the rest
// are only used to read values protected before a rotation.
func New(secrets []string, opts ...Option) (*Manager, error) {
	secrets, err := validateSecrets(secrets)
	if err != nil {
		return nil, err
	}

	defaults := Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{
		secrets:  secrets,
		defaults: applyOptions(defaults, opts),
	}, nil
}

// Set appends a cookie to the response.
func (m *Manager) Set(w http.ResponseWriter, name, value string, opts ...Option) {
	options := applyOptions(m.defaults, opts)

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     options.Path,
		Domain:   options.Domain,
		MaxAge:   options.MaxAge,
		Secure:   options.Secure,
		HttpOnly: options.HttpOnly,
		SameSite: options.SameSite,
	})
}

// Get returns the value of the named request cookie.
func (m *Manager) Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrCookieNotFound
		}
		return "", err
	}
	return c.Value, nil
}

// Delete expires the named cookie on the client.
func (m *Manager) Delete(w http.ResponseWriter, name string, opts ...Option) {
	options := applyOptions(m.defaults, opts)

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     options.Path,
		Domain:   options.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: options.HttpOnly,
		SameSite: options.SameSite,
		Secure:   options.Secure,
	})
}

// Protector returns a Protector bound to purpose using the manager's secrets.
func (m *Manager) Protector(purpose string) (*Protector, error) {
	return NewProtector(m.secrets, purpose)
}

func validateSecrets(secrets []string) ([]string, error) {
	secrets = slices.DeleteFunc(slices.Clone(secrets), func(s string) bool { return s == "" })
	if len(secrets) == 0 {
		return nil, ErrNoSecret
	}

	for i, s := range secrets {
		if len(s) < minSecretLength {
			return nil, fmt.Errorf("%w: secret %d has %d chars, need at least %d", ErrSecretTooShort, i, len(s), minSecretLength)
		}
	}
	return secrets, nil
}
