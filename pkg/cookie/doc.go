// Package cookie reads and writes HTTP cookies and protects the values
// stored in them.
//
// A Manager carries default attributes (path, domain, Secure, HttpOnly,
// SameSite) and one or more secrets of at least 32 bytes. Protector values
// derived from those secrets encrypt short tokens with AES-256-GCM. Each
// Protector is bound to a purpose string: keys are derived with HKDF-SHA256
// using the purpose as context, and the purpose is also authenticated as
// additional data, so tokens cannot be replayed across purposes.
//
// Secrets rotate by prepending the new one. The first secret protects new
// tokens; every secret is tried when unprotecting.
//
// # Usage
//
//	man, err := cookie.New([]string{os.Getenv("COOKIE_SECRET")})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	p, _ := man.Protector("session.identifier")
//	token, _ := p.Protect("42")
//	man.Set(w, "sid", token, cookie.WithSecure(true))
//
//	value, _ := man.Get(r, "sid")
//	id, err := p.Unprotect(value)
//
// # Errors
//
// ErrCookieNotFound is returned for absent cookies, ErrInvalidFormat for
// values that are not valid tokens, ErrDecryptionFailed for tokens that fail
// authentication under every secret.
package cookie
