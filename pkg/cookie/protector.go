package cookie

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Protector encrypts and authenticates short tokens for one purpose.
// Keys are derived per secret with HKDF-SHA256 using the purpose as context,
// so a token protected for one purpose never unprotects under another.
type Protector struct {
	purpose []byte
	aeads   []cipher.AEAD
}

// NewProtector derives AES-256-GCM keys from secrets. The first secret
// protects new tokens; all of them are tried on Unprotect.
func NewProtector(secrets []string, purpose string) (*Protector, error) {
	if purpose == "" {
		return nil, ErrNoPurpose
	}

	secrets, err := validateSecrets(secrets)
	if err != nil {
		return nil, err
	}

	p := &Protector{
		purpose: []byte(purpose),
		aeads:   make([]cipher.AEAD, 0, len(secrets)),
	}

	for i, secret := range secrets {
		key := make([]byte, 32)
		if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, p.purpose), key); err != nil {
			return nil, fmt.Errorf("derive key %d: %w", i, err)
		}

		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		p.aeads = append(p.aeads, gcm)
	}

	return p, nil
}

// Protect returns a URL-safe token embedding plaintext.
func (p *Protector) Protect(plaintext string) (string, error) {
	gcm := p.aeads[0]

	nonce := make([]byte, gcm.NonceSize(), gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), p.purpose)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Unprotect reverses Protect. Tampered tokens and tokens protected for a
// different purpose fail with ErrDecryptionFailed.
func (p *Protector) Unprotect(token string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidFormat
	}

	for _, gcm := range p.aeads {
		if len(sealed) < gcm.NonceSize()+gcm.Overhead() {
			return "", ErrInvalidFormat
		}
		nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
		plaintext, err := gcm.Open(nil, nonce, ciphertext, p.purpose)
		if err == nil {
			return string(plaintext), nil
		}
	}

	return "", ErrDecryptionFailed
}
