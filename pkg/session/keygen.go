package session

import (
	"crypto/rand"
	"errors"
	"io"

	"github.com/google/uuid"
)

// KeyGenerator produces session identifiers.
type KeyGenerator interface {
	// NewKey returns a fresh identifier of exactly KeyLength characters.
	NewKey() (string, error)

	// KeyLength is the exact length of every identifier NewKey returns.
	// Identifiers read from cookies are rejected unless they match it.
	KeyLength() int
}

// uuidKeyLength is the length of the canonical UUID form,
// e.g. "382c74c3-721d-4f34-80e5-57657b6cbc27".
const uuidKeyLength = 36

// UUIDKeyGenerator renders 16 random bytes as a canonical random UUID.
//
// It is safe for concurrent use as long as its random source is. The default
// source, crypto/rand.Reader, is safe for concurrent use.
type UUIDKeyGenerator struct {
	random io.Reader
}

var defaultKeyGenerator = NewUUIDKeyGenerator(nil)

// DefaultKeyGenerator returns the process-wide generator backed by crypto/rand.
func DefaultKeyGenerator() *UUIDKeyGenerator {
	return defaultKeyGenerator
}

// NewUUIDKeyGenerator creates a generator reading from random. A nil random
// selects crypto/rand.Reader. Anything other than a CSPRNG makes session
// identifiers guessable.
func NewUUIDKeyGenerator(random io.Reader) *UUIDKeyGenerator {
	if random == nil {
		random = rand.Reader
	}
	return &UUIDKeyGenerator{random: random}
}

// NewKey returns a new random identifier.
func (g *UUIDKeyGenerator) NewKey() (string, error) {
	id, err := uuid.NewRandomFromReader(g.random)
	if err != nil {
		return "", errors.Join(ErrKeyGeneration, err)
	}
	return id.String(), nil
}

// KeyLength returns 36.
func (g *UUIDKeyGenerator) KeyLength() int {
	return uuidKeyLength
}
