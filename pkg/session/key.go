package session

import (
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// MaxKeyLength is the largest encoded key the record format can hold.
const MaxKeyLength = 0xFFFF

// EncodedKey is the UTF-8 form of an entry key. Keys are kept encoded so a
// record read from storage never has to re-encode them, and two keys are
// equal only when their bytes are identical.
type EncodedKey struct {
	raw     string // encoded bytes; immutable
	text    string
	hasText bool
	hash    uint64
	hasHash bool
}

// EncodeKey encodes key for storage. Invalid UTF-8 sequences are replaced
// with U+FFFD so the encoding is deterministic.
func EncodeKey(key string) (EncodedKey, error) {
	raw := key
	if !utf8.ValidString(key) {
		raw = strings.ToValidUTF8(key, string(utf8.RuneError))
	}
	if len(raw) > MaxKeyLength {
		return EncodedKey{}, ErrKeyTooLong
	}
	return EncodedKey{raw: raw, text: key, hasText: true}, nil
}

// DecodeKey wraps bytes read from storage. The string form is derived on
// first use.
func DecodeKey(b []byte) EncodedKey {
	return EncodedKey{raw: string(b)}
}

// Bytes returns a copy of the encoded form.
func (k *EncodedKey) Bytes() []byte {
	return []byte(k.raw)
}

// Len returns the encoded length in bytes.
func (k *EncodedKey) Len() int {
	return len(k.raw)
}

// String returns the key as text, decoding it lazily for keys read from
// storage.
func (k *EncodedKey) String() string {
	if !k.hasText {
		k.text = strings.ToValidUTF8(k.raw, string(utf8.RuneError))
		k.hasText = true
	}
	return k.text
}

// Hash returns a hash of the encoded bytes, computed once.
func (k *EncodedKey) Hash() uint64 {
	if !k.hasHash {
		k.hash = xxhash.Sum64String(k.raw)
		k.hasHash = true
	}
	return k.hash
}

// Equal reports whether both keys have identical encoded bytes.
func (k *EncodedKey) Equal(other *EncodedKey) bool {
	if other == nil {
		return false
	}
	if len(k.raw) != len(other.raw) {
		return false
	}
	if k.hasHash && other.hasHash && k.hash != other.hash {
		return false
	}
	for i := 0; i < len(k.raw); i++ {
		if k.raw[i] != other.raw[i] {
			return false
		}
	}
	return true
}
