package security

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrEmptySecret is returned when key derivation is attempted with no master secret.
var ErrEmptySecret = errors.New("empty master secret")

// DeriveKey derives a 32-byte purpose-scoped key from the master secret using
// HKDF-SHA256. Distinct purpose labels yield independent keys, so the gate-token
// HMAC key cannot be reused for any future signing concern even when the same
// master secret is configured for both.
func DeriveKey(masterSecret []byte, purpose string) ([]byte, error) {
	if len(masterSecret) == 0 {
		return nil, ErrEmptySecret
	}
	r := hkdf.New(sha256.New, masterSecret, nil, []byte(purpose))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}
