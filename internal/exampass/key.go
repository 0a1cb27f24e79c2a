package exampass

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const keyInfo = "examroom exam-pass signing key v1"

// DeriveSigningKey derives the 32-byte HMAC key from the configured secret
// with HKDF-SHA256.
func DeriveSigningKey(secret string) ([]byte, error) {
	if len(secret) < 16 {
		return nil, errors.New("exam pass secret must be at least 16 characters")
	}
	key := make([]byte, minKeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return key, nil
}
