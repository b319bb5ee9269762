package util

import (
	"crypto/rand"
	"fmt"
)

const (
	// AESKeySize is the raw key length for AES-256.
	AESKeySize = 32
	// SaltSize is the salt length for password-based derivation.
	SaltSize = 16
	// NonceSize is the AEAD nonce length.
	NonceSize = 12
)

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}

// NewAESKey generates a new random 256-bit AES key.
func NewAESKey() ([]byte, error) {
	rawKey, err := RandomBytes(AESKeySize)
	if err != nil {
		return nil, fmt.Errorf("generating AES key: %w", err)
	}
	return rawKey, nil
}

// NewSalt generates a new random 16-byte derivation salt.
func NewSalt() ([]byte, error) {
	salt, err := RandomBytes(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}
