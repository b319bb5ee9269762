package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// AlgorithmAES256GCM is the default authenticated encryption algorithm.
	AlgorithmAES256GCM = "AES-256-GCM"
	// AlgorithmChaCha20Poly1305 is supported for decryption interop and may
	// be selected as the preferred algorithm.
	AlgorithmChaCha20Poly1305 = "ChaCha20-Poly1305"

	keySize = 32
	// TagSize is the AEAD authentication tag length for both algorithms.
	TagSize = 16
)

func newAEAD(algorithm string, key []byte) (cipher.AEAD, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	switch algorithm {
	case AlgorithmAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("creating cipher: %w", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("creating GCM: %w", err)
		}
		return gcm, nil
	case AlgorithmChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("creating ChaCha20-Poly1305: %w", err)
		}
		return aead, nil
	default:
		return nil, fmt.Errorf("%s: %w", algorithm, ErrUnsupportedAlgorithm)
	}
}

// SupportedAlgorithm reports whether the engine can seal and open payloads
// under the given algorithm identifier.
func SupportedAlgorithm(algorithm string) bool {
	switch algorithm {
	case AlgorithmAES256GCM, AlgorithmChaCha20Poly1305:
		return true
	default:
		return false
	}
}
