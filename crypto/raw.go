package crypto

import (
	"fmt"

	"github.com/voxsafe/voxsafe/internal/util"
)

// SealWithKey seals data directly under rawKey with a fresh random nonce.
// Intended for ephemeral keys (password-derived export keys) that exist only
// for the duration of one call and are never stored.
func SealWithKey(data, rawKey []byte, algorithm string) (EncryptedPayload, error) {
	aead, err := newAEAD(algorithm, rawKey)
	if err != nil {
		return EncryptedPayload{}, fmt.Errorf("%v: %w", err, ErrEncryptionFailed)
	}

	nonce, err := util.RandomBytes(util.NonceSize)
	if err != nil {
		return EncryptedPayload{}, fmt.Errorf("%v: %w", err, ErrNonceGenerationFailed)
	}

	sealed := aead.Seal(nil, nonce, data, nil)
	ciphertext, tag, err := splitSealed(sealed)
	if err != nil {
		return EncryptedPayload{}, fmt.Errorf("%v: %w", err, ErrEncryptionFailed)
	}

	return EncryptedPayload{
		Ciphertext: util.CopyBytes(ciphertext),
		Nonce:      nonce,
		Tag:        util.CopyBytes(tag),
	}, nil
}

// OpenWithKey opens a payload directly under rawKey.
func OpenWithKey(payload EncryptedPayload, rawKey []byte, algorithm string) ([]byte, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	aead, err := newAEAD(algorithm, rawKey)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrDecryptionFailed)
	}

	plaintext, err := aead.Open(nil, payload.Nonce, payload.sealed(), nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
