package crypto

import (
	"fmt"

	"github.com/voxsafe/voxsafe/internal/util"
)

// EncryptedPayload is the output of an AEAD seal: ciphertext plus the nonce
// and authentication tag needed to open it. The nonce is unique per seal
// under a given key.
type EncryptedPayload struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

// Validate checks the structural invariants of the payload.
func (p EncryptedPayload) Validate() error {
	if len(p.Nonce) != util.NonceSize {
		return fmt.Errorf("nonce must be %d bytes, got %d: %w", util.NonceSize, len(p.Nonce), ErrInvalidData)
	}
	if len(p.Tag) != TagSize {
		return fmt.Errorf("tag must be %d bytes, got %d: %w", TagSize, len(p.Tag), ErrInvalidData)
	}
	return nil
}

// sealed reassembles ciphertext||tag, the layout cipher.AEAD operates on.
func (p EncryptedPayload) sealed() []byte {
	out := make([]byte, 0, len(p.Ciphertext)+len(p.Tag))
	out = append(out, p.Ciphertext...)
	out = append(out, p.Tag...)
	return out
}

func splitSealed(sealed []byte) (ciphertext, tag []byte, err error) {
	if len(sealed) < TagSize {
		return nil, nil, fmt.Errorf("sealed data shorter than tag: %w", ErrInvalidData)
	}
	cut := len(sealed) - TagSize
	return sealed[:cut], sealed[cut:], nil
}
