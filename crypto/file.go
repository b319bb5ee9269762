package crypto

import (
	"fmt"
	"os"
	"time"
)

// EncryptFile reads src, seals it, and writes a self-describing container to
// dst. When the key provider versions its keys, the container records the
// resolved versioned identifier so the file remains decryptable after the
// logical key rotates.
func (e *Engine) EncryptFile(src, dst, keyIdentifier string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, ErrFileOperationFailed)
	}

	containerKeyID := keyIdentifier
	if vr, ok := e.provider.(VersionResolver); ok {
		if versioned, err := vr.LatestDataKeyVersion(keyIdentifier); err == nil {
			containerKeyID = versioned
		}
	}

	// Seal under the resolved name itself, so a rotation between resolution
	// and sealing cannot record a version other than the key actually used.
	payload, err := e.Encrypt(data, containerKeyID)
	if err != nil {
		return err
	}

	container, err := NewContainer(payload, e.algorithm, containerKeyID, time.Now())
	if err != nil {
		return err
	}
	encoded, err := container.Encode()
	if err != nil {
		return err
	}

	if err := os.WriteFile(dst, encoded, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", dst, ErrFileOperationFailed)
	}
	return nil
}

// DecryptFile reads a container from src, opens it with the key named in the
// container, and writes the plaintext to dst.
func (e *Engine) DecryptFile(src, dst string) error {
	encoded, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, ErrFileOperationFailed)
	}

	container, err := DecodeContainer(encoded)
	if err != nil {
		return err
	}
	if container.KeyIdentifier == "" {
		return fmt.Errorf("container has no key identifier: %w", ErrInvalidData)
	}

	payload, err := container.Payload()
	if err != nil {
		return err
	}

	plaintext, err := e.DecryptWithAlgorithm(payload, container.KeyIdentifier, container.Algorithm)
	if err != nil {
		return err
	}

	if err := os.WriteFile(dst, plaintext, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", dst, ErrFileOperationFailed)
	}
	return nil
}
