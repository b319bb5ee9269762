// Package crypto implements the stateless authenticated-encryption engine:
// AEAD over byte buffers and files, the on-disk container format, and
// content-integrity checksums. Keys are resolved through a KeyProvider; the
// engine never persists key material.
package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/voxsafe/voxsafe/internal/util"
)

// KeyProvider resolves a key identifier to raw key bytes. The identifier may
// be a logical identifier (resolved to its latest version) or a full
// versioned name.
type KeyProvider interface {
	Key(identifier string) ([]byte, error)
}

// VersionResolver is implemented by providers that version their keys. The
// engine embeds the resolved versioned name in file containers so content
// encrypted before a rotation remains decryptable.
type VersionResolver interface {
	LatestDataKeyVersion(identifier string) (string, error)
}

const nonceDrawAttempts = 3

// Engine performs authenticated encryption and decryption using keys
// obtained from a KeyProvider.
type Engine struct {
	provider  KeyProvider
	algorithm string
	guard     *nonceGuard
}

// Option configures an Engine.
type Option func(*Engine)

// WithAlgorithm sets the algorithm used for new encryptions. Decryption
// accepts any supported algorithm regardless of this setting.
func WithAlgorithm(algorithm string) Option {
	return func(e *Engine) {
		e.algorithm = algorithm
	}
}

// NewEngine creates an Engine that resolves keys through provider.
func NewEngine(provider KeyProvider, opts ...Option) (*Engine, error) {
	e := &Engine{
		provider:  provider,
		algorithm: AlgorithmAES256GCM,
		guard:     newNonceGuard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if !SupportedAlgorithm(e.algorithm) {
		return nil, fmt.Errorf("%s: %w", e.algorithm, ErrUnsupportedAlgorithm)
	}
	return e, nil
}

// Algorithm returns the algorithm used for new encryptions.
func (e *Engine) Algorithm() string {
	return e.algorithm
}

// Encrypt seals data under the key named by keyIdentifier with a fresh
// nonce. The nonce is guaranteed unique per key within the process lifetime.
func (e *Engine) Encrypt(data []byte, keyIdentifier string) (EncryptedPayload, error) {
	rawKey, err := e.provider.Key(keyIdentifier)
	if err != nil {
		return EncryptedPayload{}, fmt.Errorf("%s: %w: %w", keyIdentifier, err, ErrKeyRetrievalFailed)
	}
	defer util.WipeBytes(rawKey)

	return e.seal(data, rawKey, keyIdentifier, e.algorithm)
}

func (e *Engine) seal(data, rawKey []byte, keyIdentifier, algorithm string) (EncryptedPayload, error) {
	aead, err := newAEAD(algorithm, rawKey)
	if err != nil {
		return EncryptedPayload{}, fmt.Errorf("%v: %w", err, ErrEncryptionFailed)
	}

	nonce, err := e.drawNonce(keyFingerprint(rawKey), keyIdentifier)
	if err != nil {
		return EncryptedPayload{}, err
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

// keyFingerprint identifies a key by its content, so the guard keeps one
// nonce set per key no matter which name (logical or versioned) resolved it.
func keyFingerprint(rawKey []byte) string {
	sum := sha256.Sum256(rawKey)
	return string(sum[:])
}

func (e *Engine) drawNonce(guardID, keyIdentifier string) ([]byte, error) {
	for attempt := 0; attempt < nonceDrawAttempts; attempt++ {
		nonce, err := util.RandomBytes(util.NonceSize)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrNonceGenerationFailed)
		}
		if e.guard.register(guardID, nonce) {
			return nonce, nil
		}
	}
	return nil, fmt.Errorf("%s: exhausted unique nonce attempts: %w", keyIdentifier, ErrNonceGenerationFailed)
}

// Decrypt opens a payload under the key named by keyIdentifier. On tag
// mismatch it returns ErrDecryptionFailed and no plaintext.
func (e *Engine) Decrypt(payload EncryptedPayload, keyIdentifier string) ([]byte, error) {
	return e.DecryptWithAlgorithm(payload, keyIdentifier, e.algorithm)
}

// DecryptWithAlgorithm opens a payload sealed under a specific supported
// algorithm, as recorded in its container.
func (e *Engine) DecryptWithAlgorithm(payload EncryptedPayload, keyIdentifier, algorithm string) ([]byte, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	rawKey, err := e.provider.Key(keyIdentifier)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", keyIdentifier, err, ErrKeyRetrievalFailed)
	}
	defer util.WipeBytes(rawKey)

	aead, err := newAEAD(algorithm, rawKey)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrDecryptionFailed)
	}

	plaintext, err := aead.Open(nil, payload.Nonce, payload.sealed(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", keyIdentifier, ErrDecryptionFailed)
	}
	return plaintext, nil
}
