// Package export implements the password-protected package format used to
// move encrypted content and key backups between devices. An export is an
// AEAD-encrypted serialization of an inner envelope that references the key
// needed to decrypt the original payload against the live keystore.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"
	"github.com/voxsafe/voxsafe/crypto"
	"github.com/voxsafe/voxsafe/internal/util"
)

var (
	// ErrInvalidData indicates a structural mismatch at any parse stage.
	// No stage produces a partial or best-effort result.
	ErrInvalidData = errors.New("invalid export data")
	// ErrDecryptionFailed indicates the password was wrong or the package
	// was tampered with.
	ErrDecryptionFailed = errors.New("export decryption failed")
)

const innerVersion = 1

type innerMetadata struct {
	Version       int     `json:"version"`
	ExportID      string  `json:"exportId"`
	KeyIdentifier string  `json:"keyIdentifier"`
	Algorithm     string  `json:"algorithm"`
	Timestamp     float64 `json:"timestamp"`
}

type innerPayload struct {
	Nonce      string `json:"nonce"`
	Tag        string `json:"tag"`
	Ciphertext string `json:"ciphertext"`
}

type innerEnvelope struct {
	Metadata innerMetadata `json:"metadata"`
	Payload  innerPayload  `json:"payload"`
}

// Codec produces and parses password-protected export packages. The export
// key is derived per call and never persisted.
type Codec struct {
	policy    Policy
	kdfParams util.Argon2idParams
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithPolicy sets the password policy.
func WithPolicy(policy Policy) CodecOption {
	return func(c *Codec) {
		c.policy = policy
	}
}

// WithKDFParams overrides the Argon2id parameters. Intended for tests;
// containers remain readable only by codecs using the same parameters.
func WithKDFParams(params util.Argon2idParams) CodecOption {
	return func(c *Codec) {
		c.kdfParams = params
	}
}

// NewCodec creates a Codec with the default policy and KDF profile.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{
		policy:    DefaultPolicy(),
		kdfParams: util.DefaultArgon2idParams(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the codec's password policy.
func (c *Codec) Policy() Policy {
	return c.policy
}

// Export wraps an encrypted payload and its key identifier in a
// password-protected package. The password is validated against the policy
// before any cryptographic work.
func (c *Codec) Export(payload crypto.EncryptedPayload, keyIdentifier, password string) ([]byte, error) {
	if err := c.policy.Validate(password); err != nil {
		return nil, err
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidData)
	}

	envelope := innerEnvelope{
		Metadata: innerMetadata{
			Version:       innerVersion,
			ExportID:      uuid.NewString(),
			KeyIdentifier: keyIdentifier,
			Algorithm:     crypto.AlgorithmAES256GCM,
			Timestamp:     float64(time.Now().UnixNano()) / float64(time.Second),
		},
		Payload: innerPayload{
			Nonce:      util.Base64Encode(payload.Nonce),
			Tag:        util.Base64Encode(payload.Tag),
			Ciphertext: util.Base64Encode(payload.Ciphertext),
		},
	}
	plaintext, err := json.Marshal(&envelope)
	if err != nil {
		return nil, fmt.Errorf("marshaling export envelope: %w", err)
	}
	defer util.WipeBytes(plaintext)

	return c.sealWithPassword(plaintext, password)
}

// Import parses a password-protected package and returns the original
// payload plus the identifier of the key needed to decrypt it against the
// live keystore. Parsing proceeds through fixed stages; the first failing
// stage halts the import.
func (c *Codec) Import(data []byte, password string) (crypto.EncryptedPayload, string, error) {
	plaintext, err := c.DecryptWithPassword(data, password)
	if err != nil {
		return crypto.EncryptedPayload{}, "", err
	}
	defer util.WipeBytes(plaintext)

	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.DisallowUnknownFields()
	var envelope innerEnvelope
	if err := dec.Decode(&envelope); err != nil {
		return crypto.EncryptedPayload{}, "", fmt.Errorf("parsing export envelope: %w", ErrInvalidData)
	}
	if envelope.Metadata.Version != innerVersion {
		return crypto.EncryptedPayload{}, "", fmt.Errorf("envelope version %d: %w", envelope.Metadata.Version, ErrInvalidData)
	}
	if envelope.Metadata.KeyIdentifier == "" {
		return crypto.EncryptedPayload{}, "", fmt.Errorf("envelope has no key identifier: %w", ErrInvalidData)
	}

	nonce, err := util.Base64Decode(envelope.Payload.Nonce)
	if err != nil {
		return crypto.EncryptedPayload{}, "", fmt.Errorf("decoding nonce: %w", ErrInvalidData)
	}
	tag, err := util.Base64Decode(envelope.Payload.Tag)
	if err != nil {
		return crypto.EncryptedPayload{}, "", fmt.Errorf("decoding tag: %w", ErrInvalidData)
	}
	ciphertext, err := util.Base64Decode(envelope.Payload.Ciphertext)
	if err != nil {
		return crypto.EncryptedPayload{}, "", fmt.Errorf("decoding ciphertext: %w", ErrInvalidData)
	}

	payload := crypto.EncryptedPayload{Ciphertext: ciphertext, Nonce: nonce, Tag: tag}
	if err := payload.Validate(); err != nil {
		return crypto.EncryptedPayload{}, "", fmt.Errorf("%v: %w", err, ErrInvalidData)
	}
	return payload, envelope.Metadata.KeyIdentifier, nil
}

// EncryptWithPassword seals plaintext under a password-derived key and wraps
// the result, with its salt, in the outer protected container.
func (c *Codec) EncryptWithPassword(plaintext []byte, password string) ([]byte, error) {
	if err := c.policy.Validate(password); err != nil {
		return nil, err
	}
	return c.sealWithPassword(plaintext, password)
}

func (c *Codec) sealWithPassword(plaintext []byte, password string) ([]byte, error) {
	salt, err := util.NewSalt()
	if err != nil {
		return nil, err
	}

	key, err := c.deriveExportKey(password, salt)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	payload, err := crypto.SealWithKey(plaintext, key.Bytes(), crypto.AlgorithmAES256GCM)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(payload.Nonce)+len(payload.Ciphertext)+len(payload.Tag))
	sealed = append(sealed, payload.Nonce...)
	sealed = append(sealed, payload.Ciphertext...)
	sealed = append(sealed, payload.Tag...)

	return encodeProtectedContainer(salt, sealed)
}

// DecryptWithPassword parses the outer protected container, re-derives the
// export key from the embedded salt, and returns the decrypted contents.
func (c *Codec) DecryptWithPassword(data []byte, password string) ([]byte, error) {
	salt, sealed, err := decodeProtectedContainer(data)
	if err != nil {
		return nil, err
	}
	if len(sealed) < util.NonceSize+crypto.TagSize {
		return nil, fmt.Errorf("sealed data too short: %w", ErrInvalidData)
	}

	key, err := c.deriveExportKey(password, salt)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	payload := crypto.EncryptedPayload{
		Nonce:      sealed[:util.NonceSize],
		Ciphertext: sealed[util.NonceSize : len(sealed)-crypto.TagSize],
		Tag:        sealed[len(sealed)-crypto.TagSize:],
	}
	plaintext, err := crypto.OpenWithKey(payload, key.Bytes(), crypto.AlgorithmAES256GCM)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ContainerFormat, ErrDecryptionFailed)
	}
	return plaintext, nil
}

// deriveExportKey derives the ephemeral export key into a locked buffer
// that the caller must destroy.
func (c *Codec) deriveExportKey(password string, salt []byte) (*memguard.LockedBuffer, error) {
	raw, err := util.DeriveArgon2idKey(util.Normalize(password), salt, c.kdfParams)
	if err != nil {
		return nil, fmt.Errorf("deriving export key: %w", err)
	}
	if util.IsAllZero(raw) {
		return nil, fmt.Errorf("derived export key is all zero: %w", ErrInvalidData)
	}
	// NewBufferFromBytes wipes raw after copying it into locked memory.
	return memguard.NewBufferFromBytes(raw), nil
}
