package crypto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voxsafe/voxsafe/internal/util"
)

// ContainerVersion is the current container format version. Readers reject
// any other version rather than guessing a parse strategy.
const ContainerVersion = 1

// Container is the self-describing serialization of an EncryptedPayload:
// everything needed to decrypt it except the key itself.
type Container struct {
	Version       int     `json:"version"`
	Algorithm     string  `json:"algorithm"`
	KeyIdentifier string  `json:"keyIdentifier,omitempty"`
	Timestamp     float64 `json:"timestamp"`
	IV            string  `json:"iv"`
	AuthTag       string  `json:"authTag"`
	EncryptedData string  `json:"encryptedData"`
}

// NewContainer wraps a payload in a versioned container.
func NewContainer(payload EncryptedPayload, algorithm, keyIdentifier string, now time.Time) (*Container, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	if !SupportedAlgorithm(algorithm) {
		return nil, fmt.Errorf("%s: %w", algorithm, ErrUnsupportedAlgorithm)
	}
	return &Container{
		Version:       ContainerVersion,
		Algorithm:     algorithm,
		KeyIdentifier: keyIdentifier,
		Timestamp:     float64(now.UnixNano()) / float64(time.Second),
		IV:            util.Base64Encode(payload.Nonce),
		AuthTag:       util.Base64Encode(payload.Tag),
		EncryptedData: util.Base64Encode(payload.Ciphertext),
	}, nil
}

// Encode serializes the container to JSON.
func (c *Container) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling container: %w", err)
	}
	return data, nil
}

// Payload decodes the base64 fields back into an EncryptedPayload.
func (c *Container) Payload() (EncryptedPayload, error) {
	nonce, err := util.Base64Decode(c.IV)
	if err != nil {
		return EncryptedPayload{}, fmt.Errorf("decoding iv: %w", ErrInvalidData)
	}
	tag, err := util.Base64Decode(c.AuthTag)
	if err != nil {
		return EncryptedPayload{}, fmt.Errorf("decoding authTag: %w", ErrInvalidData)
	}
	ciphertext, err := util.Base64Decode(c.EncryptedData)
	if err != nil {
		return EncryptedPayload{}, fmt.Errorf("decoding encryptedData: %w", ErrInvalidData)
	}

	payload := EncryptedPayload{Ciphertext: ciphertext, Nonce: nonce, Tag: tag}
	if err := payload.Validate(); err != nil {
		return EncryptedPayload{}, err
	}
	return payload, nil
}

// DecodeContainer parses and validates a serialized container. Unknown
// fields, unknown versions, and unsupported algorithms are rejected.
func DecodeContainer(data []byte) (*Container, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var c Container
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parsing container: %w", ErrInvalidData)
	}
	if c.Version != ContainerVersion {
		return nil, fmt.Errorf("container version %d: %w", c.Version, ErrInvalidData)
	}
	if !SupportedAlgorithm(c.Algorithm) {
		return nil, fmt.Errorf("%s: %w", c.Algorithm, ErrUnsupportedAlgorithm)
	}
	return &c, nil
}
