package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/voxsafe/voxsafe/internal/util"
)

const (
	// ContainerFormat identifies the password-protected export container.
	ContainerFormat = "ProtectedExport"
	// ContainerVersion is the current format version. Version 1 pins the
	// derivation to the default Argon2id profile, so the container only
	// needs to carry the salt.
	ContainerVersion = 1
)

// protectedContainer is the outer, password-protected wrapper written to
// disk or transferred between devices.
type protectedContainer struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
	Salt    string `json:"salt"`
	Data    string `json:"data"`
}

func encodeProtectedContainer(salt, sealed []byte) ([]byte, error) {
	data, err := json.Marshal(&protectedContainer{
		Format:  ContainerFormat,
		Version: ContainerVersion,
		Salt:    util.Base64Encode(salt),
		Data:    util.Base64Encode(sealed),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling protected container: %w", err)
	}
	return data, nil
}

func decodeProtectedContainer(data []byte) (salt, sealed []byte, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var c protectedContainer
	if err := dec.Decode(&c); err != nil {
		return nil, nil, fmt.Errorf("parsing protected container: %w", ErrInvalidData)
	}
	if c.Format != ContainerFormat {
		return nil, nil, fmt.Errorf("format %q: %w", c.Format, ErrInvalidData)
	}
	if c.Version != ContainerVersion {
		return nil, nil, fmt.Errorf("container version %d: %w", c.Version, ErrInvalidData)
	}

	salt, err = util.Base64Decode(c.Salt)
	if err != nil || len(salt) != util.SaltSize {
		return nil, nil, fmt.Errorf("decoding salt: %w", ErrInvalidData)
	}
	sealed, err = util.Base64Decode(c.Data)
	if err != nil || len(sealed) == 0 {
		return nil, nil, fmt.Errorf("decoding data: %w", ErrInvalidData)
	}
	return salt, sealed, nil
}
