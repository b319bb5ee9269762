package keys

import (
	"fmt"

	"github.com/voxsafe/voxsafe/internal/util"
)

// DerivedKeyMaterial is the output of password-based key derivation. The
// salt is not secret and is persisted alongside ciphertext; the derived key
// itself is never persisted and must be wiped by the caller.
type DerivedKeyMaterial struct {
	Key  []byte
	Salt []byte
}

// Wipe zeroes the derived key in place.
func (d *DerivedKeyMaterial) Wipe() {
	util.WipeBytes(d.Key)
}

// DeriveFromPassword derives a 32-byte key from a password. When salt is
// nil a fresh 16-byte salt is generated; otherwise the supplied salt is
// used, making derivation deterministic. The password is NFKD-normalized
// first, and any configured policy is enforced before derivation starts.
func (m *Manager) DeriveFromPassword(password string, salt []byte) (DerivedKeyMaterial, error) {
	if m.policy != nil {
		if err := m.policy.Validate(password); err != nil {
			return DerivedKeyMaterial{}, err
		}
	}

	if salt == nil {
		fresh, err := util.NewSalt()
		if err != nil {
			return DerivedKeyMaterial{}, fmt.Errorf("%v: %w", err, ErrDerivationFailed)
		}
		salt = fresh
	} else if len(salt) != util.SaltSize {
		return DerivedKeyMaterial{}, fmt.Errorf("salt must be %d bytes, got %d: %w", util.SaltSize, len(salt), ErrDerivationFailed)
	}

	key, err := util.DeriveArgon2idKey(util.Normalize(password), salt, m.kdfParams)
	if err != nil {
		return DerivedKeyMaterial{}, fmt.Errorf("%v: %w", err, ErrDerivationFailed)
	}
	if len(key) == 0 || util.IsAllZero(key) {
		return DerivedKeyMaterial{}, fmt.Errorf("derived key is unusable: %w", ErrDerivationFailed)
	}

	return DerivedKeyMaterial{Key: key, Salt: util.CopyBytes(salt)}, nil
}
