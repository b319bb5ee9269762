package util

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2Iterations is the iteration count for PBKDF2-HMAC-SHA256 derivation.
const PBKDF2Iterations = 600_000

// DerivePBKDF2Key derives a 32-byte key using PBKDF2-HMAC-SHA256. Kept for
// interop with containers produced by derivers that cannot run Argon2id.
func DerivePBKDF2Key(passphrase string, salt []byte, iterations int) ([]byte, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("pbkdf2 salt must not be empty")
	}
	if iterations < 1 {
		return nil, fmt.Errorf("pbkdf2 iterations must be at least 1")
	}
	return pbkdf2.Key([]byte(passphrase), salt, iterations, AESKeySize, sha256.New), nil
}
