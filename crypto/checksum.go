package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/voxsafe/voxsafe/internal/util"
)

// Checksum computes the SHA-256 checksum of the file at path, hex-encoded.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, ErrFileOperationFailed)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, ErrFileOperationFailed)
	}
	return util.HexEncode(h.Sum(nil)), nil
}

// VerifyIntegrity computes the SHA-256 checksum of the file at path and
// compares it to expectedChecksum case-insensitively. A mismatch is an
// answer, not an error; only unreadable input or a malformed expected value
// fails. This is a content-integrity check independent of AEAD, used to
// validate files around transfers, never as a substitute for authenticated
// decryption.
func VerifyIntegrity(path, expectedChecksum string) (bool, error) {
	decoded, err := util.HexDecode(expectedChecksum)
	if err != nil || len(decoded) != sha256.Size {
		return false, fmt.Errorf("expected checksum is not a SHA-256 hex digest: %w", ErrChecksumFailed)
	}

	actual, err := Checksum(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, expectedChecksum), nil
}
