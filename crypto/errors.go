package crypto

import "errors"

var (
	// ErrKeyRetrievalFailed indicates the key provider could not supply the
	// requested key.
	ErrKeyRetrievalFailed = errors.New("key retrieval failed")
	// ErrEncryptionFailed indicates the AEAD seal operation failed.
	ErrEncryptionFailed = errors.New("encryption failed")
	// ErrDecryptionFailed indicates tag verification failed: the data was
	// tampered with or the wrong key was used.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrInvalidData indicates a structurally invalid payload or container.
	ErrInvalidData = errors.New("invalid data")
	// ErrFileOperationFailed indicates an I/O failure, distinct from
	// cryptographic failures so callers can retry I/O without re-deriving keys.
	ErrFileOperationFailed = errors.New("file operation failed")
	// ErrUnsupportedAlgorithm indicates an unrecognized algorithm identifier.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	// ErrNonceGenerationFailed indicates the engine could not produce a
	// fresh unique nonce.
	ErrNonceGenerationFailed = errors.New("nonce generation failed")
	// ErrChecksumFailed indicates a checksum could not be computed or the
	// expected value is malformed.
	ErrChecksumFailed = errors.New("checksum failed")
)
