package keys

import "errors"

var (
	// ErrKeyNotFound indicates no key exists for the given type and
	// identifier.
	ErrKeyNotFound = errors.New("key not found")
	// ErrAuthenticationFailed indicates a biometric prompt was declined or
	// failed. Callers may offer "try again"; structural failures must not.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrRetrievalFailed indicates a store error other than not-found or
	// authentication failure.
	ErrRetrievalFailed = errors.New("key retrieval failed")
	// ErrStorageFailed indicates the store rejected a write.
	ErrStorageFailed = errors.New("key storage failed")
	// ErrGenerationFailed indicates the random source failed.
	ErrGenerationFailed = errors.New("key generation failed")
	// ErrDerivationFailed indicates password-based derivation failed or
	// produced unusable output.
	ErrDerivationFailed = errors.New("key derivation failed")
	// ErrRotationFailed indicates a rotation could not complete.
	ErrRotationFailed = errors.New("key rotation failed")
	// ErrInvalidKeyData indicates key material or a backup violated a
	// structural invariant.
	ErrInvalidKeyData = errors.New("invalid key data")
	// ErrBiometryUnavailable indicates biometric gating was requested but
	// the store offers no biometric capability.
	ErrBiometryUnavailable = errors.New("biometric protection unavailable")
)
