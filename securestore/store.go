// Package securestore defines the credential-store abstraction that holds
// raw key material at rest. Implementations provide per-item protection
// levels and may gate retrieval behind an authenticator prompt.
package securestore

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrItemNotFound is returned when no item exists under the given name.
	ErrItemNotFound = errors.New("item not found")
	// ErrAuthFailed is returned when the authenticator declines a
	// biometric-gated retrieval.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrUnavailable is returned when the store cannot service the request.
	ErrUnavailable = errors.New("secure store unavailable")
)

// ProtectionLevel controls when an item may be read back.
type ProtectionLevel int

const (
	// Standard items are readable whenever the store is reachable.
	Standard ProtectionLevel = 0
	// WhenUnlocked items are readable only while the device is unlocked.
	WhenUnlocked ProtectionLevel = 1
	// BiometricGated items require a successful authenticator prompt on
	// every retrieval.
	BiometricGated ProtectionLevel = 2
)

// ErrUnknownProtectionLevel is returned when an unrecognized protection
// level is encountered.
var ErrUnknownProtectionLevel = errors.New("unknown protection level")

func (p ProtectionLevel) String() string {
	switch p {
	case Standard:
		return "Standard"
	case WhenUnlocked:
		return "WhenUnlocked"
	case BiometricGated:
		return "BiometricGated"
	default:
		return "Unknown"
	}
}

func (p ProtectionLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *ProtectionLevel) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("unmarshaling protection level: %w", err)
	}

	switch s {
	case "Standard":
		*p = Standard
	case "WhenUnlocked":
		*p = WhenUnlocked
	case "BiometricGated":
		*p = BiometricGated
	default:
		return ErrUnknownProtectionLevel
	}

	return nil
}

// Authenticator models the platform biometric (or equivalent) prompt. It
// returns nil when the user passes the prompt and an error when the prompt
// is declined or fails.
type Authenticator func(reason string) error

// Store is the at-rest home for raw secrets. A secret's bytes live in
// exactly one Store; callers receive defensive copies and are responsible
// for wiping them after use.
type Store interface {
	// Save writes a secret under name with the given protection level,
	// overwriting any existing item.
	Save(name string, secret []byte, level ProtectionLevel) error
	// Retrieve returns a copy of the secret stored under name. For
	// biometric-gated items it runs the authenticator first and maps a
	// declined prompt to ErrAuthFailed.
	Retrieve(name string) ([]byte, error)
	// Contains reports whether an item exists under name.
	Contains(name string) bool
	// Delete removes the item under name. The removal is unrecoverable.
	Delete(name string) error
	// List returns the names of all items whose name begins with prefix.
	List(prefix string) ([]string, error)
	// Level returns the protection level of the item under name. The level
	// is policy metadata, not a secret; reading it never triggers a prompt.
	Level(name string) (ProtectionLevel, error)
	// SupportsBiometricGating reports whether the store can enforce
	// BiometricGated protection.
	SupportsBiometricGating() bool
}
