// Package keys owns the lifecycle of master, data, and export keys:
// generation, retrieval, versioned rotation, deletion, password-based
// derivation, biometric gating, and backup/restore of the whole keyset.
// Raw key bytes live in exactly one place, the secure credential store;
// callers receive copies scoped to a single operation and must wipe them.
package keys

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type represents the key type.
type Type int

const (
	// Master is the singleton per-installation key.
	Master Type = 0
	// Data keys are many, one per content identifier, versioned for
	// non-destructive rotation.
	Data Type = 1
	// Export keys are ephemeral: derived per export operation and never
	// persisted.
	Export Type = 2
)

// ErrUnknownType is returned when an unrecognized key type is encountered.
var ErrUnknownType = errors.New("unknown key type")

func (t Type) String() string {
	switch t {
	case Master:
		return "Master"
	case Data:
		return "Data"
	case Export:
		return "Export"
	default:
		return "Unknown"
	}
}

func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("unmarshaling key type: %w", err)
	}

	switch s {
	case "Master":
		*t = Master
	case "Data":
		*t = Data
	case "Export":
		*t = Export
	default:
		return ErrUnknownType
	}

	return nil
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}
