package keys

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/voxsafe/voxsafe/internal/util"
	"github.com/voxsafe/voxsafe/securestore"
)

const backupVersion = 1

type backupDataKey struct {
	Name       string                      `json:"name"`
	Key        []byte                      `json:"key"`
	Protection securestore.ProtectionLevel `json:"protection"`
}

type keysetBackup struct {
	Version          int                         `json:"version"`
	Timestamp        float64                     `json:"timestamp"`
	MasterKey        []byte                      `json:"masterKey"`
	MasterProtection securestore.ProtectionLevel `json:"masterProtection"`
	DataKeys         []backupDataKey             `json:"dataKeys"`
}

// Backup serializes the whole keyset (master key plus every data key
// version, with their protection levels) and wraps it in the
// password-protected export container. Retrieving biometric-gated keys may
// prompt once per gated item.
func (m *Manager) Backup(password string) (out []byte, err error) {
	defer func() { m.record("backup", Master, masterKeyName, err) }()

	if err = m.codec.Policy().Validate(password); err != nil {
		return nil, err
	}

	masterKey, err := m.MasterKey()
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(masterKey)

	masterLevel, err := m.store.Level(masterKeyName)
	if err != nil {
		return nil, mapStoreError(masterKeyName, err)
	}

	backup := keysetBackup{
		Version:          backupVersion,
		Timestamp:        float64(m.clock().UnixNano()) / float64(time.Second),
		MasterKey:        masterKey,
		MasterProtection: masterLevel,
	}

	names, err := m.store.List(dataKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing data keys: %v: %w", err, ErrRetrievalFailed)
	}
	for _, name := range names {
		rawKey, err := m.retrieve(name)
		if err != nil {
			return nil, err
		}
		level, err := m.store.Level(name)
		if err != nil {
			util.WipeBytes(rawKey)
			return nil, mapStoreError(name, err)
		}
		backup.DataKeys = append(backup.DataKeys, backupDataKey{
			Name:       strings.TrimPrefix(name, dataKeyPrefix),
			Key:        rawKey,
			Protection: level,
		})
	}
	defer func() {
		for i := range backup.DataKeys {
			util.WipeBytes(backup.DataKeys[i].Key)
		}
	}()

	plaintext, err := json.Marshal(&backup)
	if err != nil {
		return nil, fmt.Errorf("marshaling keyset backup: %w", err)
	}
	defer util.WipeBytes(plaintext)

	return m.codec.EncryptWithPassword(plaintext, password)
}

// Restore decrypts a backup and writes every key it contains into the
// store, replacing same-named entries. The backup is validated completely
// before the first write: a structurally invalid backup restores nothing.
func (m *Manager) Restore(backupData []byte, password string) (err error) {
	defer func() { m.record("restore", Master, masterKeyName, err) }()

	plaintext, err := m.codec.DecryptWithPassword(backupData, password)
	if err != nil {
		return err
	}
	defer util.WipeBytes(plaintext)

	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.DisallowUnknownFields()
	var backup keysetBackup
	if err := dec.Decode(&backup); err != nil {
		return fmt.Errorf("parsing keyset backup: %w", ErrInvalidKeyData)
	}
	if err := validateBackup(&backup); err != nil {
		return err
	}

	needsBiometry := backup.MasterProtection == securestore.BiometricGated
	for _, dk := range backup.DataKeys {
		if dk.Protection == securestore.BiometricGated {
			needsBiometry = true
		}
	}
	if needsBiometry && !m.store.SupportsBiometricGating() {
		return ErrBiometryUnavailable
	}

	if err := m.store.Save(masterKeyName, backup.MasterKey, backup.MasterProtection); err != nil {
		return fmt.Errorf("%s: %v: %w", masterKeyName, err, ErrStorageFailed)
	}
	for _, dk := range backup.DataKeys {
		if err := m.store.Save(dataKeyStoreName(dk.Name), dk.Key, dk.Protection); err != nil {
			return fmt.Errorf("%s: %v: %w", dk.Name, err, ErrStorageFailed)
		}
	}
	return nil
}

func validateBackup(backup *keysetBackup) error {
	if backup.Version != backupVersion {
		return fmt.Errorf("backup version %d: %w", backup.Version, ErrInvalidKeyData)
	}
	if len(backup.MasterKey) != util.AESKeySize {
		return fmt.Errorf("master key must be %d bytes, got %d: %w", util.AESKeySize, len(backup.MasterKey), ErrInvalidKeyData)
	}
	if util.IsAllZero(backup.MasterKey) {
		return fmt.Errorf("master key is all zero: %w", ErrInvalidKeyData)
	}
	seen := make(map[string]struct{}, len(backup.DataKeys))
	for _, dk := range backup.DataKeys {
		if dk.Name == "" {
			return fmt.Errorf("data key with empty name: %w", ErrInvalidKeyData)
		}
		if _, ok := versionTimestamp(dk.Name); !ok {
			return fmt.Errorf("%s: not a versioned name: %w", dk.Name, ErrInvalidKeyData)
		}
		if len(dk.Key) != util.AESKeySize {
			return fmt.Errorf("%s: key must be %d bytes, got %d: %w", dk.Name, util.AESKeySize, len(dk.Key), ErrInvalidKeyData)
		}
		if _, dup := seen[dk.Name]; dup {
			return fmt.Errorf("%s: duplicate data key: %w", dk.Name, ErrInvalidKeyData)
		}
		seen[dk.Name] = struct{}{}
	}
	return nil
}
