package keys

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/voxsafe/voxsafe/audit"
	"github.com/voxsafe/voxsafe/export"
	"github.com/voxsafe/voxsafe/internal/util"
	"github.com/voxsafe/voxsafe/securestore"
	"golang.org/x/sync/singleflight"
)

const (
	masterKeyName = "master"
	dataKeyPrefix = "data:"
)

// Manager owns the key lifecycle against a single secure credential store.
// It is safe for concurrent use: mutations of a given identifier are
// serialized, and concurrent retrievals of the same item collapse into one
// store call (one biometric prompt).
type Manager struct {
	store     securestore.Store
	codec     *export.Codec
	clock     func() time.Time
	sink      audit.Sink
	policy    *export.Policy
	kdfParams util.Argon2idParams

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	group singleflight.Group
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source used for data key versioning.
func WithClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithAuditSink installs a sink for key lifecycle events.
func WithAuditSink(sink audit.Sink) ManagerOption {
	return func(m *Manager) {
		m.sink = sink
	}
}

// WithPasswordPolicy enforces a password policy on DeriveFromPassword,
// Backup, and Restore before any derivation work.
func WithPasswordPolicy(policy export.Policy) ManagerOption {
	return func(m *Manager) {
		p := policy
		m.policy = &p
	}
}

// WithKDFParams overrides the Argon2id parameters used for password-based
// derivation.
func WithKDFParams(params util.Argon2idParams) ManagerOption {
	return func(m *Manager) {
		m.kdfParams = params
	}
}

// WithExportCodec sets the codec used to protect keyset backups.
func WithExportCodec(codec *export.Codec) ManagerOption {
	return func(m *Manager) {
		m.codec = codec
	}
}

// NewManager creates a Manager over the given store.
func NewManager(store securestore.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		clock:     time.Now,
		sink:      audit.NopSink{},
		kdfParams: util.DefaultArgon2idParams(),
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.codec == nil {
		codecOpts := []export.CodecOption{export.WithKDFParams(m.kdfParams)}
		if m.policy != nil {
			codecOpts = append(codecOpts, export.WithPolicy(*m.policy))
		}
		m.codec = export.NewCodec(codecOpts...)
	}
	return m
}

// identifierLock returns the mutex serializing mutations of one identifier.
func (m *Manager) identifierLock(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

func (m *Manager) record(op string, t Type, identifier string, err error) {
	event := audit.Event{
		Time:       m.clock(),
		Operation:  op,
		KeyType:    t.String(),
		Identifier: identifier,
		Outcome:    audit.OutcomeSuccess,
	}
	if err != nil {
		event.Outcome = audit.OutcomeFailure
		event.Detail = err.Error()
	}
	m.sink.Record(event)
}

// retrieve reads an item through singleflight so concurrent callers share
// one store call. Every caller receives its own copy.
func (m *Manager) retrieve(name string) ([]byte, error) {
	v, err, _ := m.group.Do(name, func() (any, error) {
		return m.store.Retrieve(name)
	})
	m.group.Forget(name)
	if err != nil {
		return nil, mapStoreError(name, err)
	}
	return util.CopyBytes(v.([]byte)), nil
}

func mapStoreError(name string, err error) error {
	switch {
	case errors.Is(err, securestore.ErrItemNotFound):
		return fmt.Errorf("%s: %w", name, ErrKeyNotFound)
	case errors.Is(err, securestore.ErrAuthFailed):
		return fmt.Errorf("%s: %w", name, ErrAuthenticationFailed)
	default:
		return fmt.Errorf("%s: %v: %w", name, err, ErrRetrievalFailed)
	}
}

func (m *Manager) protectionLevel(biometricGated bool) securestore.ProtectionLevel {
	if biometricGated {
		return securestore.BiometricGated
	}
	return securestore.Standard
}

func (m *Manager) checkBiometry(biometricGated bool) error {
	if biometricGated && !m.store.SupportsBiometricGating() {
		return ErrBiometryUnavailable
	}
	return nil
}

// GenerateMasterKey generates and stores the installation's master key.
// Calling it when a master key already exists overwrites the key; callers
// must decide explicitly whether that is desired.
func (m *Manager) GenerateMasterKey(biometricGated bool) (err error) {
	defer func() { m.record("generate", Master, masterKeyName, err) }()

	if err = m.checkBiometry(biometricGated); err != nil {
		return err
	}

	lock := m.identifierLock(masterKeyName)
	lock.Lock()
	defer lock.Unlock()

	rawKey, err := util.NewAESKey()
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrGenerationFailed)
	}
	defer util.WipeBytes(rawKey)

	if err = m.store.Save(masterKeyName, rawKey, m.protectionLevel(biometricGated)); err != nil {
		return fmt.Errorf("%s: %v: %w", masterKeyName, err, ErrStorageFailed)
	}
	return nil
}

// MasterKey returns a copy of the master key. The caller must wipe it after
// use.
func (m *Manager) MasterKey() ([]byte, error) {
	return m.retrieve(masterKeyName)
}

// HasMasterKey reports whether a master key has been generated.
func (m *Manager) HasMasterKey() bool {
	return m.store.Contains(masterKeyName)
}

// dataKeyStoreName builds the store name for a versioned data key.
func dataKeyStoreName(versioned string) string {
	return dataKeyPrefix + versioned
}

func (m *Manager) newVersionedName(identifier string) string {
	return identifier + "_" + strconv.FormatInt(m.clock().UnixNano(), 10)
}

// GenerateDataKey creates a new versioned key for the given logical
// identifier and returns a copy of its raw bytes.
func (m *Manager) GenerateDataKey(identifier string, biometricGated bool) (rawKey []byte, err error) {
	defer func() { m.record("generate", Data, identifier, err) }()

	if identifier == "" {
		return nil, fmt.Errorf("empty identifier: %w", ErrInvalidKeyData)
	}
	if err = m.checkBiometry(biometricGated); err != nil {
		return nil, err
	}

	lock := m.identifierLock(identifier)
	lock.Lock()
	defer lock.Unlock()

	return m.generateDataKeyLocked(identifier, biometricGated)
}

func (m *Manager) generateDataKeyLocked(identifier string, biometricGated bool) ([]byte, error) {
	versioned := m.newVersionedName(identifier)
	for m.store.Contains(dataKeyStoreName(versioned)) {
		versioned = m.newVersionedName(identifier)
	}

	rawKey, err := util.NewAESKey()
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrGenerationFailed)
	}

	if err := m.store.Save(dataKeyStoreName(versioned), rawKey, m.protectionLevel(biometricGated)); err != nil {
		util.WipeBytes(rawKey)
		return nil, fmt.Errorf("%s: %v: %w", versioned, err, ErrStorageFailed)
	}
	return rawKey, nil
}

// LatestDataKeyVersion returns the newest versioned name
// (identifier_timestamp) for a logical identifier.
func (m *Manager) LatestDataKeyVersion(identifier string) (string, error) {
	prefix := dataKeyPrefix + identifier + "_"
	names, err := m.store.List(prefix)
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", identifier, err, ErrRetrievalFailed)
	}

	best := ""
	bestStamp := int64(-1)
	for _, name := range names {
		stamp, ok := versionStamp(name, prefix)
		if !ok {
			continue
		}
		if stamp > bestStamp {
			best, bestStamp = strings.TrimPrefix(name, dataKeyPrefix), stamp
		}
	}
	if best == "" {
		return "", fmt.Errorf("%s: %w", identifier, ErrKeyNotFound)
	}
	return best, nil
}

// versionStamp parses the timestamp of a versioned store name under the
// given identifier prefix. The entire remainder after the prefix must be
// digits, so an identifier that is an underscore-prefix of another ("j"
// next to "j_2") never claims its neighbor's versions.
func versionStamp(name, prefix string) (int64, bool) {
	rest := strings.TrimPrefix(name, prefix)
	if rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	stamp, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return stamp, true
}

// versionTimestamp extracts the timestamp suffix of a full versioned name
// where the identifier is not known separately, as in backup entries. Only
// the suffix after the last underscore is parsed.
func versionTimestamp(versioned string) (int64, bool) {
	idx := strings.LastIndex(versioned, "_")
	if idx < 0 {
		return 0, false
	}
	stamp, err := strconv.ParseInt(versioned[idx+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return stamp, true
}

// DataKey returns a copy of the latest key version for a logical
// identifier.
func (m *Manager) DataKey(identifier string) ([]byte, error) {
	versioned, err := m.LatestDataKeyVersion(identifier)
	if err != nil {
		return nil, err
	}
	return m.retrieve(dataKeyStoreName(versioned))
}

// DataKeyVersion returns a copy of an exact key version by its full
// versioned name, as needed to decrypt content encrypted under a
// rotated-out key.
func (m *Manager) DataKeyVersion(versioned string) ([]byte, error) {
	return m.retrieve(dataKeyStoreName(versioned))
}

// Key resolves an identifier for the cipher engine: an exact versioned name
// first, then the latest version of a logical identifier, then the master
// key name.
func (m *Manager) Key(identifier string) ([]byte, error) {
	if identifier == masterKeyName {
		return m.MasterKey()
	}
	if m.store.Contains(dataKeyStoreName(identifier)) {
		return m.retrieve(dataKeyStoreName(identifier))
	}
	return m.DataKey(identifier)
}

// Rotate replaces the key for the given type and identifier. The existing
// key is retrieved first, so rotation of a missing or locked-out key fails
// without generating anything. Master rotation overwrites the single entry;
// data rotation retains every prior version so historical content remains
// decryptable. Concurrent rotations of one identifier serialize.
func (m *Manager) Rotate(t Type, identifier string, biometricGated bool) (rawKey []byte, err error) {
	defer func() { m.record("rotate", t, identifier, err) }()

	if err = m.checkBiometry(biometricGated); err != nil {
		return nil, err
	}

	switch t {
	case Master:
		return m.rotateMaster(biometricGated)
	case Data:
		return m.rotateData(identifier, biometricGated)
	default:
		return nil, fmt.Errorf("%s keys are ephemeral and cannot rotate: %w", t, ErrRotationFailed)
	}
}

func (m *Manager) rotateMaster(biometricGated bool) ([]byte, error) {
	lock := m.identifierLock(masterKeyName)
	lock.Lock()
	defer lock.Unlock()

	old, err := m.retrieve(masterKeyName)
	if err != nil {
		return nil, err
	}
	util.WipeBytes(old)

	rawKey, err := util.NewAESKey()
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrGenerationFailed)
	}

	// Overwriting the single master entry replaces the old key in place.
	if err := m.store.Save(masterKeyName, rawKey, m.protectionLevel(biometricGated)); err != nil {
		util.WipeBytes(rawKey)
		return nil, fmt.Errorf("%s: %v: %w", masterKeyName, err, ErrStorageFailed)
	}
	return rawKey, nil
}

func (m *Manager) rotateData(identifier string, biometricGated bool) ([]byte, error) {
	lock := m.identifierLock(identifier)
	lock.Lock()
	defer lock.Unlock()

	old, err := m.DataKey(identifier)
	if err != nil {
		return nil, err
	}
	util.WipeBytes(old)

	return m.generateDataKeyLocked(identifier, biometricGated)
}

// Delete removes a key unrecoverably. For data keys every version is
// removed, destroying the ability to decrypt the identifier's content.
func (m *Manager) Delete(t Type, identifier string) (err error) {
	defer func() { m.record("delete", t, identifier, err) }()

	switch t {
	case Master:
		lock := m.identifierLock(masterKeyName)
		lock.Lock()
		defer lock.Unlock()
		if err := m.store.Delete(masterKeyName); err != nil {
			return mapStoreError(masterKeyName, err)
		}
		return nil
	case Data:
		lock := m.identifierLock(identifier)
		lock.Lock()
		defer lock.Unlock()
		prefix := dataKeyPrefix + identifier + "_"
		names, err := m.store.List(prefix)
		if err != nil {
			return fmt.Errorf("%s: %v: %w", identifier, err, ErrRetrievalFailed)
		}
		// Only this identifier's versions. A neighbor like "j_2" shares the
		// "j_" prefix but its names never end in a bare timestamp here.
		var versions []string
		for _, name := range names {
			if _, ok := versionStamp(name, prefix); ok {
				versions = append(versions, name)
			}
		}
		if len(versions) == 0 {
			return fmt.Errorf("%s: %w", identifier, ErrKeyNotFound)
		}
		for _, name := range versions {
			if err := m.store.Delete(name); err != nil {
				return mapStoreError(name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%s keys are never persisted: %w", t, ErrKeyNotFound)
	}
}

// EnableBiometricProtection re-saves an existing key under biometric
// gating. The current key must be retrievable first, so enabling while
// locked out fails rather than silently changing policy. For data keys the
// latest version is re-protected.
func (m *Manager) EnableBiometricProtection(t Type, identifier string) error {
	return m.setProtection(t, identifier, securestore.BiometricGated)
}

// DisableBiometricProtection re-saves an existing key without biometric
// gating. Retrieval of the current key is required, so stripping protection
// while locked out fails with ErrAuthenticationFailed.
func (m *Manager) DisableBiometricProtection(t Type, identifier string) error {
	return m.setProtection(t, identifier, securestore.Standard)
}

func (m *Manager) setProtection(t Type, identifier string, level securestore.ProtectionLevel) (err error) {
	defer func() { m.record("set-protection:"+level.String(), t, identifier, err) }()

	if level == securestore.BiometricGated && !m.store.SupportsBiometricGating() {
		return ErrBiometryUnavailable
	}

	var name string
	switch t {
	case Master:
		name = masterKeyName
	case Data:
		versioned, err := m.LatestDataKeyVersion(identifier)
		if err != nil {
			return err
		}
		name = dataKeyStoreName(versioned)
	default:
		return fmt.Errorf("%s keys are never persisted: %w", t, ErrKeyNotFound)
	}

	lockName := identifier
	if t == Master {
		lockName = masterKeyName
	}
	lock := m.identifierLock(lockName)
	lock.Lock()
	defer lock.Unlock()

	rawKey, err := m.retrieve(name)
	if err != nil {
		return err
	}
	defer util.WipeBytes(rawKey)

	if err := m.store.Save(name, rawKey, level); err != nil {
		return fmt.Errorf("%s: %v: %w", name, err, ErrStorageFailed)
	}
	return nil
}
