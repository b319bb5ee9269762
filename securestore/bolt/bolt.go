// Package bolt provides a bbolt-backed implementation of securestore.Store
// for installations without a platform credential service.
package bolt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voxsafe/voxsafe/internal/util"
	"github.com/voxsafe/voxsafe/securestore"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("secrets")

type storedItem struct {
	Secret []byte                      `json:"secret"`
	Level  securestore.ProtectionLevel `json:"level"`
}

// Store implements securestore.Store backed by a bbolt database.
type Store struct {
	db   *bbolt.DB
	auth securestore.Authenticator
}

var _ securestore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithAuthenticator installs the authenticator used for biometric-gated
// retrievals.
func WithAuthenticator(auth securestore.Authenticator) Option {
	return func(s *Store) {
		s.auth = auth
	}
}

// NewStore returns a Store backed by the given bbolt database.
func NewStore(db *bbolt.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating secrets bucket: %w", err)
	}
	return s, nil
}

// NewStoreFromFile opens a bbolt database at the given path and returns a
// new Store. The database file is created with owner-only permissions.
func NewStoreFromFile(path string, options *bbolt.Options, opts ...Option) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db, opts...)
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(name string, secret []byte, level securestore.ProtectionLevel) error {
	if level == securestore.BiometricGated && s.auth == nil {
		return fmt.Errorf("%s: biometric gating: %w", name, securestore.ErrUnavailable)
	}
	data, err := json.Marshal(&storedItem{Secret: secret, Level: level})
	if err != nil {
		return fmt.Errorf("marshaling item %s: %w", name, err)
	}
	defer util.WipeBytes(data)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(name), data)
	})
}

func (s *Store) Retrieve(name string) ([]byte, error) {
	var it storedItem
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketName).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%s: %w", name, securestore.ErrItemNotFound)
		}
		return json.Unmarshal(data, &it)
	})
	if err != nil {
		return nil, err
	}
	if it.Level == securestore.BiometricGated {
		if s.auth == nil {
			util.WipeBytes(it.Secret)
			return nil, fmt.Errorf("%s: biometric gating: %w", name, securestore.ErrUnavailable)
		}
		if err := s.auth("unlock " + name); err != nil {
			util.WipeBytes(it.Secret)
			return nil, fmt.Errorf("%s: %w", name, securestore.ErrAuthFailed)
		}
	}
	return it.Secret, nil
}

func (s *Store) Contains(name string) bool {
	found := false
	_ = s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketName).Get([]byte(name)) != nil
		return nil
	})
	return found
}

func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("%s: %w", name, securestore.ErrItemNotFound)
		}
		return b.Delete([]byte(name))
	})
}

func (s *Store) List(prefix string) ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, _ []byte) error {
			if strings.HasPrefix(string(k), prefix) {
				names = append(names, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return names, nil
}

func (s *Store) Level(name string) (securestore.ProtectionLevel, error) {
	var it storedItem
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketName).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%s: %w", name, securestore.ErrItemNotFound)
		}
		return json.Unmarshal(data, &it)
	})
	if err != nil {
		return securestore.Standard, err
	}
	util.WipeBytes(it.Secret)
	return it.Level, nil
}

func (s *Store) SupportsBiometricGating() bool {
	return s.auth != nil
}
