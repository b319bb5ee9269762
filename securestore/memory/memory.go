// Package memory provides a thread-safe in-memory implementation of
// securestore.Store. Suitable for testing, demos, and single-process use.
package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/voxsafe/voxsafe/internal/util"
	"github.com/voxsafe/voxsafe/securestore"
)

type item struct {
	secret []byte
	level  securestore.ProtectionLevel
}

// Store is a thread-safe in-memory implementation of securestore.Store.
type Store struct {
	mu    sync.RWMutex
	items map[string]item
	auth  securestore.Authenticator
}

var _ securestore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithAuthenticator installs the authenticator used for biometric-gated
// retrievals. Without one the store reports biometric gating as unsupported.
func WithAuthenticator(auth securestore.Authenticator) Option {
	return func(s *Store) {
		s.auth = auth
	}
}

// NewStore creates a new empty in-memory Store.
func NewStore(opts ...Option) *Store {
	s := &Store{items: make(map[string]item)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Save(name string, secret []byte, level securestore.ProtectionLevel) error {
	if level == securestore.BiometricGated && s.auth == nil {
		return fmt.Errorf("%s: biometric gating: %w", name, securestore.ErrUnavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[name] = item{secret: util.CopyBytes(secret), level: level}
	return nil
}

func (s *Store) Retrieve(name string) ([]byte, error) {
	s.mu.RLock()
	it, ok := s.items[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, securestore.ErrItemNotFound)
	}
	if it.level == securestore.BiometricGated {
		if s.auth == nil {
			return nil, fmt.Errorf("%s: biometric gating: %w", name, securestore.ErrUnavailable)
		}
		if err := s.auth("unlock " + name); err != nil {
			return nil, fmt.Errorf("%s: %w", name, securestore.ErrAuthFailed)
		}
	}
	return util.CopyBytes(it.secret), nil
}

func (s *Store) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[name]
	return ok
}

func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, securestore.ErrItemNotFound)
	}
	util.WipeBytes(it.secret)
	delete(s.items, name)
	return nil
}

func (s *Store) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for name := range s.items {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *Store) Level(name string) (securestore.ProtectionLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[name]
	if !ok {
		return securestore.Standard, fmt.Errorf("%s: %w", name, securestore.ErrItemNotFound)
	}
	return it.level, nil
}

func (s *Store) SupportsBiometricGating() bool {
	return s.auth != nil
}
