package bolt

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxsafe/voxsafe/securestore"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.db")
	s, err := NewStoreFromFile(path, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveRetrieveDelete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save("master", []byte("key-bytes"), securestore.Standard))
	assert.True(t, s.Contains("master"))

	got, err := s.Retrieve("master")
	require.NoError(t, err)
	assert.Equal(t, []byte("key-bytes"), got)

	require.NoError(t, s.Delete("master"))
	assert.False(t, s.Contains("master"))
	_, err = s.Retrieve("master")
	assert.ErrorIs(t, err, securestore.ErrItemNotFound)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.db")

	s, err := NewStoreFromFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save("master", []byte("key-bytes"), securestore.WhenUnlocked))
	require.NoError(t, s.Close())

	s2, err := NewStoreFromFile(path, nil)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Retrieve("master")
	require.NoError(t, err)
	assert.Equal(t, []byte("key-bytes"), got)
}

func TestStore_List(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save("data:j-1_100", []byte("a"), securestore.Standard))
	require.NoError(t, s.Save("data:j-1_200", []byte("b"), securestore.Standard))
	require.NoError(t, s.Save("master", []byte("m"), securestore.Standard))

	names, err := s.List("data:j-1_")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"data:j-1_100", "data:j-1_200"}, names)
}

func TestStore_BiometricGating(t *testing.T) {
	t.Run("unsupported without authenticator", func(t *testing.T) {
		s := newTestStore(t)
		assert.False(t, s.SupportsBiometricGating())
		err := s.Save("k", []byte("v"), securestore.BiometricGated)
		assert.ErrorIs(t, err, securestore.ErrUnavailable)
	})

	t.Run("prompt declined", func(t *testing.T) {
		s := newTestStore(t, WithAuthenticator(func(string) error { return errors.New("declined") }))
		require.NoError(t, s.Save("k", []byte("v"), securestore.BiometricGated))
		_, err := s.Retrieve("k")
		assert.ErrorIs(t, err, securestore.ErrAuthFailed)
	})
}
