package crypto

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxsafe/voxsafe/internal/util"
)

func timeNow() time.Time {
	return time.Unix(1700000000, 0)
}

func toUpperHex(s string) string {
	return strings.ToUpper(s)
}

// mapProvider is a fixed in-memory KeyProvider for unit tests.
type mapProvider map[string][]byte

func (p mapProvider) Key(identifier string) ([]byte, error) {
	k, ok := p[identifier]
	if !ok {
		return nil, fmt.Errorf("no key %q", identifier)
	}
	return util.CopyBytes(k), nil
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, mapProvider) {
	t.Helper()
	key, err := util.NewAESKey()
	require.NoError(t, err)
	provider := mapProvider{"k-1": key}
	e, err := NewEngine(provider, opts...)
	require.NoError(t, err)
	return e, provider
}

func TestEngine_RoundTrip(t *testing.T) {
	for _, algorithm := range []string{AlgorithmAES256GCM, AlgorithmChaCha20Poly1305} {
		t.Run(algorithm, func(t *testing.T) {
			e, _ := newTestEngine(t, WithAlgorithm(algorithm))

			plaintext := []byte("the quick brown fox")
			payload, err := e.Encrypt(plaintext, "k-1")
			require.NoError(t, err)
			assert.Len(t, payload.Nonce, 12)
			assert.Len(t, payload.Tag, 16)
			assert.NotEqual(t, plaintext, payload.Ciphertext)

			decrypted, err := e.Decrypt(payload, "k-1")
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)
		})
	}
}

func TestEngine_EmptyPlaintext(t *testing.T) {
	e, _ := newTestEngine(t)
	payload, err := e.Encrypt(nil, "k-1")
	require.NoError(t, err)
	decrypted, err := e.Decrypt(payload, "k-1")
	require.NoError(t, err)
	assert.Empty(t, decrypted)
}

func TestEngine_TamperDetection(t *testing.T) {
	e, _ := newTestEngine(t)
	payload, err := e.Encrypt([]byte("journal entry audio bytes"), "k-1")
	require.NoError(t, err)

	// Any single-byte mutation of ciphertext, tag, or nonce must fail.
	mutate := func(p EncryptedPayload, field string, i int) EncryptedPayload {
		out := EncryptedPayload{
			Ciphertext: util.CopyBytes(p.Ciphertext),
			Nonce:      util.CopyBytes(p.Nonce),
			Tag:        util.CopyBytes(p.Tag),
		}
		switch field {
		case "ciphertext":
			out.Ciphertext[i] ^= 0x01
		case "tag":
			out.Tag[i] ^= 0x01
		case "nonce":
			out.Nonce[i] ^= 0x01
		}
		return out
	}

	for i := range payload.Ciphertext {
		_, err := e.Decrypt(mutate(payload, "ciphertext", i), "k-1")
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	}
	for i := range payload.Tag {
		_, err := e.Decrypt(mutate(payload, "tag", i), "k-1")
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	}
	for i := range payload.Nonce {
		_, err := e.Decrypt(mutate(payload, "nonce", i), "k-1")
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	}
}

func TestEngine_WrongKey(t *testing.T) {
	e, provider := newTestEngine(t)
	other, err := util.NewAESKey()
	require.NoError(t, err)
	provider["k-2"] = other

	payload, err := e.Encrypt([]byte("secret"), "k-1")
	require.NoError(t, err)

	_, err = e.Decrypt(payload, "k-2")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEngine_KeyRetrievalFailure(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Encrypt([]byte("x"), "missing")
	assert.ErrorIs(t, err, ErrKeyRetrievalFailed)
}

func TestEngine_NoncesAreUnique(t *testing.T) {
	e, _ := newTestEngine(t)
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		payload, err := e.Encrypt([]byte("x"), "k-1")
		require.NoError(t, err)
		key := string(payload.Nonce)
		_, dup := seen[key]
		require.False(t, dup, "nonce reused at iteration %d", i)
		seen[key] = struct{}{}
	}
}

func TestEngine_NonceGuardTracksKeyContent(t *testing.T) {
	e, provider := newTestEngine(t)
	// The same key reached through a second name must share one nonce set.
	provider["k-1_1700000000"] = util.CopyBytes(provider["k-1"])

	_, err := e.Encrypt([]byte("a"), "k-1")
	require.NoError(t, err)
	_, err = e.Encrypt([]byte("b"), "k-1_1700000000")
	require.NoError(t, err)

	e.guard.mu.Lock()
	defer e.guard.mu.Unlock()
	assert.Len(t, e.guard.seen, 1)
	for _, nonces := range e.guard.seen {
		assert.Len(t, nonces, 2)
	}
}

func TestNonceGuard_RejectsRepeat(t *testing.T) {
	g := newNonceGuard()
	nonce := make([]byte, util.NonceSize)
	assert.True(t, g.register("k", nonce))
	assert.False(t, g.register("k", nonce))
	// Same nonce under a different key is fine.
	assert.True(t, g.register("k2", nonce))
}

func TestNewEngine_RejectsUnknownAlgorithm(t *testing.T) {
	_, err := NewEngine(mapProvider{}, WithAlgorithm("ROT13"))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestContainer_RoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	payload, err := e.Encrypt([]byte("hello"), "k-1")
	require.NoError(t, err)

	c, err := NewContainer(payload, AlgorithmAES256GCM, "k-1_1700000000", timeNow())
	require.NoError(t, err)
	encoded, err := c.Encode()
	require.NoError(t, err)

	decoded, err := DecodeContainer(encoded)
	require.NoError(t, err)
	assert.Equal(t, "k-1_1700000000", decoded.KeyIdentifier)
	assert.Equal(t, AlgorithmAES256GCM, decoded.Algorithm)

	got, err := decoded.Payload()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDecodeContainer_Rejections(t *testing.T) {
	cases := []struct {
		name string
		data string
		want error
	}{
		{"not json", "nope", ErrInvalidData},
		{"unknown version", `{"version":9,"algorithm":"AES-256-GCM","timestamp":1,"iv":"","authTag":"","encryptedData":""}`, ErrInvalidData},
		{"unknown algorithm", `{"version":1,"algorithm":"DES","timestamp":1,"iv":"","authTag":"","encryptedData":""}`, ErrUnsupportedAlgorithm},
		{"unknown field", `{"version":1,"algorithm":"AES-256-GCM","timestamp":1,"iv":"","authTag":"","encryptedData":"","extra":true}`, ErrInvalidData},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeContainer([]byte(tc.data))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEngine_FileRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "entry.raw")
	enc := filepath.Join(dir, "entry.vox")
	out := filepath.Join(dir, "entry.out")

	data, err := util.RandomBytes(10 * 1024)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(src, data, 0600))

	require.NoError(t, e.EncryptFile(src, enc, "k-1"))
	require.NoError(t, e.DecryptFile(enc, out))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

// versionedProvider resolves logical identifiers to versioned names.
type versionedProvider struct {
	mapProvider
	latest map[string]string
}

func (p versionedProvider) LatestDataKeyVersion(identifier string) (string, error) {
	v, ok := p.latest[identifier]
	if !ok {
		return "", fmt.Errorf("no versions for %q", identifier)
	}
	return v, nil
}

func TestEngine_FileRecordsKeyActuallyUsed(t *testing.T) {
	keyA, err := util.NewAESKey()
	require.NoError(t, err)
	keyB, err := util.NewAESKey()
	require.NoError(t, err)
	// The logical name deliberately resolves to a different key than the
	// versioned name; the container must name the key the file was sealed
	// under.
	p := versionedProvider{
		mapProvider: mapProvider{"j": keyB, "j_100": keyA},
		latest:      map[string]string{"j": "j_100"},
	}
	e, err := NewEngine(p)
	require.NoError(t, err)

	dir := t.TempDir()
	src := filepath.Join(dir, "entry.raw")
	enc := filepath.Join(dir, "entry.vox")
	out := filepath.Join(dir, "entry.out")
	require.NoError(t, os.WriteFile(src, []byte("audio"), 0600))

	require.NoError(t, e.EncryptFile(src, enc, "j"))

	encoded, err := os.ReadFile(enc)
	require.NoError(t, err)
	c, err := DecodeContainer(encoded)
	require.NoError(t, err)
	assert.Equal(t, "j_100", c.KeyIdentifier)

	require.NoError(t, e.DecryptFile(enc, out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), got)
}

func TestEngine_FileErrors(t *testing.T) {
	e, _ := newTestEngine(t)
	dir := t.TempDir()

	err := e.EncryptFile(filepath.Join(dir, "missing"), filepath.Join(dir, "out"), "k-1")
	assert.ErrorIs(t, err, ErrFileOperationFailed)

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("not a container"), 0600))
	err = e.DecryptFile(garbage, filepath.Join(dir, "out"))
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestVerifyIntegrity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0600))

	sum, err := Checksum(path)
	require.NoError(t, err)

	ok, err := VerifyIntegrity(path, sum)
	require.NoError(t, err)
	assert.True(t, ok)

	// Case-insensitive comparison.
	ok, err = VerifyIntegrity(path, toUpperHex(sum))
	require.NoError(t, err)
	assert.True(t, ok)

	// A mismatch is an answer, not an error.
	wrong := make([]byte, 32)
	ok, err = VerifyIntegrity(path, hex.EncodeToString(wrong))
	require.NoError(t, err)
	assert.False(t, ok)

	// Malformed expected value.
	_, err = VerifyIntegrity(path, "zzzz")
	assert.ErrorIs(t, err, ErrChecksumFailed)

	// Unreadable file.
	_, err = VerifyIntegrity(filepath.Join(dir, "missing"), sum)
	assert.ErrorIs(t, err, ErrFileOperationFailed)
}
