package export

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxsafe/voxsafe/crypto"
	"github.com/voxsafe/voxsafe/internal/util"
)

const strongPassword = "C0rrectHorseBattery"

func fastCodec(t *testing.T, opts ...CodecOption) *Codec {
	t.Helper()
	params := util.DefaultArgon2idParams()
	params.MemoryKiB = 8 * 1024
	return NewCodec(append([]CodecOption{WithKDFParams(params)}, opts...)...)
}

func testPayload(t *testing.T) crypto.EncryptedPayload {
	t.Helper()
	nonce, err := util.RandomBytes(12)
	require.NoError(t, err)
	tag, err := util.RandomBytes(16)
	require.NoError(t, err)
	ciphertext, err := util.RandomBytes(256)
	require.NoError(t, err)
	return crypto.EncryptedPayload{Ciphertext: ciphertext, Nonce: nonce, Tag: tag}
}

func TestPolicy_Validate(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"strong", "C0rrectHorse", true},
		{"too short", "Sh0rt", false},
		{"no digit", "NoDigitsHereAtAll", false},
		{"no uppercase", "alllowercase123", false},
		{"no lowercase", "ALLUPPERCASE123", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Validate(tc.password)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrPasswordTooWeak)
			}
		})
	}
}

func TestCodec_ExportImportRoundTrip(t *testing.T) {
	codec := fastCodec(t)
	payload := testPayload(t)

	exported, err := codec.Export(payload, "j-1_1700000000", strongPassword)
	require.NoError(t, err)

	got, keyID, err := codec.Import(exported, strongPassword)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, "j-1_1700000000", keyID)
}

func TestCodec_ImportWrongPassword(t *testing.T) {
	codec := fastCodec(t)
	exported, err := codec.Export(testPayload(t), "j-1", strongPassword)
	require.NoError(t, err)

	_, _, err = codec.Import(exported, "Wr0ngPassword99")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCodec_ExportWeakPassword(t *testing.T) {
	codec := fastCodec(t)
	_, err := codec.Export(testPayload(t), "j-1", "weak")
	assert.ErrorIs(t, err, ErrPasswordTooWeak)
}

func TestCodec_ExportInvalidPayload(t *testing.T) {
	codec := fastCodec(t)
	_, err := codec.Export(crypto.EncryptedPayload{}, "j-1", strongPassword)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestCodec_ImportRejectsStructuralMismatch(t *testing.T) {
	codec := fastCodec(t)

	t.Run("not json", func(t *testing.T) {
		_, _, err := codec.Import([]byte("garbage"), strongPassword)
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("wrong format", func(t *testing.T) {
		data, err := json.Marshal(map[string]any{
			"format": "SomethingElse", "version": 1, "salt": "", "data": "",
		})
		require.NoError(t, err)
		_, _, err = codec.Import(data, strongPassword)
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("unknown version", func(t *testing.T) {
		data, err := json.Marshal(map[string]any{
			"format": ContainerFormat, "version": 99, "salt": "", "data": "",
		})
		require.NoError(t, err)
		_, _, err = codec.Import(data, strongPassword)
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("unknown outer field", func(t *testing.T) {
		data, err := json.Marshal(map[string]any{
			"format": ContainerFormat, "version": 1, "salt": "", "data": "", "extra": true,
		})
		require.NoError(t, err)
		_, _, err = codec.Import(data, strongPassword)
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("tampered sealed data", func(t *testing.T) {
		exported, err := codec.Export(testPayload(t), "j-1", strongPassword)
		require.NoError(t, err)

		var c map[string]any
		require.NoError(t, json.Unmarshal(exported, &c))
		sealed, err := util.Base64Decode(c["data"].(string))
		require.NoError(t, err)
		sealed[len(sealed)/2] ^= 0x01
		c["data"] = util.Base64Encode(sealed)
		tampered, err := json.Marshal(c)
		require.NoError(t, err)

		_, _, err = codec.Import(tampered, strongPassword)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("inner envelope missing key identifier", func(t *testing.T) {
		inner, err := json.Marshal(map[string]any{
			"metadata": map[string]any{
				"version": 1, "exportId": "x", "keyIdentifier": "",
				"algorithm": crypto.AlgorithmAES256GCM, "timestamp": 1.0,
			},
			"payload": map[string]any{"nonce": "", "tag": "", "ciphertext": ""},
		})
		require.NoError(t, err)
		sealed, err := codec.EncryptWithPassword(inner, strongPassword)
		require.NoError(t, err)

		_, _, err = codec.Import(sealed, strongPassword)
		assert.ErrorIs(t, err, ErrInvalidData)
	})
}

func TestCodec_EncryptDecryptWithPassword(t *testing.T) {
	codec := fastCodec(t)
	secret := []byte("keyset backup contents")

	sealed, err := codec.EncryptWithPassword(secret, strongPassword)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "keyset")

	got, err := codec.DecryptWithPassword(sealed, strongPassword)
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	_, err = codec.DecryptWithPassword(sealed, "N0tThePassword!")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}
