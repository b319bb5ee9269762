package util

import (
	"bytes"
	"testing"
)

func TestRandomBytes(t *testing.T) {
	a, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	b, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Errorf("expected 32 bytes, got %d and %d", len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Error("two random draws should not be equal")
	}
}

func TestWipeBytes(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	WipeBytes(b)
	if !IsAllZero(b) {
		t.Error("WipeBytes left non-zero bytes")
	}
}

func TestCopyBytes(t *testing.T) {
	src := []byte("secret")
	dst := CopyBytes(src)
	if !bytes.Equal(src, dst) {
		t.Error("copy does not match source")
	}
	dst[0] = 'X'
	if src[0] == 'X' {
		t.Error("copy aliases source memory")
	}
}

func TestDeriveArgon2idKey(t *testing.T) {
	salt := []byte("0123456789abcdef")
	params := DefaultArgon2idParams()
	params.MemoryKiB = 8 * 1024 // keep the test fast

	k1, err := DeriveArgon2idKey("correct horse", salt, params)
	if err != nil {
		t.Fatalf("DeriveArgon2idKey failed: %v", err)
	}
	k2, err := DeriveArgon2idKey("correct horse", salt, params)
	if err != nil {
		t.Fatalf("DeriveArgon2idKey failed: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("derivation is not deterministic for equal inputs")
	}

	k3, err := DeriveArgon2idKey("correct horse", []byte("fedcba9876543210"), params)
	if err != nil {
		t.Fatalf("DeriveArgon2idKey failed: %v", err)
	}
	if bytes.Equal(k1, k3) {
		t.Error("different salts produced the same key")
	}

	if _, err := DeriveArgon2idKey("pw", nil, params); err == nil {
		t.Error("expected error for empty salt")
	}
}

func TestDerivePBKDF2Key(t *testing.T) {
	salt := []byte("0123456789abcdef")
	k1, err := DerivePBKDF2Key("hunter2hunter2", salt, 1000)
	if err != nil {
		t.Fatalf("DerivePBKDF2Key failed: %v", err)
	}
	k2, err := DerivePBKDF2Key("hunter2hunter2", salt, 1000)
	if err != nil {
		t.Fatalf("DerivePBKDF2Key failed: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("derivation is not deterministic for equal inputs")
	}
	if len(k1) != AESKeySize {
		t.Errorf("expected %d-byte key, got %d", AESKeySize, len(k1))
	}
}

func TestHexRoundTrip(t *testing.T) {
	b := []byte{0x00, 0xde, 0xad, 0xbe, 0xef}
	decoded, err := HexDecode(HexEncode(b))
	if err != nil {
		t.Fatalf("HexDecode failed: %v", err)
	}
	if !bytes.Equal(b, decoded) {
		t.Error("hex round trip does not match input")
	}
	if _, err := HexDecode("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestNormalize(t *testing.T) {
	// Precomposed U+00E9 and combining U+0065 U+0301 must normalize to the
	// same sequence.
	if Normalize("caf\u00e9") != Normalize("cafe\u0301") {
		t.Error("NFKD normalization did not unify equivalent sequences")
	}
}
