package keyvault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generating key: %v", err)
	}
	v, err := New(key)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return v
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := newTestVault(t)

	secret := "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	enc, err := v.Encrypt(secret)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if enc == secret {
		t.Fatal("ciphertext equals plaintext")
	}

	dec, err := v.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if dec != secret {
		t.Errorf("Decrypt() = %q, want %q", dec, secret)
	}
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	v := newTestVault(t)

	a, err := v.Encrypt("same input")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	b, err := v.Encrypt("same input")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical ciphertexts")
	}
}

func TestDecryptRejectsTamperedInput(t *testing.T) {
	v := newTestVault(t)

	enc, err := v.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(enc)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := v.Decrypt(tampered); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Decrypt(tampered) error = %v, want ErrInvalidCiphertext", err)
	}

	if _, err := v.Decrypt("not base64!!"); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Decrypt(garbage) error = %v, want ErrInvalidCiphertext", err)
	}

	if _, err := v.Decrypt("c2hvcnQ="); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("Decrypt(short) error = %v, want ErrInvalidCiphertext", err)
	}
}

func TestNewRejectsBadKeySize(t *testing.T) {
	if _, err := New(make([]byte, 16)); err == nil {
		t.Error("New() accepted a 16-byte key")
	}
}

func TestResolveMasterKeyPrefersFile(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "encryption.key")

	fileKey := make([]byte, 32)
	fileKey[0] = 0x01
	if err := os.WriteFile(keyFile, []byte(base64.StdEncoding.EncodeToString(fileKey)+"\n"), 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}

	envKey := make([]byte, 32)
	envKey[0] = 0x02
	t.Setenv(EnvKeyName, base64.StdEncoding.EncodeToString(envKey))

	got, err := ResolveMasterKey(keyFile)
	if err != nil {
		t.Fatalf("ResolveMasterKey() error: %v", err)
	}
	if got[0] != 0x01 {
		t.Error("ResolveMasterKey() did not prefer the key file")
	}
}

func TestResolveMasterKeyEnvFallback(t *testing.T) {
	envKey := make([]byte, 32)
	envKey[0] = 0x02
	t.Setenv(EnvKeyName, base64.StdEncoding.EncodeToString(envKey))

	got, err := ResolveMasterKey(filepath.Join(t.TempDir(), "absent.key"))
	if err != nil {
		t.Fatalf("ResolveMasterKey() error: %v", err)
	}
	if got[0] != 0x02 {
		t.Error("ResolveMasterKey() did not fall back to the environment variable")
	}
}

func TestResolveMasterKeyFromFile(t *testing.T) {
	t.Setenv(EnvKeyName, "")

	dir := t.TempDir()
	keyFile := filepath.Join(dir, "encryption.key")

	enc, err := WriteKeyFile(keyFile)
	if err != nil {
		t.Fatalf("WriteKeyFile() error: %v", err)
	}
	if !strings.HasSuffix(enc, "=") && len(enc) == 0 {
		t.Fatal("WriteKeyFile() returned empty key")
	}

	got, err := ResolveMasterKey(keyFile)
	if err != nil {
		t.Fatalf("ResolveMasterKey() error: %v", err)
	}
	if len(got) != 32 {
		t.Errorf("master key length = %d, want 32", len(got))
	}

	// A second write must not clobber the existing key.
	if _, err := WriteKeyFile(keyFile); err == nil {
		t.Error("WriteKeyFile() overwrote an existing key file")
	}
}

func TestResolveMasterKeyMissing(t *testing.T) {
	t.Setenv(EnvKeyName, "")

	if _, err := ResolveMasterKey(filepath.Join(t.TempDir(), "absent.key")); !errors.Is(err, ErrNoMasterKey) {
		t.Errorf("ResolveMasterKey() error = %v, want ErrNoMasterKey", err)
	}
}

func TestValidateSetup(t *testing.T) {
	t.Setenv(EnvKeyName, "")

	dir := t.TempDir()
	keyFile := filepath.Join(dir, "encryption.key")
	if _, err := WriteKeyFile(keyFile); err != nil {
		t.Fatalf("WriteKeyFile() error: %v", err)
	}

	if err := ValidateSetup(keyFile); err != nil {
		t.Errorf("ValidateSetup() error: %v", err)
	}
	if err := ValidateSetup(filepath.Join(dir, "absent.key")); err == nil {
		t.Error("ValidateSetup() passed with no key material")
	}
}
