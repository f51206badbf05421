// Package keyvault encrypts account private keys at rest using AES-256-GCM.
//
// The master key is resolved from the ARENA_ENCRYPTION_KEY environment
// variable first, then from the configured key file. Ciphertexts are encoded
// as base64(nonce || sealed) so they can be stored in text columns.
package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
)

// EnvKeyName is the environment variable holding the base64 master key.
const EnvKeyName = "ARENA_ENCRYPTION_KEY"

const masterKeySize = 32 // AES-256

var (
	// ErrNoMasterKey is returned when neither the environment variable nor
	// the key file yields a usable master key.
	ErrNoMasterKey = errors.New("keyvault: no master key configured")

	// ErrInvalidCiphertext is returned for malformed or tampered input.
	ErrInvalidCiphertext = errors.New("keyvault: invalid ciphertext")
)

// Vault seals and opens secrets with a fixed master key.
type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault from a raw 32-byte master key.
func New(key []byte) (*Vault, error) {
	if len(key) != masterKeySize {
		return nil, fmt.Errorf("keyvault: master key must be %d bytes, got %d", masterKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keyvault: creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keyvault: creating GCM: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Open resolves the master key from the key file or the environment and
// builds a Vault. keyFile may be empty, in which case only the environment
// variable is consulted.
func Open(keyFile string) (*Vault, error) {
	key, err := ResolveMasterKey(keyFile)
	if err != nil {
		return nil, err
	}
	return New(key)
}

// ResolveMasterKey returns the decoded master key. The key file takes
// precedence; the ARENA_ENCRYPTION_KEY environment variable is the
// fallback when the file is absent.
func ResolveMasterKey(keyFile string) ([]byte, error) {
	if keyFile != "" {
		data, err := os.ReadFile(keyFile)
		switch {
		case err == nil:
			key, derr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
			if derr != nil {
				return nil, fmt.Errorf("keyvault: decoding key file: %w", derr)
			}
			return key, nil
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("keyvault: reading key file: %w", err)
		}
	}
	if enc := strings.TrimSpace(os.Getenv(EnvKeyName)); enc != "" {
		key, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("keyvault: decoding %s: %w", EnvKeyName, err)
		}
		return key, nil
	}
	return nil, ErrNoMasterKey
}

// GenerateKey creates a fresh random master key and returns its base64
// encoding, suitable for the key file or the environment variable.
func GenerateKey() (string, error) {
	key := make([]byte, masterKeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("keyvault: generating key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// WriteKeyFile generates a master key and writes it to path with 0600
// permissions. It refuses to overwrite an existing file.
func WriteKeyFile(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("keyvault: key file %s already exists", path)
	}
	enc, err := GenerateKey()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(enc+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("keyvault: writing key file: %w", err)
	}
	return enc, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("keyvault: generating nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered or truncated input returns
// ErrInvalidCiphertext.
func (v *Vault) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	ns := v.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrInvalidCiphertext
	}
	plaintext, err := v.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

// ValidateSetup checks that a master key is resolvable and usable for a
// round trip. Called at startup so misconfiguration fails fast.
func ValidateSetup(keyFile string) error {
	v, err := Open(keyFile)
	if err != nil {
		return err
	}
	const probe = "arena-keyvault-probe"
	enc, err := v.Encrypt(probe)
	if err != nil {
		return err
	}
	dec, err := v.Decrypt(enc)
	if err != nil {
		return err
	}
	if dec != probe {
		return errors.New("keyvault: round trip mismatch")
	}
	return nil
}
