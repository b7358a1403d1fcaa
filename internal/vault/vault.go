// Package vault encrypts device-control tokens at rest with AES-256-GCM.
//
// A sealed blob is laid out as nonce (12 bytes) ‖ tag (16 bytes) ‖ ciphertext
// and is carried as standard base64 inside JSON documents. Every Seal draws a
// fresh random nonce.
//
// The key is 256 bits of crypto/rand output stored hex-encoded in a single
// file with mode 0600. There is no password-based derivation: file
// permissions are the only protection for the key.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	nonceSize = 12
	tagSize   = 16

	keyFilePermissions = 0600
	keyDirPermissions  = 0750
)

var (
	// ErrIntegrity is returned when a blob is malformed or fails authentication.
	// Callers treat the entry as unusable; it is never process-fatal.
	ErrIntegrity = errors.New("vault: ciphertext failed integrity check")

	// ErrInvalidKey is returned for keys that are not exactly KeySize bytes.
	ErrInvalidKey = errors.New("vault: key must be 32 bytes")
)

// Vault seals and opens secrets with a single process-wide key.
// A Vault is safe for concurrent use.
type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault from raw key bytes.
func New(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Seal encrypts plaintext and returns the base64 blob.
func (v *Vault) Seal(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: reading nonce: %w", err)
	}

	// GCM emits ciphertext ‖ tag; reorder to nonce ‖ tag ‖ ciphertext.
	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ctLen := len(sealed) - tagSize

	blob := make([]byte, 0, nonceSize+len(sealed))
	blob = append(blob, nonce...)
	blob = append(blob, sealed[ctLen:]...)
	blob = append(blob, sealed[:ctLen]...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Open decrypts a blob produced by Seal. Any decoding or authentication
// failure is reported as ErrIntegrity.
func (v *Vault) Open(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: bad encoding", ErrIntegrity)
	}
	if len(blob) < nonceSize+tagSize {
		return "", fmt.Errorf("%w: blob too short", ErrIntegrity)
	}

	nonce := blob[:nonceSize]
	tag := blob[nonceSize : nonceSize+tagSize]
	ct := blob[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plaintext), nil
}

// GenerateKey returns KeySize bytes from crypto/rand.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("vault: generating key: %w", err)
	}
	return key, nil
}

// LoadOrCreateKey reads the hex key at path, creating it on first use.
//
// Returns:
//   - key: the raw 32-byte key
//   - created: true when a new key was written
//   - error: if the file is unreadable, malformed, or cannot be written
func LoadOrCreateKey(path string) (key []byte, created bool, err error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		key, err = hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, false, fmt.Errorf("vault: decoding key file %s: %w", path, err)
		}
		if len(key) != KeySize {
			return nil, false, fmt.Errorf("vault: key file %s: %w", path, ErrInvalidKey)
		}
		return key, false, nil

	case errors.Is(err, fs.ErrNotExist):
		key, err = GenerateKey()
		if err != nil {
			return nil, false, err
		}
		if err := os.MkdirAll(filepath.Dir(path), keyDirPermissions); err != nil {
			return nil, false, fmt.Errorf("vault: creating key directory: %w", err)
		}
		// O_EXCL: never clobber a key another process wrote in the meantime.
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, keyFilePermissions)
		if err != nil {
			return nil, false, fmt.Errorf("vault: creating key file: %w", err)
		}
		if _, err := f.WriteString(hex.EncodeToString(key) + "\n"); err != nil {
			f.Close() //nolint:errcheck // already failing
			return nil, false, fmt.Errorf("vault: writing key file: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, false, fmt.Errorf("vault: closing key file: %w", err)
		}
		return key, true, nil

	default:
		return nil, false, fmt.Errorf("vault: reading key file %s: %w", path, err)
	}
}

// OpenFile loads (or creates) the key file and builds a Vault.
func OpenFile(path string) (*Vault, bool, error) {
	key, created, err := LoadOrCreateKey(path)
	if err != nil {
		return nil, false, err
	}
	v, err := New(key)
	if err != nil {
		return nil, false, err
	}
	return v, created, nil
}
