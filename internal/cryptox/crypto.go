// Package cryptox implements the envelope-encryption primitives used by the
// document vault: per-document data keys, AES-256-GCM sealing with a detached
// tag, and wrapping of data keys under versioned master keys.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/careconnect/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the size of data keys and master keys (AES-256).
	KeySize = 32
	// NonceSize is the GCM standard 96-bit IV size.
	NonceSize = 12
	// TagSize is the GCM 128-bit authentication tag size.
	TagSize = 16
)

// ErrKeySize is returned when a key is not exactly KeySize bytes long.
var ErrKeySize = errors.New("key must be 32 bytes")

// Sealed is the output of Encrypt: ciphertext, IV and tag kept apart so they
// can be stored in separate columns.
type Sealed struct {
	Ciphertext []byte
	IV         []byte
	Tag        []byte
}

// GenerateDataKey returns a fresh 256-bit key from crypto/rand.
func GenerateDataKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate data key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext with AES-256-GCM under key.
//
// A new random 12-byte IV is drawn for every call, so the same key can be used
// for several messages without IV reuse. The GCM output is split into the
// ciphertext body and the trailing 16-byte tag.
//
// Parameters:
//   - plaintext: data to encrypt; may be empty.
//   - key: a 32-byte AES key.
//
// Returns:
//   - *Sealed with Ciphertext, IV and Tag populated.
//   - ErrKeySize if the key has the wrong length, or a random-source error.
func Encrypt(plaintext, key []byte) (*Sealed, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, NonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	out := aesgcm.Seal(nil, iv, plaintext, nil)
	split := len(out) - TagSize

	return &Sealed{
		Ciphertext: out[:split],
		IV:         iv,
		Tag:        out[split:],
	}, nil
}

// Decrypt opens a Sealed value produced by Encrypt.
//
// Any tag mismatch, truncated tag or malformed IV yields common.ErrIntegrity
// and a nil plaintext: GCM verifies the tag before releasing any output.
func Decrypt(s *Sealed, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if s == nil || len(s.IV) != NonceSize || len(s.Tag) != TagSize {
		return nil, common.ErrIntegrity
	}

	buf := make([]byte, 0, len(s.Ciphertext)+TagSize)
	buf = append(buf, s.Ciphertext...)
	buf = append(buf, s.Tag...)

	plaintext, err := aesgcm.Open(nil, s.IV, buf, nil)
	if err != nil {
		return nil, common.ErrIntegrity
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// DeriveMasterKey stretches a passphrase into a 32-byte master key with
// Argon2id. Only meant for development setups driven by cmd/keytool; in
// production the master key is random and supplied base64-encoded.
func DeriveMasterKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}
