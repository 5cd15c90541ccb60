// Package crypt encrypts confidential fields (verification secrets,
// destination credentials, raw payloads) before they reach storage.
package crypt

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// KeySize is the secretbox key length in bytes.
const KeySize = 32

const nonceSize = 24

// ErrDecrypt is returned when a ciphertext fails authentication.
var ErrDecrypt = errors.New("crypt: decryption failed")

// Cipher seals and opens confidential byte strings.
type Cipher interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(ciphertext []byte) ([]byte, error)
}

// SecretBox is an authenticated Cipher backed by NaCl secretbox. The
// 24-byte random nonce is prepended to each ciphertext.
type SecretBox struct {
	key [KeySize]byte
}

// NewSecretBox creates a cipher from a 32-byte key.
func NewSecretBox(key []byte) (*SecretBox, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypt: key must be %d bytes, got %d", KeySize, len(key))
	}
	sb := &SecretBox{}
	copy(sb.key[:], key)
	return sb, nil
}

// ParseKey decodes an encryption key from hex or base64 text.
func ParseKey(encoded string) ([]byte, error) {
	if raw, err := hex.DecodeString(encoded); err == nil && len(raw) == KeySize {
		return raw, nil
	}
	if raw, err := base64.StdEncoding.DecodeString(encoded); err == nil && len(raw) == KeySize {
		return raw, nil
	}
	if raw, err := base64.RawURLEncoding.DecodeString(encoded); err == nil && len(raw) == KeySize {
		return raw, nil
	}
	return nil, fmt.Errorf("crypt: key must decode to %d bytes of hex or base64", KeySize)
}

// GenerateKey returns a fresh random key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("crypt: generate key: %w", err)
	}
	return key, nil
}

// Seal implements Cipher.
func (sb *SecretBox) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("crypt: generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &sb.key), nil
}

// Open implements Cipher.
func (sb *SecretBox) Open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize {
		return nil, ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &sb.key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// Noop is a pass-through Cipher for development and tests.
type Noop struct{}

// Seal implements Cipher.
func (Noop) Seal(plaintext []byte) ([]byte, error) { return plaintext, nil }

// Open implements Cipher.
func (Noop) Open(ciphertext []byte) ([]byte, error) { return ciphertext, nil }
