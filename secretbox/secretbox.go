// Package secretbox seals small secrets (TOTP seeds) at rest with AES-256-GCM.
//
// Sealed values are base64(nonce|ciphertext|tag) with a fresh random 12-byte
// nonce per call, so sealing the same plaintext twice yields different output.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// KeySize is the required key length in bytes.
const KeySize = 32

const nonceSize = 12

var (
	// ErrInvalidKey is returned when the key is not KeySize bytes.
	ErrInvalidKey = errors.New("secretbox: key must be 32 bytes")
	// ErrMalformed is returned when a sealed value cannot be decoded.
	ErrMalformed = errors.New("secretbox: malformed ciphertext")
	// ErrDecrypt is returned when authentication fails (wrong key or tampering).
	ErrDecrypt = errors.New("secretbox: decryption failed")
)

// Box seals and opens values under a single key. Safe for concurrent use.
type Box struct {
	aead cipher.AEAD
	rand io.Reader
}

// New builds a Box from a raw 32-byte key.
func New(key []byte) (*Box, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Box{aead: gcm, rand: rand.Reader}, nil
}

// NewFromHex decodes a 64-character hex key.
func NewFromHex(key string) (*Box, error) {
	raw, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return New(raw)
}

// Seal encrypts plaintext and returns the encoded sealed value.
func (b *Box) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(b.rand, nonce); err != nil {
		return "", fmt.Errorf("secretbox nonce: %w", err)
	}
	out := b.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (b *Box) Open(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrMalformed
	}
	if len(raw) < nonceSize+b.aead.Overhead() {
		return nil, ErrMalformed
	}
	plaintext, err := b.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
