// Package security encrypts venue credentials at rest.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	prefix    = "enc:v1:"
)

var (
	ErrInvalidKey       = errors.New("security: credentials key must be 32 base64-encoded bytes")
	ErrNotEncrypted     = errors.New("security: value is not encrypted")
	ErrMalformedPayload = errors.New("security: malformed encrypted value")
	ErrDecrypt          = errors.New("security: decryption failed")
)

// Box seals short secrets with NaCl secretbox. Output is "enc:v1:" + base64(nonce|sealed).
type Box struct {
	key [keySize]byte
}

func NewBox(b64Key string) (*Box, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64Key))
	if err != nil || len(raw) != keySize {
		return nil, ErrInvalidKey
	}
	b := &Box{}
	copy(b.key[:], raw)
	return b, nil
}

// NewBoxFromEnv builds a Box from STRATEGY_CREDENTIALS_KEY.
func NewBoxFromEnv() (*Box, error) {
	return NewBox(GetConfig().CredentialsKey)
}

func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, prefix)
}

func (b *Box) EncryptString(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("security: read nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, &b.key)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *Box) DecryptString(value string) (string, error) {
	if !IsEncrypted(value) {
		return "", ErrNotEncrypted
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrMalformedPayload
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
