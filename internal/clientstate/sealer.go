package clientstate

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var errSealedValue = errors.New("clientstate: sealed value is corrupt")

// Sealer encrypts entries at rest. The additional data binds a value to its
// visitor and key so entries cannot be swapped between visitors.
type Sealer struct {
	key []byte
}

func NewSealer(secret string) (*Sealer, error) {
	if len(secret) < 16 {
		return nil, errors.New("clientstate: secret must be at least 16 bytes")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte("ekaai clientstate v1")), key); err != nil {
		return nil, fmt.Errorf("clientstate: derive key: %w", err)
	}
	return &Sealer{key: key}, nil
}

func (s *Sealer) Seal(plaintext, ad string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, []byte(plaintext), []byte(ad))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *Sealer) Open(sealed, ad string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", errSealedValue
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", errSealedValue
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, []byte(ad))
	if err != nil {
		return "", errSealedValue
	}
	return string(pt), nil
}
