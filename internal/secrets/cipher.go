// Package secrets encrypts setting values at rest.
//
// Values are sealed with XChaCha20-Poly1305 under a key derived from the
// configured application secret with HKDF-SHA256. The encoded form is
// "v1:" followed by base64(nonce || ciphertext).
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/ledgerline/propops/internal/errors"
)

const (
	versionPrefix = "v1:"
	hkdfInfo      = "propops settings v1"
)

// ErrNoKey is returned when encryption is requested without a configured key.
var ErrNoKey = errors.New("settings encryption key is not configured")

// Cipher seals and opens setting values.
type Cipher struct {
	key []byte
}

// NewCipher derives the data key from secret. An empty secret yields a Cipher
// that refuses to encrypt or decrypt.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return &Cipher{}, nil
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive settings key: %w", err)
	}
	return &Cipher{key: key}, nil
}

// Enabled reports whether a key is configured.
func (c *Cipher) Enabled() bool { return c != nil && len(c.key) > 0 }

// Encrypt seals plaintext. aad binds the ciphertext to its owner (typically
// "category.key") so a value copied onto another row fails to open.
func (c *Cipher) Encrypt(plaintext []byte, aad string) (string, error) {
	if !c.Enabled() {
		return "", ErrNoKey
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, []byte(aad))
	return versionPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt with the same aad.
func (c *Cipher) Decrypt(encoded, aad string) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrNoKey
	}
	body, ok := strings.CutPrefix(encoded, versionPrefix)
	if !ok {
		return nil, errors.New("unsupported ciphertext version")
	}
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], []byte(aad))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt value: %w", err)
	}
	return plain, nil
}

// IsCiphertext reports whether s carries the encrypted value prefix.
func IsCiphertext(s string) bool { return strings.HasPrefix(s, versionPrefix) }
