// Package vault implements the authenticated encryption used for credentials
// at rest and the canonical wire format of encrypted payloads.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/ericfisherdev/creatorhub/internal/domain/model"
)

// Sizes of the AES-256-GCM parameters, in bytes.
const (
	KeySize = 32
	IVSize  = 16
	TagSize = 16
)

// wireVersion prefixes every encoded envelope.
const wireVersion = "v1"

// Envelope is an encrypted payload split into its GCM parts.
type Envelope struct {
	IV         []byte
	AuthTag    []byte
	Ciphertext []byte
}

// String encodes the envelope in the canonical wire format
// "v1:<iv hex>:<authTag hex>:<ciphertext hex>".
func (e Envelope) String() string {
	return strings.Join([]string{
		wireVersion,
		hex.EncodeToString(e.IV),
		hex.EncodeToString(e.AuthTag),
		hex.EncodeToString(e.Ciphertext),
	}, ":")
}

// ParseEnvelope decodes the canonical wire format. Malformed input is an
// integrity failure.
func ParseEnvelope(s string) (Envelope, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 || parts[0] != wireVersion {
		return Envelope{}, fmt.Errorf("%w: malformed envelope", model.ErrIntegrity)
	}

	iv, err := hex.DecodeString(parts[1])
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: decode iv: %v", model.ErrIntegrity, err)
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: decode auth tag: %v", model.ErrIntegrity, err)
	}
	ciphertext, err := hex.DecodeString(parts[3])
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: decode ciphertext: %v", model.ErrIntegrity, err)
	}

	return Envelope{IV: iv, AuthTag: tag, Ciphertext: ciphertext}, nil
}

// ParseKey decodes a hex-encoded vault key and checks that it is exactly
// KeySize bytes long.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: vault key is not valid hex", model.ErrConfig)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: vault key must decode to %d bytes, got %d", model.ErrConfig, KeySize, len(key))
	}
	return key, nil
}

// GenerateKey returns a new random key in the hex form ParseKey accepts.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("read random key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// Cipher encrypts and decrypts payloads with AES-256-GCM and a 128-bit IV.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher for key, which must be exactly KeySize bytes.
// There is no fallback key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: vault key must be %d bytes, got %d", model.ErrConfig, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCMWithNonceSize: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random IV.
func (c *Cipher) Encrypt(plaintext []byte) (Envelope, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Envelope{}, fmt.Errorf("rand iv: %w", err)
	}

	// Seal produces ciphertext || tag.
	sealed := c.aead.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - TagSize

	return Envelope{
		IV:         iv,
		AuthTag:    sealed[split:],
		Ciphertext: sealed[:split],
	}, nil
}

// Decrypt verifies the authentication tag and returns the plaintext. Any
// mismatch returns model.ErrIntegrity and no data.
func (c *Cipher) Decrypt(env Envelope) ([]byte, error) {
	if len(env.IV) != IVSize || len(env.AuthTag) != TagSize {
		return nil, fmt.Errorf("%w: bad envelope sizes", model.ErrIntegrity)
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+TagSize)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.AuthTag...)

	plaintext, err := c.aead.Open(nil, env.IV, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrIntegrity, err)
	}
	return plaintext, nil
}

// EncryptString seals plaintext and returns its wire encoding.
func (c *Cipher) EncryptString(plaintext string) (string, error) {
	env, err := c.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return env.String(), nil
}

// DecryptString parses a wire encoding and returns the plaintext.
func (c *Cipher) DecryptString(encoded string) (string, error) {
	env, err := ParseEnvelope(encoded)
	if err != nil {
		return "", err
	}
	plaintext, err := c.Decrypt(env)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
