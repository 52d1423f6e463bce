package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// ErrDecryptFailed means the blob's integrity check did not verify: wrong key,
// corruption, or tampering. Callers must treat this distinctly from "no secret
// stored"; it is never silently equivalent to an empty value.
var ErrDecryptFailed = errors.New("secret decryption failed")

const keyLen = 32

// DeriveKey stretches a configured master secret into an AES-256 key using
// argon2id. The master secret need not be full-entropy; the KDF cost makes
// offline guessing expensive. Called once at startup.
func DeriveKey(masterSecret, salt string) []byte {
	return argon2.IDKey([]byte(masterSecret), []byte(salt), 3, 64*1024, 2, keyLen)
}

// Cipher performs AEAD encryption of small secret blobs (TOTP seeds). The key
// is immutable after construction and safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != keyLen {
		return nil, fmt.Errorf("cipher key must be %d bytes, got %d", keyLen, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce and returns
// base64(nonce || ciphertext || tag), opaque to callers.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Any integrity failure comes back
// as ErrDecryptFailed.
func (c *Cipher) Decrypt(blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return nil, ErrDecryptFailed
	}
	plaintext, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
