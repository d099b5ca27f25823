// Package secret encrypts stored connection passwords with AES-256-GCM. The
// key is the SHA-256 digest of the master key; every encryption draws a fresh
// 12-byte IV that is stored next to the ciphertext.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"unicode/utf8"

	"github.com/koustreak/aigis/internal/errs"
)

const ivSize = 12

// Cipher is the capability the resolver and the registration path need.
type Cipher interface {
	Encrypt(plaintext, masterKey string) (iv, ciphertext []byte, err error)
	Decrypt(ciphertext, iv []byte, masterKey string) (string, error)
}

// AESGCM implements Cipher. The zero value reads randomness from crypto/rand.
type AESGCM struct {
	Rand io.Reader
}

func deriveKey(masterKey string) [32]byte {
	return sha256.Sum256([]byte(masterKey))
}

func newGCM(masterKey string) (cipher.AEAD, error) {
	key := deriveKey(masterKey)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindSecret, "init cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindSecret, "init gcm", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext and returns the IV and ciphertext (with GCM tag).
func (a AESGCM) Encrypt(plaintext, masterKey string) ([]byte, []byte, error) {
	if masterKey == "" {
		return nil, nil, errs.New(errs.ErrKindSecret, "master key is empty")
	}
	gcm, err := newGCM(masterKey)
	if err != nil {
		return nil, nil, err
	}

	src := a.Rand
	if src == nil {
		src = rand.Reader
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(src, iv); err != nil {
		return nil, nil, errs.Wrap(errs.ErrKindSecret, "generate iv", err)
	}
	return iv, gcm.Seal(nil, iv, []byte(plaintext), nil), nil
}

// Decrypt opens ciphertext. A wrong key, a corrupt ciphertext or a bad IV
// all return an ErrKindSecret error.
func (a AESGCM) Decrypt(ciphertext, iv []byte, masterKey string) (string, error) {
	if len(iv) != ivSize {
		return "", errs.Newf(errs.ErrKindSecret, "iv must be %d bytes, got %d", ivSize, len(iv))
	}
	gcm, err := newGCM(masterKey)
	if err != nil {
		return "", err
	}
	plain, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindSecret, "decrypt secret", err)
	}
	if !utf8.Valid(plain) {
		return "", errs.New(errs.ErrKindSecret, "decrypted secret is not valid UTF-8")
	}
	return string(plain), nil
}
