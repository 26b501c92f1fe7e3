package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"sort"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher is an authenticated cipher with a 256-bit key, 96-bit nonce and
// 128-bit tag. Nonces are always generated internally.
type Cipher interface {
	// Name returns the canonical algorithm name, e.g. "AES-256-GCM".
	Name() string
	// Encrypt seals plaintext under key with a fresh random nonce. The tag is
	// appended to the returned ciphertext. aad may be nil.
	Encrypt(key, plaintext, aad []byte) (ciphertext, nonce []byte, err error)
	// Decrypt verifies and opens ciphertext. Every verification failure
	// returns ErrAuthentication.
	Decrypt(key, ciphertext, nonce, aad []byte) ([]byte, error)
}

var ciphers = map[string]Cipher{
	CipherAES256GCM:        &aeadCipher{name: CipherAES256GCM, newAEAD: newAESGCM},
	CipherChaCha20Poly1305: &aeadCipher{name: CipherChaCha20Poly1305, newAEAD: chacha20poly1305.New},
}

// CipherByName returns the cipher registered under name.
func CipherByName(name string) (Cipher, error) {
	c, ok := ciphers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, name)
	}
	return c, nil
}

// MustCipher is like CipherByName but panics on unknown names.
func MustCipher(name string) Cipher {
	c, err := CipherByName(name)
	if err != nil {
		panic(err)
	}
	return c
}

// CipherNames lists the supported cipher names in sorted order.
func CipherNames() []string {
	names := make([]string, 0, len(ciphers))
	for name := range ciphers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

type aeadCipher struct {
	name    string
	newAEAD func(key []byte) (cipher.AEAD, error)
}

func (c *aeadCipher) Name() string { return c.name }

func (c *aeadCipher) Encrypt(key, plaintext, aad []byte) ([]byte, []byte, error) {
	if len(key) != KeySize {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), KeySize)
	}

	aead, err := c.newAEAD(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	nonce, err := randomBytes(NonceSize)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: nonce: %v", ErrEncryption, err)
	}

	return aead.Seal(nil, nonce, plaintext, aad), nonce, nil
}

func (c *aeadCipher) Decrypt(key, ciphertext, nonce, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), KeySize)
	}

	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(nonce), NonceSize)
	}

	aead, err := c.newAEAD(key)
	if err != nil {
		return nil, err
	}

	// A ciphertext shorter than the tag cannot authenticate either.
	if len(ciphertext) < TagSize {
		return nil, ErrAuthentication
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthentication
	}

	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
