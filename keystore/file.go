package keystore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	// fileFormatVersion is the current on-disk blob version.
	fileFormatVersion = 1

	saltSize = 16
)

// Default scrypt cost parameters.
const (
	DefaultScryptN = 1 << 15
	DefaultScryptR = 8
	DefaultScryptP = 1
)

// Limits on scrypt parameters read back from disk. A file asking for more
// is treated as corrupt rather than allowed to exhaust memory.
const (
	maxScryptN      = 1 << 20
	maxScryptRP     = 1 << 30
	maxScryptMemory = 256 << 20 // bytes, 128·N·r
)

func scryptParamsOK(n, r, p int) bool {
	if n < 2 || n > maxScryptN || n&(n-1) != 0 || r < 1 || p < 1 {
		return false
	}
	return r*p < maxScryptRP && 128*n*r <= maxScryptMemory
}

// sealedKey is the on-disk JSON structure holding the ciphertext and KDF
// parameters. []byte fields are standard base64 in JSON.
type sealedKey struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Nonce  []byte `json:"nonce"`
	Cipher []byte `json:"cipher"`
}

// File persists the private key to disk, sealed with XChaCha20-Poly1305
// under a key derived from a passphrase with scrypt. The file is written
// with 0600 permissions.
type File struct {
	path       string
	passphrase []byte

	n, r, p int

	mu sync.Mutex
}

// FileOption configures a File store.
type FileOption func(*File)

// WithScryptParams overrides the scrypt cost parameters.
func WithScryptParams(n, r, p int) FileOption {
	return func(f *File) {
		f.n, f.r, f.p = n, r, p
	}
}

// NewFile returns a store backed by the file at path.
func NewFile(path, passphrase string, opts ...FileOption) *File {
	f := &File{
		path:       path,
		passphrase: []byte(passphrase),
		n:          DefaultScryptN,
		r:          DefaultScryptR,
		p:          DefaultScryptP,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Store seals privateKey and writes it atomically to the backing file.
func (f *File) Store(privateKey []byte) error {
	if len(privateKey) == 0 {
		return ErrEmptyKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(f.path); err == nil {
		return ErrKeyExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("keystore: %w", err)
	}

	blob, err := f.seal(privateKey)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("keystore: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".key-*")
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("keystore: %w", err)
	}
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("keystore: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	return nil
}

// Retrieve reads and opens the backing file.
func (f *File) Retrieve() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	blob, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoKey
	}
	if err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	return f.open(blob)
}

// Clear removes the backing file.
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("keystore: %w", err)
	}
	return nil
}

func (f *File) seal(raw []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("keystore: salt: %w", err)
	}

	key, err := scrypt.Key(f.passphrase, salt, f.n, f.r, f.p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("keystore: scrypt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("keystore: nonce: %w", err)
	}

	return json.Marshal(sealedKey{
		V:      fileFormatVersion,
		Salt:   salt,
		N:      f.n,
		R:      f.r,
		P:      f.p,
		Nonce:  nonce,
		Cipher: aead.Seal(nil, nonce, raw, salt),
	})
}

func (f *File) open(blob []byte) ([]byte, error) {
	var sk sealedKey
	if err := json.Unmarshal(blob, &sk); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongPassphrase, err)
	}
	if sk.V > fileFormatVersion {
		return nil, fmt.Errorf("keystore: unsupported key file version %d", sk.V)
	}
	if len(sk.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrWrongPassphrase
	}
	if !scryptParamsOK(sk.N, sk.R, sk.P) {
		return nil, fmt.Errorf("%w: scrypt parameters out of range (N=%d r=%d p=%d)", ErrWrongPassphrase, sk.N, sk.R, sk.P)
	}

	key, err := scrypt.Key(f.passphrase, sk.Salt, sk.N, sk.R, sk.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("keystore: scrypt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	pt, err := aead.Open(nil, sk.Nonce, sk.Cipher, sk.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}
