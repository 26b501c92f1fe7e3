package keystore

import "errors"

var (
	// ErrNoKey is returned by Retrieve when no key is held.
	ErrNoKey = errors.New("no private key stored")

	// ErrKeyExists is returned by Store when a key is already held.
	// Call Clear first to replace it.
	ErrKeyExists = errors.New("private key already stored")

	// ErrWrongPassphrase is returned when a sealed key file cannot be opened,
	// either because the passphrase is wrong or the file was modified.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")

	// ErrEmptyKey is returned by Store for a zero-length key.
	ErrEmptyKey = errors.New("private key is empty")
)

// Store holds a single private key on the client. Keys are write-once:
// Store fails with ErrKeyExists until Clear is called.
//
// Implementations are safe for concurrent use. Retrieve returns a copy the
// caller owns and should wipe when done.
type Store interface {
	Store(privateKey []byte) error
	Retrieve() ([]byte, error)
	Clear() error
}
