package crypto

import (
	"bytes"
	"fmt"
)

// Keypair is a participant's long-term KEM keypair.
type Keypair struct {
	// PublicKey is the raw public key bytes, published to the directory.
	PublicKey []byte
	// PrivateKey is the raw private key bytes. It never leaves the client.
	PrivateKey []byte
	// KEM names the algorithm the keys belong to.
	KEM string
}

// GenerateKeypair creates a new keypair for the given KEM.
func GenerateKeypair(k KEM) (*Keypair, error) {
	return k.GenerateKeypair()
}

// KeypairFromPrivateKey reconstructs a keypair from the private key alone.
// The public key is re-derived from the private key.
func KeypairFromPrivateKey(k KEM, privateKey []byte) (*Keypair, error) {
	pub, err := k.PublicKeyFromPrivate(privateKey)
	if err != nil {
		return nil, err
	}

	return &Keypair{
		PublicKey:  pub,
		PrivateKey: privateKey,
		KEM:        k.Name(),
	}, nil
}

// NewKeypairFromBytes creates a keypair from raw bytes and checks that the
// public key matches the one embedded in the private key.
func NewKeypairFromBytes(k KEM, privateKey, publicKey []byte) (*Keypair, error) {
	if len(publicKey) != k.PublicKeySize() {
		return nil, fmt.Errorf("%w: %w: got %d, want %d", ErrKeyValidation, ErrInvalidPublicKeySize, len(publicKey), k.PublicKeySize())
	}

	derived, err := k.PublicKeyFromPrivate(privateKey)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(derived, publicKey) {
		return nil, fmt.Errorf("%w: public key does not match private key", ErrKeyValidation)
	}

	return &Keypair{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		KEM:        k.Name(),
	}, nil
}

// ValidatePrivateKey performs a structural check of a private key: the
// decoded length must equal the KEM's private key size. It does not prove
// the key is cryptographically sound.
func ValidatePrivateKey(k KEM, privateKey []byte) error {
	if len(privateKey) != k.PrivateKeySize() {
		return fmt.Errorf("%w: %w: got %d, want %d",
			ErrKeyValidation, ErrInvalidPrivateKeySize, len(privateKey), k.PrivateKeySize())
	}
	return nil
}

// ValidateKeypair reports whether a keypair has the correct structure and
// sizes for the given KEM.
func ValidateKeypair(k KEM, keypair *Keypair) bool {
	if keypair == nil {
		return false
	}
	if keypair.KEM != "" && keypair.KEM != k.Name() {
		return false
	}
	if len(keypair.PublicKey) != k.PublicKeySize() {
		return false
	}
	return ValidatePrivateKey(k, keypair.PrivateKey) == nil
}
