package crypto

import "errors"

var (
	// ErrKeyGeneration is returned when a keypair cannot be generated,
	// typically because the random source failed.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrEncapsulation is returned when a shared secret cannot be encapsulated
	// under a public key.
	ErrEncapsulation = errors.New("encapsulation failed")

	// ErrDecapsulation is returned when a KEM ciphertext cannot be decapsulated.
	ErrDecapsulation = errors.New("decapsulation failed")

	// ErrKeyDerivation is returned when a session key cannot be derived.
	ErrKeyDerivation = errors.New("key derivation failed")

	// ErrAuthentication is returned when an AEAD tag does not verify. It covers
	// a wrong key, corrupted ciphertext, corrupted tag and mismatched metadata alike.
	ErrAuthentication = errors.New("authentication failed: wrong key or tampered data")

	// ErrKeyValidation is returned when a private key is structurally invalid.
	ErrKeyValidation = errors.New("invalid private key")

	// ErrEncryption is returned when the AEAD cipher cannot seal a payload.
	ErrEncryption = errors.New("encryption failed")

	// ErrInvalidPublicKeySize is returned when the public key size is invalid.
	ErrInvalidPublicKeySize = errors.New("invalid public key size")

	// ErrInvalidPrivateKeySize is returned when the private key size is invalid.
	ErrInvalidPrivateKeySize = errors.New("invalid private key size")

	// ErrInvalidCiphertextSize is returned when the KEM ciphertext size is invalid.
	ErrInvalidCiphertextSize = errors.New("invalid ciphertext size")

	// ErrInvalidKeySize is returned when the AEAD key size is invalid.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidNonceSize is returned when the nonce size is invalid.
	ErrInvalidNonceSize = errors.New("invalid nonce size")

	// ErrUnknownKEM is returned when a KEM name is not supported.
	ErrUnknownKEM = errors.New("unknown KEM algorithm")

	// ErrUnknownCipher is returned when a cipher name is not supported.
	ErrUnknownCipher = errors.New("unknown cipher algorithm")
)
