// Package crypto provides the cryptographic primitives of the quantumchat
// envelope pipeline: post-quantum key encapsulation, session key derivation
// and authenticated encryption.
//
// # Algorithm Suite
//
//   - ML-KEM-1024 (NIST FIPS 203, default) or ML-KEM-768: key encapsulation
//     for establishing a fresh 32-byte shared secret per envelope. Provided by
//     cloudflare/circl behind the [KEM] interface.
//
//   - HKDF-SHA-256 (RFC 5869): derives the 256-bit session key from the shared
//     secret, bound to the sorted participant pair. See [DeriveSessionKey].
//
//   - AES-256-GCM (default) or ChaCha20-Poly1305: authenticated encryption of
//     text and file payloads behind the [Cipher] interface.
//
// # Pipeline
//
// Sender:
//
//	ss, ct, err := kem.Encapsulate(recipientPublicKey)
//	key, err := crypto.DeriveSessionKey(ss, sender, recipient)
//	ciphertext, nonce, err := cipher.Encrypt(key, plaintext, aad)
//
// Receiver:
//
//	ss, err := kem.Decapsulate(privateKey, ct)
//	key, err := crypto.DeriveSessionKey(ss, sender, recipient)
//	plaintext, err := cipher.Decrypt(key, ciphertext, nonce, aad)
//
// Every envelope carries its own encapsulation, so session keys are never
// cached or reused and nonces are always drawn by the cipher itself.
//
// # Errors
//
// Each stage fails with its own sentinel: [ErrKeyGeneration],
// [ErrDecapsulation], [ErrKeyDerivation], [ErrAuthentication] and
// [ErrKeyValidation]. Decrypt deliberately collapses every tag failure into
// [ErrAuthentication].
//
// # Key Management
//
// Private keys should never be logged, transmitted, or stored in version
// control. [ValidatePrivateKey] is a structural check only.
package crypto
