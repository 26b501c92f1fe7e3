// Package keystore keeps a user's long-term private key on the client.
//
// Two stores are provided:
//
//   - [Memory] seals the key in a memguard enclave for the lifetime of the
//     process. This is the default; logging out or exiting loses the key,
//     so users should export a backup file first.
//   - [File] persists the key to disk encrypted under a passphrase
//     (scrypt + XChaCha20-Poly1305).
//
// Both are write-once: a second Store without Clear fails with
// [ErrKeyExists], and Retrieve on an empty store fails with [ErrNoKey].
package keystore
