// Package quantumchat provides a Go client SDK for end-to-end encrypted
// one-to-one chat built on post-quantum key encapsulation.
//
// Every message is sealed independently: the sender encapsulates a fresh
// secret to the recipient's ML-KEM-1024 public key, derives a 256-bit key
// with HKDF-SHA-256 bound to the sorted sender/recipient pair, and encrypts
// with AES-256-GCM. The resulting [Envelope] is all the server ever sees.
//
// Basic usage:
//
//	client, err := quantumchat.New(quantumchat.WithServerURL("https://chat.example.com"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	kp, err := client.Register(ctx, "alice")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("alice_private_key.txt", quantumchat.ExportKeyFile("alice", kp, time.Now()), 0o600)
//
//	if _, err := client.SendText(ctx, "bob", "hello bob"); err != nil {
//	    log.Fatal(err)
//	}
//
//	msgs, err := client.LoadConversation(ctx, "bob")
//	for _, m := range msgs {
//	    fmt.Println(m.From, m.Text)
//	}
//
// # Keys
//
// The private key never leaves the client. By default it lives in a
// guarded in-memory store and is gone after [Client.Logout] or process
// exit; the key backup file from [ExportKeyFile] is the only way back in
// ([Client.ImportKey]). With the passphrase-encrypted file store from
// package keystore, a later process picks the key up with [Client.Resume].
// [GenerateKeypair] and [Open] work without a client for offline use.
//
// # Backends
//
// The REST chat server is the default backend. [WithDirectory],
// [WithStore] and [WithRelay] replace it; package redisstore implements
// all three on Redis.
//
// # Errors
//
// Every failure to open an envelope is a [*DecryptionError] naming the
// stage that failed and matching [ErrDecryptionFailed]. A wrong key and a
// tampered envelope are indistinguishable: both surface as
// [ErrAuthentication].
package quantumchat
