package crypto

const (
	// HKDFContext prefixes the HKDF info string for session keys
	// for domain separation.
	HKDFContext = "quantumchat:session:v1"

	// HKDFSalt is the fixed HKDF salt used when deriving session keys.
	HKDFSalt = "quantum-chat-salt"

	// SessionKeySize is the size of a derived session key in bytes.
	SessionKeySize = 32

	// SharedSecretSize is the size of a KEM shared secret in bytes.
	SharedSecretSize = 32

	// MLKEM1024PublicKeySize is the size of an ML-KEM-1024 public key in bytes.
	MLKEM1024PublicKeySize = 1568
	// MLKEM1024PrivateKeySize is the size of an ML-KEM-1024 private key in bytes.
	MLKEM1024PrivateKeySize = 3168
	// MLKEM1024CiphertextSize is the size of an ML-KEM-1024 ciphertext in bytes.
	MLKEM1024CiphertextSize = 1568

	// MLKEM768PublicKeySize is the size of an ML-KEM-768 public key in bytes.
	MLKEM768PublicKeySize = 1184
	// MLKEM768PrivateKeySize is the size of an ML-KEM-768 private key in bytes.
	MLKEM768PrivateKeySize = 2400
	// MLKEM768CiphertextSize is the size of an ML-KEM-768 ciphertext in bytes.
	MLKEM768CiphertextSize = 1088

	// KeySize is the size of an AEAD key in bytes.
	KeySize = 32
	// NonceSize is the size of an AEAD nonce in bytes.
	NonceSize = 12
	// TagSize is the size of an AEAD authentication tag in bytes.
	TagSize = 16
)

// Algorithm names accepted by KEMByName and CipherByName.
const (
	KEMMLKEM1024 = "ML-KEM-1024"
	KEMMLKEM768  = "ML-KEM-768"

	CipherAES256GCM        = "AES-256-GCM"
	CipherChaCha20Poly1305 = "ChaCha20-Poly1305"
)

// DefaultKEM and DefaultCipher name the algorithm suite used when none is configured.
const (
	DefaultKEM    = KEMMLKEM1024
	DefaultCipher = CipherAES256GCM
)
