package crypto

import (
	"fmt"
	"sort"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
)

// KEM is a key encapsulation mechanism. Implementations must be safe for
// concurrent use and hold no per-call state.
type KEM interface {
	// Name returns the canonical algorithm name, e.g. "ML-KEM-1024".
	Name() string
	// PublicKeySize is the encoded public key length in bytes.
	PublicKeySize() int
	// PrivateKeySize is the encoded private key length in bytes.
	PrivateKeySize() int
	// CiphertextSize is the encapsulated secret length in bytes.
	CiphertextSize() int

	// GenerateKeypair creates a new long-term keypair.
	GenerateKeypair() (*Keypair, error)
	// Encapsulate produces a fresh shared secret and the ciphertext that
	// transports it to the holder of the matching private key.
	Encapsulate(publicKey []byte) (sharedSecret, ciphertext []byte, err error)
	// Decapsulate recovers the shared secret from a ciphertext.
	Decapsulate(privateKey, ciphertext []byte) ([]byte, error)
	// PublicKeyFromPrivate re-derives the public key embedded in a private key.
	PublicKeyFromPrivate(privateKey []byte) ([]byte, error)
}

var kems = map[string]KEM{
	KEMMLKEM1024: &mlkemScheme{name: KEMMLKEM1024, scheme: mlkem1024.Scheme()},
	KEMMLKEM768:  &mlkemScheme{name: KEMMLKEM768, scheme: mlkem768.Scheme()},
}

// KEMByName returns the KEM registered under name.
func KEMByName(name string) (KEM, error) {
	k, ok := kems[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKEM, name)
	}
	return k, nil
}

// MustKEM is like KEMByName but panics on unknown names.
// Intended for package-level defaults.
func MustKEM(name string) KEM {
	k, err := KEMByName(name)
	if err != nil {
		panic(err)
	}
	return k
}

// KEMNames lists the supported KEM names in sorted order.
func KEMNames() []string {
	names := make([]string, 0, len(kems))
	for name := range kems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// mlkemScheme adapts a circl ML-KEM scheme to KEM. Seeds are drawn from
// randReader so key generation and encapsulation fail cleanly when the
// random source does.
type mlkemScheme struct {
	name   string
	scheme kem.Scheme
}

func (m *mlkemScheme) Name() string        { return m.name }
func (m *mlkemScheme) PublicKeySize() int  { return m.scheme.PublicKeySize() }
func (m *mlkemScheme) PrivateKeySize() int { return m.scheme.PrivateKeySize() }
func (m *mlkemScheme) CiphertextSize() int { return m.scheme.CiphertextSize() }

func (m *mlkemScheme) GenerateKeypair() (*Keypair, error) {
	seed, err := randomBytes(m.scheme.SeedSize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	defer Wipe(seed)

	pub, priv := m.scheme.DeriveKeyPair(seed)

	// MarshalBinary never fails for keys derived by the scheme
	pubBytes, _ := pub.MarshalBinary()
	privBytes, _ := priv.MarshalBinary()

	return &Keypair{
		PublicKey:  pubBytes,
		PrivateKey: privBytes,
		KEM:        m.Name(),
	}, nil
}

func (m *mlkemScheme) Encapsulate(publicKey []byte) ([]byte, []byte, error) {
	if len(publicKey) != m.scheme.PublicKeySize() {
		return nil, nil, fmt.Errorf("%w: %w: got %d, want %d",
			ErrEncapsulation, ErrInvalidPublicKeySize, len(publicKey), m.scheme.PublicKeySize())
	}

	pk, err := m.scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: unmarshal public key: %v", ErrEncapsulation, err)
	}

	seed, err := randomBytes(m.scheme.EncapsulationSeedSize())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEncapsulation, err)
	}
	defer Wipe(seed)

	ct, ss, err := m.scheme.EncapsulateDeterministically(pk, seed)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEncapsulation, err)
	}

	return ss, ct, nil
}

func (m *mlkemScheme) Decapsulate(privateKey, ciphertext []byte) ([]byte, error) {
	// Size checks run before any decapsulation arithmetic.
	if len(ciphertext) != m.scheme.CiphertextSize() {
		return nil, fmt.Errorf("%w: %w: got %d, want %d",
			ErrDecapsulation, ErrInvalidCiphertextSize, len(ciphertext), m.scheme.CiphertextSize())
	}
	if len(privateKey) != m.scheme.PrivateKeySize() {
		return nil, fmt.Errorf("%w: %w: got %d, want %d",
			ErrDecapsulation, ErrInvalidPrivateKeySize, len(privateKey), m.scheme.PrivateKeySize())
	}

	sk, err := m.scheme.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: unmarshal private key: %v", ErrDecapsulation, err)
	}

	ss, err := m.scheme.Decapsulate(sk, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecapsulation, err)
	}
	return ss, nil
}

func (m *mlkemScheme) PublicKeyFromPrivate(privateKey []byte) ([]byte, error) {
	if len(privateKey) != m.scheme.PrivateKeySize() {
		return nil, fmt.Errorf("%w: %w: got %d, want %d",
			ErrKeyValidation, ErrInvalidPrivateKeySize, len(privateKey), m.scheme.PrivateKeySize())
	}

	sk, err := m.scheme.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyValidation, err)
	}

	return sk.Public().MarshalBinary()
}
