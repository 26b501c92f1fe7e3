package crypto

import (
	"bytes"
	"errors"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy unavailable") }

func TestGenerateKeypair(t *testing.T) {
	tests := []struct {
		name    string
		kem     string
		pubSize int
		sizeSK  int
	}{
		{"ML-KEM-1024", KEMMLKEM1024, MLKEM1024PublicKeySize, MLKEM1024PrivateKeySize},
		{"ML-KEM-768", KEMMLKEM768, MLKEM768PublicKeySize, MLKEM768PrivateKeySize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kp, err := GenerateKeypair(MustKEM(tt.kem))
			if err != nil {
				t.Fatalf("GenerateKeypair() error = %v", err)
			}

			if len(kp.PublicKey) != tt.pubSize {
				t.Errorf("PublicKey size = %d, want %d", len(kp.PublicKey), tt.pubSize)
			}
			if len(kp.PrivateKey) != tt.sizeSK {
				t.Errorf("PrivateKey size = %d, want %d", len(kp.PrivateKey), tt.sizeSK)
			}
			if kp.KEM != tt.kem {
				t.Errorf("KEM = %q, want %q", kp.KEM, tt.kem)
			}
		})
	}
}

func TestGenerateKeypair_Uniqueness(t *testing.T) {
	k := MustKEM(DefaultKEM)

	kp1, err := GenerateKeypair(k)
	if err != nil {
		t.Fatalf("GenerateKeypair() error = %v", err)
	}
	kp2, err := GenerateKeypair(k)
	if err != nil {
		t.Fatalf("GenerateKeypair() error = %v", err)
	}

	if bytes.Equal(kp1.PublicKey, kp2.PublicKey) {
		t.Error("Generated keypairs have identical public keys")
	}
	if bytes.Equal(kp1.PrivateKey, kp2.PrivateKey) {
		t.Error("Generated keypairs have identical private keys")
	}
}

func TestGenerateKeypair_RandomSourceFailure(t *testing.T) {
	restore := SetRandReaderForTesting(failingReader{})
	defer restore()

	_, err := GenerateKeypair(MustKEM(DefaultKEM))
	if !errors.Is(err, ErrKeyGeneration) {
		t.Errorf("expected ErrKeyGeneration, got %v", err)
	}
}

func TestGenerateKeypair_DeterministicFromSeed(t *testing.T) {
	k := MustKEM(DefaultKEM)
	seed := bytes.Repeat([]byte{0x42}, 64)

	restore := SetRandReaderForTesting(bytes.NewReader(seed))
	kp1, err := GenerateKeypair(k)
	restore()
	if err != nil {
		t.Fatalf("GenerateKeypair() error = %v", err)
	}

	restore = SetRandReaderForTesting(bytes.NewReader(seed))
	kp2, err := GenerateKeypair(k)
	restore()
	if err != nil {
		t.Fatalf("GenerateKeypair() error = %v", err)
	}

	if !bytes.Equal(kp1.PrivateKey, kp2.PrivateKey) || !bytes.Equal(kp1.PublicKey, kp2.PublicKey) {
		t.Error("same seed produced different keypairs")
	}
}

func TestKeypairFromPrivateKey(t *testing.T) {
	k := MustKEM(DefaultKEM)
	original, err := GenerateKeypair(k)
	if err != nil {
		t.Fatalf("GenerateKeypair() error = %v", err)
	}

	reconstructed, err := KeypairFromPrivateKey(k, original.PrivateKey)
	if err != nil {
		t.Fatalf("KeypairFromPrivateKey() error = %v", err)
	}

	if !bytes.Equal(original.PublicKey, reconstructed.PublicKey) {
		t.Error("Reconstructed public key does not match original")
	}
}

func TestKeypairFromPrivateKey_InvalidSize(t *testing.T) {
	k := MustKEM(DefaultKEM)
	for _, size := range []int{0, 100, MLKEM1024PrivateKeySize - 1, MLKEM1024PrivateKeySize + 1} {
		_, err := KeypairFromPrivateKey(k, make([]byte, size))
		if !errors.Is(err, ErrInvalidPrivateKeySize) {
			t.Errorf("size %d: expected ErrInvalidPrivateKeySize, got %v", size, err)
		}
	}
}

func TestNewKeypairFromBytes(t *testing.T) {
	k := MustKEM(DefaultKEM)
	kp, err := GenerateKeypair(k)
	if err != nil {
		t.Fatal(err)
	}
	other, err := GenerateKeypair(k)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("matching", func(t *testing.T) {
		got, err := NewKeypairFromBytes(k, kp.PrivateKey, kp.PublicKey)
		if err != nil {
			t.Fatalf("NewKeypairFromBytes() error = %v", err)
		}
		if !ValidateKeypair(k, got) {
			t.Error("ValidateKeypair() = false for valid keypair")
		}
	})

	t.Run("mismatched public key", func(t *testing.T) {
		_, err := NewKeypairFromBytes(k, kp.PrivateKey, other.PublicKey)
		if !errors.Is(err, ErrKeyValidation) {
			t.Errorf("expected ErrKeyValidation, got %v", err)
		}
	})

	t.Run("short public key", func(t *testing.T) {
		_, err := NewKeypairFromBytes(k, kp.PrivateKey, kp.PublicKey[:10])
		if !errors.Is(err, ErrInvalidPublicKeySize) {
			t.Errorf("expected ErrInvalidPublicKeySize, got %v", err)
		}
	})
}

func TestValidatePrivateKey(t *testing.T) {
	k := MustKEM(DefaultKEM)

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"exact", MLKEM1024PrivateKeySize, false},
		{"empty", 0, true},
		{"ml-kem-768 sized", MLKEM768PrivateKeySize, true},
		{"one short", MLKEM1024PrivateKeySize - 1, true},
		{"one long", MLKEM1024PrivateKeySize + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePrivateKey(k, make([]byte, tt.size))
			if tt.wantErr && !errors.Is(err, ErrKeyValidation) {
				t.Errorf("expected ErrKeyValidation, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateKeypair(t *testing.T) {
	k := MustKEM(DefaultKEM)
	kp, err := GenerateKeypair(k)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		keypair *Keypair
		want    bool
	}{
		{"valid", kp, true},
		{"nil", nil, false},
		{"wrong kem", &Keypair{PublicKey: kp.PublicKey, PrivateKey: kp.PrivateKey, KEM: KEMMLKEM768}, false},
		{"short public", &Keypair{PublicKey: kp.PublicKey[:5], PrivateKey: kp.PrivateKey}, false},
		{"short private", &Keypair{PublicKey: kp.PublicKey, PrivateKey: kp.PrivateKey[:5]}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateKeypair(k, tt.keypair); got != tt.want {
				t.Errorf("ValidateKeypair() = %v, want %v", got, tt.want)
			}
		})
	}
}
