package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestKEMByName(t *testing.T) {
	for _, name := range KEMNames() {
		k, err := KEMByName(name)
		if err != nil {
			t.Fatalf("KEMByName(%q) error = %v", name, err)
		}
		if k.Name() != name {
			t.Errorf("Name() = %q, want %q", k.Name(), name)
		}
	}

	if _, err := KEMByName("Kyber-Sim"); !errors.Is(err, ErrUnknownKEM) {
		t.Errorf("expected ErrUnknownKEM, got %v", err)
	}
}

func TestKEM_Sizes(t *testing.T) {
	k := MustKEM(KEMMLKEM1024)
	if k.PublicKeySize() != MLKEM1024PublicKeySize {
		t.Errorf("PublicKeySize() = %d", k.PublicKeySize())
	}
	if k.PrivateKeySize() != MLKEM1024PrivateKeySize {
		t.Errorf("PrivateKeySize() = %d", k.PrivateKeySize())
	}
	if k.CiphertextSize() != MLKEM1024CiphertextSize {
		t.Errorf("CiphertextSize() = %d", k.CiphertextSize())
	}
}

func TestKEM_RoundTrip(t *testing.T) {
	for _, name := range KEMNames() {
		t.Run(name, func(t *testing.T) {
			k := MustKEM(name)
			kp, err := GenerateKeypair(k)
			if err != nil {
				t.Fatalf("GenerateKeypair() error = %v", err)
			}

			ss, ct, err := k.Encapsulate(kp.PublicKey)
			if err != nil {
				t.Fatalf("Encapsulate() error = %v", err)
			}
			if len(ss) != SharedSecretSize {
				t.Errorf("shared secret size = %d, want %d", len(ss), SharedSecretSize)
			}
			if len(ct) != k.CiphertextSize() {
				t.Errorf("ciphertext size = %d, want %d", len(ct), k.CiphertextSize())
			}

			recovered, err := k.Decapsulate(kp.PrivateKey, ct)
			if err != nil {
				t.Fatalf("Decapsulate() error = %v", err)
			}
			if !bytes.Equal(recovered, ss) {
				t.Error("decapsulated secret does not match encapsulated secret")
			}
		})
	}
}

func TestKEM_EncapsulationIndependence(t *testing.T) {
	k := MustKEM(DefaultKEM)
	kp, err := GenerateKeypair(k)
	if err != nil {
		t.Fatal(err)
	}

	ss1, ct1, err := k.Encapsulate(kp.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	ss2, ct2, err := k.Encapsulate(kp.PublicKey)
	if err != nil {
		t.Fatal(err)
	}

	if bytes.Equal(ss1, ss2) {
		t.Error("two encapsulations produced the same shared secret")
	}
	if bytes.Equal(ct1, ct2) {
		t.Error("two encapsulations produced the same ciphertext")
	}
}

func TestKEM_WrongPrivateKey(t *testing.T) {
	k := MustKEM(DefaultKEM)
	bob, err := GenerateKeypair(k)
	if err != nil {
		t.Fatal(err)
	}
	eve, err := GenerateKeypair(k)
	if err != nil {
		t.Fatal(err)
	}

	ss, ct, err := k.Encapsulate(bob.PublicKey)
	if err != nil {
		t.Fatal(err)
	}

	// ML-KEM uses implicit rejection: a wrong key yields an unrelated secret,
	// not an error.
	wrong, err := k.Decapsulate(eve.PrivateKey, ct)
	if err != nil {
		t.Fatalf("Decapsulate() error = %v", err)
	}
	if bytes.Equal(wrong, ss) {
		t.Error("wrong private key recovered the original shared secret")
	}
}

func TestKEM_TamperedCiphertext(t *testing.T) {
	k := MustKEM(DefaultKEM)
	kp, err := GenerateKeypair(k)
	if err != nil {
		t.Fatal(err)
	}

	ss, ct, err := k.Encapsulate(kp.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	ct[0] ^= 0x01

	got, err := k.Decapsulate(kp.PrivateKey, ct)
	if err != nil {
		t.Fatalf("Decapsulate() error = %v", err)
	}
	if bytes.Equal(got, ss) {
		t.Error("tampered ciphertext decapsulated to the original secret")
	}
}

func TestKEM_Decapsulate_InvalidCiphertextSize(t *testing.T) {
	k := MustKEM(DefaultKEM)
	kp, err := GenerateKeypair(k)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"truncated", MLKEM1024CiphertextSize - 1},
		{"oversized", MLKEM1024CiphertextSize + 1},
		{"ml-kem-768 sized", MLKEM768CiphertextSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := k.Decapsulate(kp.PrivateKey, make([]byte, tt.size))
			if !errors.Is(err, ErrDecapsulation) {
				t.Errorf("expected ErrDecapsulation, got %v", err)
			}
			if !errors.Is(err, ErrInvalidCiphertextSize) {
				t.Errorf("expected ErrInvalidCiphertextSize, got %v", err)
			}
		})
	}
}

func TestKEM_Decapsulate_InvalidPrivateKeySize(t *testing.T) {
	k := MustKEM(DefaultKEM)
	_, err := k.Decapsulate(make([]byte, 10), make([]byte, MLKEM1024CiphertextSize))
	if !errors.Is(err, ErrDecapsulation) {
		t.Errorf("expected ErrDecapsulation, got %v", err)
	}
}

func TestKEM_Encapsulate_InvalidPublicKey(t *testing.T) {
	k := MustKEM(DefaultKEM)
	_, _, err := k.Encapsulate(make([]byte, 32))
	if !errors.Is(err, ErrInvalidPublicKeySize) {
		t.Errorf("expected ErrInvalidPublicKeySize, got %v", err)
	}
}

func TestKEM_Encapsulate_RandomSourceFailure(t *testing.T) {
	k := MustKEM(DefaultKEM)
	kp, err := GenerateKeypair(k)
	if err != nil {
		t.Fatal(err)
	}

	restore := SetRandReaderForTesting(failingReader{})
	defer restore()

	if _, _, err := k.Encapsulate(kp.PublicKey); !errors.Is(err, ErrEncapsulation) {
		t.Errorf("expected ErrEncapsulation, got %v", err)
	}
}

func BenchmarkEncapsulate(b *testing.B) {
	k := MustKEM(DefaultKEM)
	kp, _ := GenerateKeypair(k)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = k.Encapsulate(kp.PublicKey)
	}
}

func BenchmarkDecapsulate(b *testing.B) {
	k := MustKEM(DefaultKEM)
	kp, _ := GenerateKeypair(k)
	_, ct, _ := k.Encapsulate(kp.PublicKey)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = k.Decapsulate(kp.PrivateKey, ct)
	}
}
