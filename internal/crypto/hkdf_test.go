package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

func randomSecret(t testing.TB) []byte {
	t.Helper()
	s := make([]byte, SharedSecretSize)
	if _, err := rand.Read(s); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDeriveSessionKey_Symmetric(t *testing.T) {
	secret := randomSecret(t)

	k1, err := DeriveSessionKey(secret, "alice", "bob")
	if err != nil {
		t.Fatalf("DeriveSessionKey() error = %v", err)
	}
	k2, err := DeriveSessionKey(secret, "bob", "alice")
	if err != nil {
		t.Fatalf("DeriveSessionKey() error = %v", err)
	}

	if !bytes.Equal(k1, k2) {
		t.Error("derive(s, alice, bob) != derive(s, bob, alice)")
	}
	if len(k1) != SessionKeySize {
		t.Errorf("key size = %d, want %d", len(k1), SessionKeySize)
	}
}

func TestDeriveSessionKey_Deterministic(t *testing.T) {
	secret := randomSecret(t)

	k1, _ := DeriveSessionKey(secret, "alice", "bob")
	k2, _ := DeriveSessionKey(append([]byte(nil), secret...), "alice", "bob")
	if !bytes.Equal(k1, k2) {
		t.Error("same inputs produced different keys")
	}
}

func TestDeriveSessionKey_ContextSeparation(t *testing.T) {
	secret := randomSecret(t)

	tests := []struct {
		name   string
		a1, b1 string
		a2, b2 string
	}{
		{"different peer", "alice", "bob", "alice", "carol"},
		{"hyphen ambiguity", "a-b", "c", "a", "b-c"},
		{"prefix shift", "ab", "c", "a", "bc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k1, err := DeriveSessionKey(secret, tt.a1, tt.b1)
			if err != nil {
				t.Fatal(err)
			}
			k2, err := DeriveSessionKey(secret, tt.a2, tt.b2)
			if err != nil {
				t.Fatal(err)
			}
			if bytes.Equal(k1, k2) {
				t.Errorf("pairs (%q,%q) and (%q,%q) derived the same key", tt.a1, tt.b1, tt.a2, tt.b2)
			}
		})
	}
}

func TestDeriveSessionKey_DifferentSecrets(t *testing.T) {
	k1, _ := DeriveSessionKey(randomSecret(t), "alice", "bob")
	k2, _ := DeriveSessionKey(randomSecret(t), "alice", "bob")
	if bytes.Equal(k1, k2) {
		t.Error("different secrets derived the same key")
	}
}

func TestDeriveSessionKey_InvalidSecretLength(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		_, err := DeriveSessionKey(make([]byte, size), "alice", "bob")
		if !errors.Is(err, ErrKeyDerivation) {
			t.Errorf("size %d: expected ErrKeyDerivation, got %v", size, err)
		}
	}
}

func TestSessionContext_OrderIndependent(t *testing.T) {
	if !bytes.Equal(SessionContext("alice", "bob"), SessionContext("bob", "alice")) {
		t.Error("SessionContext depends on argument order")
	}
	if !bytes.HasPrefix(SessionContext("x", "y"), []byte(HKDFContext)) {
		t.Error("SessionContext does not start with HKDFContext")
	}
}

func TestDeriveKey_EmptySalt(t *testing.T) {
	k1, err := DeriveKey([]byte("secret"), nil, []byte("info"), 32)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := DeriveKey([]byte("secret"), make([]byte, 32), []byte("info"), 32)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("empty salt should behave as a zero-filled salt")
	}
}
