package keystore

import (
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
)

// Memory keeps the private key in a memguard Enclave: encrypted at rest in
// process memory and only decrypted into a locked buffer while being copied
// out. Nothing survives process exit.
type Memory struct {
	mu      sync.Mutex
	enclave *memguard.Enclave
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Store seals a copy of privateKey. The caller's slice is left untouched.
func (m *Memory) Store(privateKey []byte) error {
	if len(privateKey) == 0 {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enclave != nil {
		return ErrKeyExists
	}

	// NewEnclave wipes its input, so hand it a copy.
	buf := make([]byte, len(privateKey))
	copy(buf, privateKey)
	m.enclave = memguard.NewEnclave(buf)
	if m.enclave == nil {
		return fmt.Errorf("keystore: failed to seal key")
	}
	return nil
}

// Retrieve opens the enclave and returns a copy of the key.
func (m *Memory) Retrieve() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enclave == nil {
		return nil, ErrNoKey
	}

	lb, err := m.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("keystore: open enclave: %w", err)
	}
	defer lb.Destroy()

	out := make([]byte, lb.Size())
	copy(out, lb.Bytes())
	return out, nil
}

// Clear drops the enclave. Clearing an empty store is a no-op.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enclave = nil
	return nil
}

// Has reports whether a key is held.
func (m *Memory) Has() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enclave != nil
}
