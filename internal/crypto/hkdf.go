package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveKey derives a key using HKDF-SHA-256.
//
// Parameters:
//   - secret: the input key material (e.g., shared secret from KEM)
//   - salt: optional salt value; if empty, a zero-filled salt is used
//   - info: context/application-specific info for domain separation
//   - length: desired output key length in bytes
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	if len(salt) == 0 {
		salt = make([]byte, sha256.Size)
	}

	reader := hkdf.New(sha256.New, secret, salt, info)
	key := make([]byte, length)

	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return key, nil
}

// DeriveSessionKey turns a KEM shared secret into the symmetric key for one
// envelope exchanged between participantA and participantB.
//
// The participants are sorted before building the HKDF info, so both sides
// derive the same key regardless of who sent the envelope:
//
//	info = HKDFContext || len(lo) (4 bytes BE) || lo || len(hi) (4 bytes BE) || hi
//
// The salt is the fixed HKDFSalt.
func DeriveSessionKey(sharedSecret []byte, participantA, participantB string) ([]byte, error) {
	if len(sharedSecret) != SharedSecretSize {
		return nil, fmt.Errorf("%w: shared secret is %d bytes, want %d",
			ErrKeyDerivation, len(sharedSecret), SharedSecretSize)
	}

	key, err := DeriveKey(sharedSecret, []byte(HKDFSalt), SessionContext(participantA, participantB), SessionKeySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}
	return key, nil
}

// SessionContext builds the HKDF info for a participant pair. The result is
// independent of argument order.
func SessionContext(participantA, participantB string) []byte {
	lo, hi := participantA, participantB
	if hi < lo {
		lo, hi = hi, lo
	}

	info := make([]byte, 0, len(HKDFContext)+8+len(lo)+len(hi))
	info = append(info, HKDFContext...)
	info = binary.BigEndian.AppendUint32(info, uint32(len(lo)))
	info = append(info, lo...)
	info = binary.BigEndian.AppendUint32(info, uint32(len(hi)))
	info = append(info, hi...)
	return info
}
