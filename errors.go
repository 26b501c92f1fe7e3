package quantumchat

import (
	"errors"
	"fmt"

	"github.com/quantumchat/client-go/internal/api"
	"github.com/quantumchat/client-go/internal/crypto"
	"github.com/quantumchat/client-go/keystore"
)

// Sentinel errors for errors.Is() checks.
//
// The cryptographic sentinels are the same values returned by the
// primitives, so errors.Is works through any amount of wrapping.
var (
	// ErrKeyGeneration is returned when the random source fails during key
	// generation.
	ErrKeyGeneration = crypto.ErrKeyGeneration

	// ErrDecapsulation is returned for a malformed encapsulated key.
	ErrDecapsulation = crypto.ErrDecapsulation

	// ErrKeyDerivation is returned when a session key cannot be derived.
	ErrKeyDerivation = crypto.ErrKeyDerivation

	// ErrAuthentication is returned when an envelope fails authentication:
	// wrong private key, tampered ciphertext, tag, nonce or metadata.
	ErrAuthentication = crypto.ErrAuthentication

	// ErrKeyValidation is returned when a private key fails the structural
	// check for its KEM.
	ErrKeyValidation = crypto.ErrKeyValidation

	// ErrDecryptionFailed matches every *DecryptionError.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrNoPrivateKey is returned when an operation needs the private key
	// and none is held. Without a backup file the key cannot be recovered.
	ErrNoPrivateKey = errors.New("no private key available")

	// ErrUsernameMismatch is returned when a key file belongs to another user.
	ErrUsernameMismatch = errors.New("key file belongs to a different user")

	// ErrInvalidKeyFile is returned when a key backup file cannot be parsed.
	ErrInvalidKeyFile = errors.New("invalid key file")

	// ErrInvalidEnvelope is returned when an envelope is missing fields or
	// carries undecodable binary data.
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// ErrUserNotFound is returned when the directory has no key for a user.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotRegistered is returned when an operation needs a logged-in user.
	ErrNotRegistered = errors.New("not registered or logged in")

	// ErrMissingDirectory is returned when no public-key directory is configured.
	ErrMissingDirectory = errors.New("no directory configured")

	// ErrMissingStore is returned when no envelope store is configured.
	ErrMissingStore = errors.New("no envelope store configured")

	// ErrUnsupported is returned when the configured backend cannot perform
	// an optional operation, such as listing users.
	ErrUnsupported = errors.New("operation not supported by backend")

	// ErrFileTooLarge is returned when an attachment exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client has been closed")
)

// QuantumChatError is implemented by all structured SDK errors.
type QuantumChatError interface {
	error
	QuantumChatError() // marker method
}

// Decryption stages reported by DecryptionError.
const (
	StageDecode = "decode"
	StageKEM    = "kem"
	StageHKDF   = "hkdf"
	StageAEAD   = "aead"
)

// DecryptionError reports which step of opening an envelope failed.
type DecryptionError struct {
	Stage      string // StageDecode, StageKEM, StageHKDF or StageAEAD
	EnvelopeID string
	Err        error
}

func (e *DecryptionError) Error() string {
	if e.EnvelopeID != "" {
		return fmt.Sprintf("decryption failed at %s for envelope %s: %v", e.Stage, e.EnvelopeID, e.Err)
	}
	return fmt.Sprintf("decryption failed at %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *DecryptionError) Is(target error) bool {
	return target == ErrDecryptionFailed
}

// QuantumChatError implements the QuantumChatError interface.
func (e *DecryptionError) QuantumChatError() {}

// APIError represents an HTTP error from the chat server.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string

	notFoundUser bool
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		if e.Message != "" {
			return fmt.Sprintf("API error %d: %s (request_id: %s)", e.StatusCode, e.Message, e.RequestID)
		}
		return fmt.Sprintf("API error %d (request_id: %s)", e.StatusCode, e.RequestID)
	}
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	return target == ErrUserNotFound && e.notFoundUser
}

// QuantumChatError implements the QuantumChatError interface.
func (e *APIError) QuantumChatError() {}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// QuantumChatError implements the QuantumChatError interface.
func (e *NetworkError) QuantumChatError() {}

// wrapError converts internal API and key store errors to public errors.
// This ensures that errors.Is() checks work with public sentinel errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode:   apiErr.StatusCode,
			Message:      apiErr.Message,
			RequestID:    apiErr.RequestID,
			notFoundUser: errors.Is(apiErr, api.ErrUserNotFound),
		}
	}

	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		return &NetworkError{
			Err:     netErr.Err,
			URL:     netErr.URL,
			Attempt: netErr.Attempt,
		}
	}

	if errors.Is(err, keystore.ErrNoKey) {
		return fmt.Errorf("%w: %w", ErrNoPrivateKey, err)
	}

	return err
}
