package api

import (
	"errors"
	"fmt"
)

// Common API errors that can be checked with errors.Is.
var (
	// ErrUnauthorized indicates the bearer token was rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUserNotFound indicates the requested user has no published key.
	ErrUserNotFound = errors.New("user not found")
	// ErrBadRequest indicates the server rejected the request payload.
	ErrBadRequest = errors.New("bad request")
	// ErrConflict indicates the resource already exists.
	ErrConflict = errors.New("conflict")
	// ErrRateLimited indicates the rate limit has been exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrMessageRejected indicates a 2xx reply that explicitly refused
	// to store the envelope.
	ErrMessageRejected = errors.New("server rejected message")
)

// ResourceType indicates which type of resource an error relates to.
type ResourceType string

const (
	// ResourceUnknown indicates the resource type is not specified.
	ResourceUnknown ResourceType = ""
	// ResourceUser indicates the error relates to a user's public key.
	ResourceUser ResourceType = "user"
	// ResourceMessage indicates the error relates to a stored envelope.
	ResourceMessage ResourceType = "message"
	// ResourceDirectory indicates the error relates to the user listing.
	ResourceDirectory ResourceType = "directory"
)

// APIError represents an HTTP error from the chat server.
type APIError struct {
	StatusCode   int
	Message      string
	RequestID    string
	ResourceType ResourceType
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
	switch e.StatusCode {
	case 400:
		return target == ErrBadRequest
	case 401, 403:
		return target == ErrUnauthorized
	case 404:
		// Only user lookups map to ErrUserNotFound; a 404 elsewhere
		// means the server lacks the endpoint.
		return target == ErrUserNotFound && (e.ResourceType == ResourceUser || e.ResourceType == ResourceUnknown)
	case 409:
		return target == ErrConflict
	case 429:
		return target == ErrRateLimited
	}
	return false
}

// WithResourceType returns a copy of the error with the resource type set.
// If the error is not an *APIError, it is returned unchanged.
func WithResourceType(err error, rt ResourceType) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode:   apiErr.StatusCode,
			Message:      apiErr.Message,
			RequestID:    apiErr.RequestID,
			ResourceType: rt,
		}
	}
	return err
}

// IsMissingEndpoint reports whether err means the server does not
// implement the route: 404 or 405, or 400 on a message route whose query
// it did not understand.
func IsMissingEndpoint(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case 404, 405:
		return apiErr.ResourceType != ResourceUser
	case 400:
		return apiErr.ResourceType == ResourceMessage
	}
	return false
}

// NetworkError represents a network-level failure after all retries.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error after %d attempt(s): %v", e.Attempt, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
