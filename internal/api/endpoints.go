package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// PublicKey fetches the base64 public key published for username.
// A 404 matches ErrUserNotFound.
func (c *Client) PublicKey(ctx context.Context, username string) (string, error) {
	path := "/api/users/public-key?username=" + url.QueryEscape(username)

	var result PublicKeyRecord
	if err := c.Do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return "", WithResourceType(err, ResourceUser)
	}
	if result.PublicKey == "" {
		return "", &APIError{
			StatusCode:   http.StatusNotFound,
			Message:      "empty public key for " + username,
			ResourceType: ResourceUser,
		}
	}
	return result.PublicKey, nil
}

// PutPublicKey publishes the base64 public key for username.
func (c *Client) PutPublicKey(ctx context.Context, username, publicKey string) error {
	req := PublicKeyRecord{Username: username, PublicKey: publicKey}
	return WithResourceType(c.Do(ctx, http.MethodPost, "/api/users/public-key", req, nil), ResourceUser)
}

// SendMessage stores a sealed envelope on the server.
func (c *Client) SendMessage(ctx context.Context, env *Envelope) error {
	var result sendMessageResponse
	if err := c.Do(ctx, http.MethodPost, "/api/send-message", env, &result); err != nil {
		return WithResourceType(err, ResourceMessage)
	}
	// Any 2xx is an acknowledgement; only an explicit success=false rejects.
	if result.Success != nil && !*result.Success {
		reason := result.Error
		if reason == "" {
			reason = result.Message
		}
		if reason == "" {
			return ErrMessageRejected
		}
		return fmt.Errorf("%w: %s", ErrMessageRejected, reason)
	}
	return nil
}

// Conversation returns every envelope exchanged between userA and userB.
func (c *Client) Conversation(ctx context.Context, userA, userB string) ([]*Envelope, error) {
	q := url.Values{}
	q.Set("user1", userA)
	q.Set("user2", userB)

	var result []*Envelope
	if err := c.Do(ctx, http.MethodGet, "/api/messages?"+q.Encode(), nil, &result); err != nil {
		return nil, WithResourceType(err, ResourceMessage)
	}
	return result, nil
}

// Users lists every account the server knows.
func (c *Client) Users(ctx context.Context) ([]UserRecord, error) {
	var result []UserRecord
	if err := c.Do(ctx, http.MethodGet, "/api/users", nil, &result); err != nil {
		return nil, WithResourceType(err, ResourceDirectory)
	}
	return result, nil
}

// Inbox returns every envelope addressed to username. The ?user= query is
// an extension; servers without it answer 400 or 404, which
// IsMissingEndpoint recognizes.
func (c *Client) Inbox(ctx context.Context, username string) ([]*Envelope, error) {
	path := "/api/messages?user=" + url.QueryEscape(username)

	var result []*Envelope
	if err := c.Do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, WithResourceType(err, ResourceMessage)
	}
	return result, nil
}
