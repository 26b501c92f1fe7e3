package quantumchat

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/quantumchat/client-go/internal/api"
	"github.com/quantumchat/client-go/internal/crypto"
)

// Directory maps usernames to published public keys.
type Directory interface {
	// PublicKey returns the raw public key for username, or an error
	// matching ErrUserNotFound.
	PublicKey(ctx context.Context, username string) ([]byte, error)
	// PutPublicKey publishes (or replaces) the public key for username.
	PutPublicKey(ctx context.Context, username string, publicKey []byte) error
}

// UserLister is implemented by directories that can enumerate their users.
type UserLister interface {
	// Users returns the usernames that have published a public key.
	Users(ctx context.Context) ([]string, error)
}

// EnvelopeStore persists sealed envelopes. It is the source of truth for
// conversation history.
type EnvelopeStore interface {
	SaveEnvelope(ctx context.Context, env *Envelope) error
	// Conversation returns every envelope exchanged between userA and userB
	// in either direction.
	Conversation(ctx context.Context, userA, userB string) ([]*Envelope, error)
	// Inbox returns every envelope addressed to username.
	Inbox(ctx context.Context, username string) ([]*Envelope, error)
}

// Relay pushes envelopes to online recipients. Delivery is best effort.
type Relay interface {
	Deliver(ctx context.Context, env *Envelope) error
}

// httpBackend adapts the REST client to Directory, UserLister and
// EnvelopeStore.
type httpBackend struct {
	api *api.Client
	log zerolog.Logger

	// pairOnly is set once the server has shown it cannot list an inbox.
	pairOnly atomic.Bool
}

func (h *httpBackend) PublicKey(ctx context.Context, username string) ([]byte, error) {
	b64, err := h.api.PublicKey(ctx, username)
	if err != nil {
		return nil, wrapError(err)
	}
	pk, err := crypto.DecodeBase64(b64)
	if err != nil {
		return nil, fmt.Errorf("decode public key for %s: %w", username, err)
	}
	return pk, nil
}

func (h *httpBackend) PutPublicKey(ctx context.Context, username string, publicKey []byte) error {
	return wrapError(h.api.PutPublicKey(ctx, username, crypto.ToBase64(publicKey)))
}

func (h *httpBackend) SaveEnvelope(ctx context.Context, env *Envelope) error {
	return wrapError(h.api.SendMessage(ctx, toWire(env)))
}

func (h *httpBackend) Conversation(ctx context.Context, userA, userB string) ([]*Envelope, error) {
	wire, err := h.api.Conversation(ctx, userA, userB)
	if err != nil {
		return nil, wrapError(err)
	}
	return fromWireList(wire), nil
}

func (h *httpBackend) Users(ctx context.Context) ([]string, error) {
	records, err := h.api.Users(ctx)
	if err != nil {
		return nil, wrapError(err)
	}
	users := make([]string, 0, len(records))
	for _, r := range records {
		if r.Username != "" && r.PublicKey != "" {
			users = append(users, r.Username)
		}
	}
	return users, nil
}

// Inbox uses the server's ?user= listing when it has one. Servers that
// only answer per-pair queries are scanned one conversation at a time.
func (h *httpBackend) Inbox(ctx context.Context, username string) ([]*Envelope, error) {
	if !h.pairOnly.Load() {
		wire, err := h.api.Inbox(ctx, username)
		if err == nil {
			return fromWireList(wire), nil
		}
		if !api.IsMissingEndpoint(err) {
			return nil, wrapError(err)
		}
		h.pairOnly.Store(true)
		h.log.Debug().Err(err).Msg("server has no inbox listing, scanning conversations")
	}
	return h.scanInbox(ctx, username)
}

func (h *httpBackend) scanInbox(ctx context.Context, username string) ([]*Envelope, error) {
	peers, err := h.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var out []*Envelope
	for _, peer := range peers {
		if peer == username {
			continue
		}
		wire, err := h.api.Conversation(ctx, username, peer)
		if err != nil {
			return nil, wrapError(err)
		}
		for _, w := range wire {
			if w != nil && w.To == username && w.From == peer {
				out = append(out, fromWire(w))
			}
		}
	}
	return out, nil
}

func toWire(e *Envelope) *api.Envelope {
	return &api.Envelope{
		ID:              e.ID,
		From:            e.From,
		To:              e.To,
		EncapsulatedKey: e.EncapsulatedKey,
		Ciphertext:      e.Ciphertext,
		EncryptedFile:   e.EncryptedFile,
		IV:              e.IV,
		Timestamp:       e.Timestamp,
		Type:            string(e.Type),
		FileName:        e.FileName,
		FileType:        e.FileType,
		KEM:             e.KEM,
		Cipher:          e.Cipher,
	}
}

func fromWire(w *api.Envelope) *Envelope {
	return &Envelope{
		ID:              w.ID,
		From:            w.From,
		To:              w.To,
		EncapsulatedKey: w.EncapsulatedKey,
		Ciphertext:      w.Ciphertext,
		EncryptedFile:   w.EncryptedFile,
		IV:              w.IV,
		Timestamp:       w.Timestamp,
		Type:            MessageType(w.Type),
		FileName:        w.FileName,
		FileType:        w.FileType,
		KEM:             w.KEM,
		Cipher:          w.Cipher,
	}
}

func fromWireList(wire []*api.Envelope) []*Envelope {
	out := make([]*Envelope, 0, len(wire))
	for _, w := range wire {
		if w != nil {
			out = append(out, fromWire(w))
		}
	}
	return out
}
