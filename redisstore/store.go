package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	quantumchat "github.com/quantumchat/client-go"
	"github.com/quantumchat/client-go/internal/crypto"
)

// DefaultPrefix namespaces every key and channel the store touches.
const DefaultPrefix = "qchat"

// Store is a Redis-backed directory, envelope store and relay. It is safe
// for concurrent use.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	log    zerolog.Logger
}

var (
	_ quantumchat.Directory     = (*Store)(nil)
	_ quantumchat.EnvelopeStore = (*Store)(nil)
	_ quantumchat.Relay         = (*Store)(nil)
	_ quantumchat.UserLister    = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix. Default: "qchat".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithLogger sets the logger used for dropped relay messages.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// New wraps an existing Redis client.
func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		rdb:    rdb,
		prefix: DefaultPrefix,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to the Redis server at addr and checks it answers.
func Dial(ctx context.Context, addr, password string, db int, opts ...Option) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return New(rdb, opts...), nil
}

// Close closes the underlying Redis client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) keysKey() string {
	return s.prefix + ":pubkeys"
}

func (s *Store) inboxKey(username string) string {
	return s.prefix + ":inbox:" + username
}

// conversationKey is the same for both directions of a pair. Each name is
// length-prefixed so names containing ':' cannot collide.
func (s *Store) conversationKey(userA, userB string) string {
	lo, hi := userA, userB
	if hi < lo {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("%s:conv:%d:%s:%d:%s", s.prefix, len(lo), lo, len(hi), hi)
}

func (s *Store) relayChannel(username string) string {
	return s.prefix + ":relay:" + username
}

// PublicKey returns the key published for username. Keys are stored as
// base64 so the hash reads the same as the REST directory.
func (s *Store) PublicKey(ctx context.Context, username string) ([]byte, error) {
	b64, err := s.rdb.HGet(ctx, s.keysKey(), username).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", quantumchat.ErrUserNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("get public key for %s: %w", username, err)
	}

	pk, err := crypto.DecodeBase64(b64)
	if err != nil {
		return nil, fmt.Errorf("decode public key for %s: %w", username, err)
	}
	return pk, nil
}

// PutPublicKey publishes or replaces the key for username.
func (s *Store) PutPublicKey(ctx context.Context, username string, publicKey []byte) error {
	if username == "" || len(publicKey) == 0 {
		return errors.New("username and public key are required")
	}
	if err := s.rdb.HSet(ctx, s.keysKey(), username, crypto.ToBase64(publicKey)).Err(); err != nil {
		return fmt.Errorf("put public key for %s: %w", username, err)
	}
	return nil
}

// Users lists every username with a published key.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	users, err := s.rdb.HKeys(ctx, s.keysKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SaveEnvelope appends env to the pair's conversation and the recipient's
// inbox in one transaction.
func (s *Store) SaveEnvelope(ctx context.Context, env *quantumchat.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.conversationKey(env.From, env.To), data)
		pipe.RPush(ctx, s.inboxKey(env.To), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save envelope %s: %w", env.ID, err)
	}
	return nil
}

// Conversation returns every envelope exchanged between userA and userB in
// the order they were saved.
func (s *Store) Conversation(ctx context.Context, userA, userB string) ([]*quantumchat.Envelope, error) {
	return s.list(ctx, s.conversationKey(userA, userB))
}

// Inbox returns every envelope addressed to username.
func (s *Store) Inbox(ctx context.Context, username string) ([]*quantumchat.Envelope, error) {
	return s.list(ctx, s.inboxKey(username))
}

func (s *Store) list(ctx context.Context, key string) ([]*quantumchat.Envelope, error) {
	raw, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	out := make([]*quantumchat.Envelope, 0, len(raw))
	for _, item := range raw {
		env, err := decodeEnvelope(item)
		if err != nil {
			// One corrupt entry must not hide the rest of the history.
			s.log.Warn().Err(err).Str("key", key).Msg("skipping undecodable envelope")
			continue
		}
		out = append(out, env)
	}
	return out, nil
}

func decodeEnvelope(data string) (*quantumchat.Envelope, error) {
	var env quantumchat.Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", quantumchat.ErrInvalidEnvelope, err)
	}
	return &env, nil
}
