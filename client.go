package quantumchat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quantumchat/client-go/internal/api"
	"github.com/quantumchat/client-go/internal/crypto"
	"github.com/quantumchat/client-go/keystore"
)

// Client is a chat participant: it owns one user's private key and seals
// and opens envelopes on that user's behalf.
type Client struct {
	cfg    *clientConfig
	sealer *Sealer
	dir    Directory
	store  EnvelopeStore
	relay  Relay
	keys   keystore.Store
	log    zerolog.Logger

	mu        sync.RWMutex
	username  string
	publicKey []byte
	closed    bool

	subs *subscriptionManager
}

// New creates a client. Nothing is fetched until the first operation.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	sealer, err := NewSealer(cfg.kemName, cfg.cipherName)
	if err != nil {
		return nil, err
	}
	if cfg.now != nil {
		sealer.now = cfg.now
	}
	if cfg.concurrency < 1 {
		cfg.concurrency = 1
	}

	c := &Client{
		cfg:    cfg,
		sealer: sealer,
		dir:    cfg.directory,
		store:  cfg.store,
		relay:  cfg.relay,
		keys:   cfg.keys,
		log:    cfg.logger,
		subs:   newSubscriptionManager(),
	}
	if c.keys == nil {
		c.keys = keystore.NewMemory()
	}

	if cfg.serverURL != "" && (c.dir == nil || c.store == nil) {
		backend, err := buildHTTPBackend(cfg)
		if err != nil {
			return nil, err
		}
		if c.dir == nil {
			c.dir = backend
		}
		if c.store == nil {
			c.store = backend
		}
	}

	return c, nil
}

// buildHTTPBackend creates the REST adapter from the given config.
func buildHTTPBackend(cfg *clientConfig) (*httpBackend, error) {
	apiCfg := api.Config{
		BaseURL:    cfg.serverURL,
		Token:      cfg.serverToken,
		HTTPClient: cfg.httpClient,
		Logger:     &cfg.logger,
	}
	if cfg.retries >= 0 {
		retry := api.DefaultRetryConfig()
		retry.MaxRetries = cfg.retries
		apiCfg.Retry = retry
	}

	apiClient, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, err
	}
	return &httpBackend{api: apiClient, log: cfg.logger}, nil
}

// Username returns the logged-in user, or "" if none.
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// PublicKey returns a copy of the logged-in user's public key.
func (c *Client) PublicKey() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return bytes.Clone(c.publicKey)
}

// Sealer returns the client's sealer.
func (c *Client) Sealer() *Sealer {
	return c.sealer
}

func (c *Client) identity() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return "", ErrClientClosed
	}
	if c.username == "" {
		return "", ErrNotRegistered
	}
	return c.username, nil
}

// Register generates a keypair for username, keeps the private key in the
// key store and publishes the public key to the directory. The returned
// keypair should be exported with ExportKeyFile: if the private key is
// lost, messages sent to this user cannot be read.
//
// Publishing replaces any key previously registered under username.
func (c *Client) Register(ctx context.Context, username string) (*Keypair, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if c.dir == nil {
		return nil, ErrMissingDirectory
	}

	kp, err := crypto.GenerateKeypair(c.sealer.kem)
	if err != nil {
		return nil, err
	}

	if err := c.login(username, kp); err != nil {
		return nil, err
	}

	if err := c.dir.PutPublicKey(ctx, username, kp.PublicKey); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("publish public key: %w", err)
	}

	c.log.Info().Str("user", username).Str("kem", kp.KEM).Msg("registered")
	return kp, nil
}

// Login loads an existing keypair for username. The pair must be
// consistent for the client's KEM.
func (c *Client) Login(username string, kp *Keypair) error {
	if kp == nil {
		return fmt.Errorf("%w: nil keypair", ErrKeyValidation)
	}
	if _, err := crypto.NewKeypairFromBytes(c.sealer.kem, kp.PrivateKey, kp.PublicKey); err != nil {
		return err
	}
	return c.login(username, kp)
}

func (c *Client) login(username string, kp *Keypair) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	// A new identity replaces whatever key the store held.
	if err := c.keys.Clear(); err != nil {
		return err
	}
	if err := c.keys.Store(kp.PrivateKey); err != nil {
		return err
	}
	c.username = username
	c.publicKey = bytes.Clone(kp.PublicKey)
	return nil
}

// Resume logs in as username with the private key already held by the key
// store, typically a keystore.File written by an earlier session. The
// public key is re-derived from the private key.
func (c *Client) Resume(username string) error {
	priv, err := c.privateKey()
	if err != nil {
		return err
	}
	defer crypto.Wipe(priv)

	kp, err := crypto.KeypairFromPrivateKey(c.sealer.kem, priv)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.username = username
	c.publicKey = kp.PublicKey
	return nil
}

// ImportKey loads a key backup file for username and logs in with it.
func (c *Client) ImportKey(username string, keyFile []byte) error {
	kf, err := ImportKeyFile(keyFile, username, c.sealer.kem.Name())
	if err != nil {
		return err
	}
	if kf.Keypair.KEM != c.sealer.kem.Name() {
		return fmt.Errorf("%w: key file is %s, client uses %s",
			ErrKeyValidation, kf.Keypair.KEM, c.sealer.kem.Name())
	}
	return c.login(username, kf.Keypair)
}

// ExportKey renders the logged-in user's key backup file.
func (c *Client) ExportKey() ([]byte, error) {
	username, err := c.identity()
	if err != nil {
		return nil, err
	}
	priv, err := c.privateKey()
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(priv)

	kp := &Keypair{PrivateKey: priv, PublicKey: c.PublicKey(), KEM: c.sealer.kem.Name()}
	return ExportKeyFile(username, kp, c.cfg.now()), nil
}

// Logout clears the private key and forgets the user.
func (c *Client) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.username = ""
	c.publicKey = nil
	return c.keys.Clear()
}

func (c *Client) privateKey() ([]byte, error) {
	priv, err := c.keys.Retrieve()
	if err != nil {
		return nil, wrapError(err)
	}
	if err := crypto.ValidatePrivateKey(c.sealer.kem, priv); err != nil {
		crypto.Wipe(priv)
		return nil, err
	}
	return priv, nil
}

// recipientKey fetches a recipient's public key from the directory.
func (c *Client) recipientKey(ctx context.Context, to string) ([]byte, error) {
	if c.dir == nil {
		return nil, ErrMissingDirectory
	}
	pk, err := c.dir.PublicKey(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", to, err)
	}
	return pk, nil
}

// Users lists the users with a published public key, sorted. The
// directory must implement UserLister; the REST server and redisstore do.
func (c *Client) Users(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrClientClosed
	}
	if c.dir == nil {
		return nil, ErrMissingDirectory
	}
	lister, ok := c.dir.(UserLister)
	if !ok {
		return nil, ErrUnsupported
	}

	users, err := lister.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	slices.Sort(users)
	return users, nil
}

// SendText seals text for a recipient, saves it to the store and hands it
// to the relay.
func (c *Client) SendText(ctx context.Context, to, text string) (*Envelope, error) {
	from, err := c.identity()
	if err != nil {
		return nil, err
	}
	pk, err := c.recipientKey(ctx, to)
	if err != nil {
		return nil, err
	}

	env, err := c.sealer.SealText(from, to, pk, text)
	if err != nil {
		return nil, err
	}
	return env, c.dispatch(ctx, env)
}

// SendFile reads r (at most MaxFileSize bytes) and sends it as a file.
func (c *Client) SendFile(ctx context.Context, to, name, mimeType string, r io.Reader) (*Envelope, error) {
	from, err := c.identity()
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, MaxFileSize)
	}

	pk, err := c.recipientKey(ctx, to)
	if err != nil {
		return nil, err
	}

	env, err := c.sealer.SealFile(from, to, pk, name, mimeType, data)
	if err != nil {
		return nil, err
	}
	return env, c.dispatch(ctx, env)
}

// dispatch persists an envelope, then relays it. Relay failures are only
// logged: the store is authoritative and recipients will find the envelope
// there.
func (c *Client) dispatch(ctx context.Context, env *Envelope) error {
	if c.store == nil {
		return ErrMissingStore
	}
	if err := c.store.SaveEnvelope(ctx, env); err != nil {
		return fmt.Errorf("save envelope: %w", err)
	}

	if c.relay != nil {
		if err := c.relay.Deliver(ctx, env); err != nil {
			c.log.Warn().Err(err).Str("id", env.ID).Str("to", env.To).Msg("relay delivery failed")
		}
	}
	return nil
}

// Open decrypts a single envelope with the logged-in user's private key.
func (c *Client) Open(env *Envelope) (*Message, error) {
	if _, err := c.identity(); err != nil {
		return nil, err
	}
	priv, err := c.privateKey()
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(priv)

	return c.sealer.Open(env, priv)
}

// Close stops all watchers. The private key stays in the key store; call
// Logout to clear it.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.subs.clear()
}
