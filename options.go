package quantumchat

import (
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantumchat/client-go/internal/crypto"
	"github.com/quantumchat/client-go/keystore"
)

// Default polling values for Watch.
const (
	defaultPollInterval      = 2 * time.Second
	defaultPollMaxBackoff    = 30 * time.Second
	defaultBackoffMultiplier = 1.5
	defaultJitterFactor      = 0.3
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	kemName    string
	cipherName string

	directory Directory
	store     EnvelopeStore
	relay     Relay
	keys      keystore.Store

	serverURL   string
	serverToken string
	httpClient  *http.Client
	retries     int

	logger      zerolog.Logger
	concurrency int
	now         func() time.Time

	// Polling configuration for Watch
	pollingInitialInterval   time.Duration
	pollingMaxBackoff        time.Duration
	pollingBackoffMultiplier float64
	pollingJitterFactor      float64
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		kemName:                  crypto.DefaultKEM,
		cipherName:               crypto.DefaultCipher,
		retries:                  -1,
		logger:                   zerolog.Nop(),
		concurrency:              runtime.NumCPU(),
		now:                      time.Now,
		pollingInitialInterval:   defaultPollInterval,
		pollingMaxBackoff:        defaultPollMaxBackoff,
		pollingBackoffMultiplier: defaultBackoffMultiplier,
		pollingJitterFactor:      defaultJitterFactor,
	}
}

// Option configures the client.
type Option func(*clientConfig)

// WithKEM selects the key encapsulation mechanism by name.
// Default: "ML-KEM-1024".
func WithKEM(name string) Option {
	return func(c *clientConfig) {
		c.kemName = name
	}
}

// WithCipher selects the AEAD cipher by name.
// Default: "AES-256-GCM".
func WithCipher(name string) Option {
	return func(c *clientConfig) {
		c.cipherName = name
	}
}

// WithDirectory sets the public-key directory.
func WithDirectory(d Directory) Option {
	return func(c *clientConfig) {
		c.directory = d
	}
}

// WithStore sets the envelope store.
func WithStore(s EnvelopeStore) Option {
	return func(c *clientConfig) {
		c.store = s
	}
}

// WithRelay sets the real-time relay. Without one, recipients only see
// new envelopes by polling the store.
func WithRelay(r Relay) Option {
	return func(c *clientConfig) {
		c.relay = r
	}
}

// WithKeyStore sets where the private key is kept.
// Default: keystore.NewMemory().
func WithKeyStore(s keystore.Store) Option {
	return func(c *clientConfig) {
		c.keys = s
	}
}

// WithServerURL uses the chat server's REST API as directory and store,
// unless WithDirectory or WithStore override either.
func WithServerURL(url string) Option {
	return func(c *clientConfig) {
		c.serverURL = url
	}
}

// WithServerToken sets a bearer token for the REST API.
func WithServerToken(token string) Option {
	return func(c *clientConfig) {
		c.serverToken = token
	}
}

// WithHTTPClient sets a custom HTTP client for the REST API.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithRetries sets the number of retries for REST API calls.
// Default: 3.
func WithRetries(count int) Option {
	return func(c *clientConfig) {
		c.retries = count
	}
}

// WithLogger sets the logger. Default: zerolog.Nop().
// Key material and plaintext are never logged.
func WithLogger(log zerolog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = log
	}
}

// WithConcurrency bounds parallel decryption in LoadConversation.
// Default: runtime.NumCPU().
func WithConcurrency(n int) Option {
	return func(c *clientConfig) {
		c.concurrency = n
	}
}

// WithClock overrides the time source used to timestamp envelopes.
func WithClock(now func() time.Time) Option {
	return func(c *clientConfig) {
		c.now = now
	}
}

// WithPollingInitialInterval sets the initial polling interval for Watch.
// Default: 2 seconds
func WithPollingInitialInterval(interval time.Duration) Option {
	return func(c *clientConfig) {
		c.pollingInitialInterval = interval
	}
}

// WithPollingMaxBackoff sets the maximum polling backoff interval.
// When no new envelopes arrive, the polling interval increases up to this maximum.
// Default: 30 seconds
func WithPollingMaxBackoff(maxBackoff time.Duration) Option {
	return func(c *clientConfig) {
		c.pollingMaxBackoff = maxBackoff
	}
}

// WithPollingBackoffMultiplier sets the backoff multiplier for polling.
// Default: 1.5
func WithPollingBackoffMultiplier(multiplier float64) Option {
	return func(c *clientConfig) {
		c.pollingBackoffMultiplier = multiplier
	}
}

// WithPollingJitterFactor sets the jitter factor for polling intervals.
// Default: 0.3 (30%)
func WithPollingJitterFactor(factor float64) Option {
	return func(c *clientConfig) {
		c.pollingJitterFactor = factor
	}
}

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	includeExisting bool
	from            string
}

// WithBacklog delivers envelopes already in the inbox when Watch starts.
func WithBacklog() WatchOption {
	return func(c *watchConfig) {
		c.includeExisting = true
	}
}

// WithSender only delivers envelopes from the given user.
func WithSender(username string) WatchOption {
	return func(c *watchConfig) {
		c.from = username
	}
}
