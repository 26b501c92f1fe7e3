package delivery

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Fetcher lists everything currently waiting in a mailbox. Items already
// delivered are filtered out by the strategy, so a fetcher may return the
// full backlog every time.
type Fetcher[T any] func(ctx context.Context, mailbox string) ([]T, error)

// Handler is invoked once for each newly discovered item. A returned error
// is logged; the item is not redelivered.
type Handler[T any] func(ctx context.Context, mailbox string, item T) error

// Strategy defines the interface for message delivery mechanisms.
//
// The typical lifecycle is:
//  1. Create a strategy with NewXxxStrategy(cfg)
//  2. Call Start(ctx, mailboxes, handler) to begin receiving items
//  3. Optionally call AddMailbox/RemoveMailbox to modify watched mailboxes
//  4. Call Stop() when done to release resources
//
// All implementations are safe for concurrent use.
type Strategy[T any] interface {
	// Start begins watching the given mailboxes. Start returns immediately;
	// delivery is asynchronous.
	Start(ctx context.Context, mailboxes []string, handler Handler[T]) error

	// Stop shuts down the strategy. After Stop returns, no more items will
	// be delivered. Stop is idempotent.
	Stop() error

	// AddMailbox adds a mailbox to watch.
	AddMailbox(mailbox string) error

	// RemoveMailbox stops watching a mailbox after the current cycle.
	RemoveMailbox(mailbox string) error

	// Name returns the strategy name for logging and debugging.
	Name() string
}

// Config holds configuration shared by all delivery strategies.
type Config struct {
	// PollingInitialInterval is the starting interval between polls.
	// If zero, defaults to DefaultPollingInitialInterval.
	PollingInitialInterval time.Duration

	// PollingMaxBackoff is the maximum interval between polls.
	// If zero, defaults to DefaultPollingMaxBackoff.
	PollingMaxBackoff time.Duration

	// PollingBackoffMultiplier is the factor by which the interval
	// increases after each poll with nothing new.
	// If zero, defaults to DefaultPollingBackoffMultiplier.
	PollingBackoffMultiplier float64

	// PollingJitterFactor is the maximum random jitter added to
	// poll intervals (as a fraction of the interval).
	// If zero, defaults to DefaultPollingJitterFactor.
	PollingJitterFactor float64

	// IncludeExisting delivers the backlog found on the first poll. When
	// false the first poll only primes the seen-set.
	IncludeExisting bool

	// Logger receives poll and handler errors. Defaults to a no-op logger.
	Logger *zerolog.Logger
}

// Default polling configuration values.
const (
	DefaultPollingInitialInterval   = 2 * time.Second
	DefaultPollingMaxBackoff        = 30 * time.Second
	DefaultPollingBackoffMultiplier = 1.5
	DefaultPollingJitterFactor      = 0.3
)

func (c Config) withDefaults() Config {
	if c.PollingInitialInterval <= 0 {
		c.PollingInitialInterval = DefaultPollingInitialInterval
	}
	if c.PollingMaxBackoff <= 0 {
		c.PollingMaxBackoff = DefaultPollingMaxBackoff
	}
	if c.PollingMaxBackoff < c.PollingInitialInterval {
		c.PollingMaxBackoff = c.PollingInitialInterval
	}
	if c.PollingBackoffMultiplier <= 1 {
		c.PollingBackoffMultiplier = DefaultPollingBackoffMultiplier
	}
	if c.PollingJitterFactor <= 0 {
		c.PollingJitterFactor = DefaultPollingJitterFactor
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	return c
}
