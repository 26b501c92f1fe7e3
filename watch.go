package quantumchat

import (
	"context"
	"errors"

	"github.com/quantumchat/client-go/internal/crypto"
	"github.com/quantumchat/client-go/internal/delivery"
)

// MessageHandler receives messages discovered by Watch. Failed envelopes
// arrive as placeholders.
type MessageHandler func(*Message)

// Watch polls the store for envelopes addressed to the logged-in user and
// passes each new one, opened, to handler. Handler calls are sequential.
//
// Polling backs off from the configured initial interval to the maximum
// while nothing arrives and resets when something does. By default only
// envelopes that arrive after Watch starts are delivered; see WithBacklog.
//
// The handler must not call Stop on its own subscription; cancel ctx
// instead.
func (c *Client) Watch(ctx context.Context, handler MessageHandler, opts ...WatchOption) (Subscription, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	me, err := c.identity()
	if err != nil {
		return nil, err
	}
	if c.store == nil {
		return nil, ErrMissingStore
	}

	wc := &watchConfig{}
	for _, opt := range opts {
		opt(wc)
	}

	log := c.log.With().Str("watch", me).Logger()
	strategy := delivery.NewPollingStrategy[*Envelope](delivery.Config{
		PollingInitialInterval:   c.cfg.pollingInitialInterval,
		PollingMaxBackoff:        c.cfg.pollingMaxBackoff,
		PollingBackoffMultiplier: c.cfg.pollingBackoffMultiplier,
		PollingJitterFactor:      c.cfg.pollingJitterFactor,
		IncludeExisting:          wc.includeExisting,
		Logger:                   &log,
	}, c.store.Inbox, (*Envelope).dedupeKey)

	// Registration and start happen under the client lock so a concurrent
	// Close either sees the subscription or makes Watch fail.
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	sub := c.subs.add(strategy.Stop)

	onEnvelope := func(_ context.Context, _ string, env *Envelope) error {
		if !sub.active.Load() {
			return nil
		}
		if wc.from != "" && env.From != wc.from {
			return nil
		}

		priv, err := c.privateKey()
		if err != nil {
			return err
		}
		defer crypto.Wipe(priv)

		handler(c.openOrPlaceholder(env, priv))
		return nil
	}

	if err := strategy.Start(ctx, []string{me}, onEnvelope); err != nil {
		_ = sub.Stop()
		return nil, err
	}
	return sub, nil
}
