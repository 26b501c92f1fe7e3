package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	quantumchat "github.com/quantumchat/client-go"
)

// Deliver publishes env on the recipient's relay channel. Redis pub/sub is
// fire-and-forget: recipients that are not subscribed miss it and find the
// envelope in their inbox instead.
func (s *Store) Deliver(ctx context.Context, env *quantumchat.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.relayChannel(env.To), data).Err(); err != nil {
		return fmt.Errorf("publish envelope %s: %w", env.ID, err)
	}
	return nil
}

// Subscription receives envelopes relayed to one user.
type Subscription struct {
	ps   *redis.PubSub
	ch   chan *quantumchat.Envelope
	done chan struct{}
	once sync.Once
}

// Subscribe listens on username's relay channel. The subscription is
// confirmed before Subscribe returns, so envelopes published afterwards
// are not missed. Undecodable payloads are logged and dropped.
func (s *Store) Subscribe(ctx context.Context, username string) (*Subscription, error) {
	ps := s.rdb.Subscribe(ctx, s.relayChannel(username))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", username, err)
	}

	sub := &Subscription{
		ps:   ps,
		ch:   make(chan *quantumchat.Envelope),
		done: make(chan struct{}),
	}

	log := s.log.With().Str("relay", username).Logger()
	go func() {
		defer close(sub.ch)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				env, err := decodeEnvelope(msg.Payload)
				if err != nil {
					log.Warn().Err(err).Msg("dropping relayed payload")
					continue
				}
				select {
				case sub.ch <- env:
				case <-ctx.Done():
					return
				case <-sub.done:
					return
				}
			}
		}
	}()

	return sub, nil
}

// Envelopes returns the delivery channel. It is closed when the
// subscription ends.
func (s *Subscription) Envelopes() <-chan *quantumchat.Envelope {
	return s.ch
}

// Close ends the subscription. It is idempotent.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
