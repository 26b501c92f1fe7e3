package quantumchat

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/quantumchat/client-go/internal/crypto"
)

// LoadConversation fetches the history between the logged-in user and
// other and decrypts it in parallel. Envelopes that fail to open become
// placeholders (DecryptionFailed set, Text = PlaceholderText); one failure
// never aborts the load.
//
// The result is ordered by envelope timestamp, ties broken by ID,
// regardless of the order decryption finishes in.
//
// Envelopes the user sent are sealed to the recipient's key, so they load
// as placeholders too.
func (c *Client) LoadConversation(ctx context.Context, other string) ([]*Message, error) {
	me, err := c.identity()
	if err != nil {
		return nil, err
	}
	if c.store == nil {
		return nil, ErrMissingStore
	}

	envs, err := c.store.Conversation(ctx, me, other)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	envs = c.betweenPair(envs, me, other)

	priv, err := c.privateKey()
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(priv)

	msgs, err := c.openAll(ctx, envs, priv)
	if err != nil {
		return nil, err
	}

	sortMessages(msgs)
	return msgs, nil
}

// betweenPair drops envelopes a store returned that were not exchanged
// between me and other.
func (c *Client) betweenPair(envs []*Envelope, me, other string) []*Envelope {
	kept := envs[:0:0]
	for _, env := range envs {
		if env == nil {
			continue
		}
		if (env.From == me && env.To == other) || (env.From == other && env.To == me) {
			kept = append(kept, env)
			continue
		}
		c.log.Debug().Str("id", env.ID).Str("from", env.From).Str("to", env.To).Msg("dropping envelope outside conversation")
	}
	return kept
}

// openAll opens envs with at most cfg.concurrency workers. Results keep
// the input positions.
func (c *Client) openAll(ctx context.Context, envs []*Envelope, priv []byte) ([]*Message, error) {
	msgs := make([]*Message, len(envs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.concurrency)

	for i, env := range envs {
		i, env := i, env
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			msgs[i] = c.openOrPlaceholder(env, priv)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) openOrPlaceholder(env *Envelope, priv []byte) *Message {
	msg, err := c.sealer.Open(env, priv)
	if err != nil {
		c.log.Debug().Err(err).Str("id", env.ID).Str("from", env.From).Msg("envelope replaced by placeholder")
		return placeholder(env, err)
	}
	return msg
}

func sortMessages(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
}
