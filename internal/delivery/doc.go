// Package delivery discovers newly arrived items for a set of mailboxes.
//
// [PollingStrategy] periodically fetches each watched mailbox and hands
// every item it has not seen before to a [Handler]. It is generic over the
// item type so the same loop serves any store that can list a user's
// incoming envelopes.
//
//	s := delivery.NewPollingStrategy(delivery.Config{}, fetch, func(e *Envelope) string { return e.ID })
//	s.Start(ctx, []string{"bob"}, func(ctx context.Context, mailbox string, e *Envelope) error {
//	    // Handle new envelope
//	    return nil
//	})
//	defer s.Stop()
//
// # Backoff
//
// Polling starts at 2s. Every cycle that finds nothing new (or fails)
// multiplies the mailbox's interval by 1.5 up to 30s; any new item resets
// it. Up to 30% random jitter is added to each wait.
//
// # Backlog
//
// By default the first poll of a mailbox only records what is already
// there; set [Config.IncludeExisting] to deliver the backlog too.
//
// # Thread Safety
//
// Strategies are safe for concurrent use. Mailboxes can be added or removed
// while the strategy is running.
package delivery
