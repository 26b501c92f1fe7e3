package delivery

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// PollingStrategy discovers new items by repeatedly fetching each watched
// mailbox. Intervals back off while nothing new arrives and reset as soon as
// something does.
type PollingStrategy[T any] struct {
	cfg   Config
	fetch Fetcher[T]
	key   func(T) string

	mu        sync.RWMutex
	mailboxes map[string]*polledMailbox
	handler   Handler[T]
	cancel    context.CancelFunc
	done      chan struct{}
	started   bool
}

type polledMailbox struct {
	name     string
	seen     map[string]struct{}
	primed   bool
	interval time.Duration
}

// NewPollingStrategy creates a polling strategy. key must return a stable
// unique identifier for each item.
func NewPollingStrategy[T any](cfg Config, fetch Fetcher[T], key func(T) string) *PollingStrategy[T] {
	return &PollingStrategy[T]{
		cfg:       cfg.withDefaults(),
		fetch:     fetch,
		key:       key,
		mailboxes: make(map[string]*polledMailbox),
	}
}

// Name returns the strategy name.
func (p *PollingStrategy[T]) Name() string {
	return "polling"
}

// Start begins polling the given mailboxes.
func (p *PollingStrategy[T]) Start(ctx context.Context, mailboxes []string, handler Handler[T]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	p.handler = handler
	for _, name := range mailboxes {
		p.mailboxes[name] = p.newMailbox(name)
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.started = true

	go p.pollLoop(ctx, p.done)
	return nil
}

// Stop cancels polling and waits for the loop to exit. It must not be
// called from inside a Handler.
func (p *PollingStrategy[T]) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.started = false
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return nil
}

// AddMailbox adds a mailbox to watch. Adding a watched mailbox is a no-op.
func (p *PollingStrategy[T]) AddMailbox(mailbox string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.mailboxes[mailbox]; !ok {
		p.mailboxes[mailbox] = p.newMailbox(mailbox)
	}
	return nil
}

// RemoveMailbox removes a mailbox from watching.
func (p *PollingStrategy[T]) RemoveMailbox(mailbox string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.mailboxes, mailbox)
	return nil
}

func (p *PollingStrategy[T]) newMailbox(name string) *polledMailbox {
	return &polledMailbox{
		name:     name,
		seen:     make(map[string]struct{}),
		primed:   p.cfg.IncludeExisting,
		interval: p.cfg.PollingInitialInterval,
	}
}

func (p *PollingStrategy[T]) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		wait := p.PollOnce(ctx)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// PollOnce polls every watched mailbox a single time and returns how long
// to wait before the next cycle. It must not run concurrently with a
// started loop.
func (p *PollingStrategy[T]) PollOnce(ctx context.Context) time.Duration {
	p.mu.RLock()
	list := make([]*polledMailbox, 0, len(p.mailboxes))
	for _, mb := range p.mailboxes {
		list = append(list, mb)
	}
	handler := p.handler
	p.mu.RUnlock()

	if len(list) == 0 {
		return p.cfg.PollingInitialInterval
	}

	var minWait time.Duration
	for _, mb := range list {
		if ctx.Err() != nil {
			return 0
		}
		p.pollMailbox(ctx, mb, handler)

		wait := p.waitDuration(mb)
		if minWait == 0 || wait < minWait {
			minWait = wait
		}
	}
	return minWait
}

func (p *PollingStrategy[T]) pollMailbox(ctx context.Context, mb *polledMailbox, handler Handler[T]) {
	log := p.cfg.Logger.With().Str("mailbox", mb.name).Logger()

	items, err := p.fetch(ctx, mb.name)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("poll failed")
		}
		p.backoff(mb)
		return
	}

	fresh := 0
	for _, item := range items {
		id := p.key(item)
		if _, seen := mb.seen[id]; seen {
			continue
		}
		mb.seen[id] = struct{}{}

		if !mb.primed {
			continue
		}
		fresh++

		if handler != nil {
			if err := handler(ctx, mb.name, item); err != nil {
				log.Warn().Err(err).Str("id", id).Msg("handler failed")
			}
		}
	}
	mb.primed = true

	if fresh > 0 {
		mb.interval = p.cfg.PollingInitialInterval
		return
	}
	p.backoff(mb)
}

func (p *PollingStrategy[T]) backoff(mb *polledMailbox) {
	next := time.Duration(float64(mb.interval) * p.cfg.PollingBackoffMultiplier)
	if next > p.cfg.PollingMaxBackoff {
		next = p.cfg.PollingMaxBackoff
	}
	mb.interval = next
}

func (p *PollingStrategy[T]) waitDuration(mb *polledMailbox) time.Duration {
	jitter := time.Duration(rand.Float64() * p.cfg.PollingJitterFactor * float64(mb.interval))
	return mb.interval + jitter
}
