package quantumchat

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// Subscription is an active Watch.
type Subscription interface {
	// Stop ends the watch. No handler call starts after Stop returns.
	// Stop is idempotent.
	Stop() error
}

// subscription represents an active watcher.
type subscription struct {
	id      string
	stop    func() error
	manager *subscriptionManager
	active  atomic.Bool
	once    sync.Once
	err     error
}

func (s *subscription) Stop() error {
	s.once.Do(func() {
		s.active.Store(false) // Mark inactive before stopping the poller
		s.manager.remove(s.id)
		s.err = s.stop()
	})
	return s.err
}

// subscriptionManager tracks live watchers so Client.Close can stop them.
type subscriptionManager struct {
	mu     sync.Mutex
	subs   map[string]*subscription
	nextID atomic.Uint64
}

// newSubscriptionManager creates a new subscription manager.
func newSubscriptionManager() *subscriptionManager {
	return &subscriptionManager{
		subs: make(map[string]*subscription),
	}
}

// add registers a watcher whose poller is shut down by stop.
func (m *subscriptionManager) add(stop func() error) *subscription {
	sub := &subscription{
		id:      strconv.FormatUint(m.nextID.Add(1), 10),
		stop:    stop,
		manager: m,
	}
	sub.active.Store(true)

	m.mu.Lock()
	m.subs[sub.id] = sub
	m.mu.Unlock()
	return sub
}

func (m *subscriptionManager) remove(id string) {
	m.mu.Lock()
	delete(m.subs, id)
	m.mu.Unlock()
}

// len returns the number of live watchers.
func (m *subscriptionManager) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// clear stops every watcher. Called during Client.Close().
func (m *subscriptionManager) clear() error {
	m.mu.Lock()
	subs := make([]*subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	var firstErr error
	for _, sub := range subs {
		if err := sub.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
