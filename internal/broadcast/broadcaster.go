package broadcast

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/coinfeed/internal/metrics"
	"github.com/rickgao/coinfeed/internal/model"
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("broadcaster closed")

// Source provides the snapshot a new subscriber starts from.
type Source interface {
	Read() (*model.Snapshot, bool)
}

// Subscription is one subscriber's handle.
type Subscription struct {
	id      uuid.UUID
	mailbox chan *model.Snapshot

	mu     sync.Mutex
	last   *model.Snapshot
	closed bool
}

func newSubscription() *Subscription {
	return &Subscription{
		id:      uuid.New(),
		mailbox: make(chan *model.Snapshot, 1),
	}
}

// ID identifies the subscription.
func (s *Subscription) ID() uuid.UUID {
	return s.id
}

// Updates delivers snapshots. It is closed when the subscription ends.
func (s *Subscription) Updates() <-chan *model.Snapshot {
	return s.mailbox
}

// offer places snap in the mailbox, replacing an undelivered snapshot.
// It reports whether snap was accepted and whether it replaced another.
func (s *Subscription) offer(snap *model.Snapshot) (accepted, replaced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || snap == s.last {
		return false, false
	}

	select {
	case <-s.mailbox:
		replaced = true
	default:
	}

	// This is the only sender and the slot was just emptied, so the send
	// cannot block.
	s.mailbox <- snap
	s.last = snap
	return true, replaced
}

func (s *Subscription) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.closed = true
	close(s.mailbox)
	return true
}

// Broadcaster tracks live subscriptions.
type Broadcaster struct {
	source  Source
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	subs   map[uuid.UUID]*Subscription
	closed bool
}

// New creates a Broadcaster that greets new subscribers from source.
func New(source Source, m *metrics.Metrics, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		source:  source,
		logger:  logger,
		metrics: m,
		subs:    make(map[uuid.UUID]*Subscription),
	}
}

// Subscribe registers a subscriber and immediately offers it the current
// snapshot, if there is one.
func (b *Broadcaster) Subscribe() (*Subscription, error) {
	sub := newSubscription()

	// Holding the write lock while reading the source orders this offer
	// before any Notify for a snapshot published after the read.
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	b.subs[sub.id] = sub
	b.metrics.SetSubscribers(len(b.subs))

	if snap, ok := b.source.Read(); ok {
		sub.offer(snap)
	}

	b.logger.Debug("subscriber connected",
		"subscriber", sub.id,
		"subscribers", len(b.subs),
	)

	return sub, nil
}

// Unsubscribe removes a subscriber and closes its updates channel. It is
// safe to call more than once.
func (b *Broadcaster) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		b.metrics.SetSubscribers(len(b.subs))
	}
	remaining := len(b.subs)
	b.mu.Unlock()

	if !ok {
		return
	}

	sub.close()
	b.logger.Debug("subscriber disconnected",
		"subscriber", id,
		"subscribers", remaining,
	)
}

// Notify offers snap to every current subscriber and returns how many
// accepted it. It does not wait for delivery.
func (b *Broadcaster) Notify(snap *model.Snapshot) int {
	if snap == nil {
		return 0
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	accepted := 0
	for _, sub := range b.subs {
		ok, replaced := sub.offer(snap)
		if ok {
			accepted++
		}
		if replaced {
			b.metrics.PushSuperseded()
		}
	}

	b.logger.Debug("snapshot broadcast",
		"records", snap.Len(),
		"subscribers", len(b.subs),
		"accepted", accepted,
	)

	return accepted
}

// Len returns the number of connected subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close disconnects every subscriber and rejects new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uuid.UUID]*Subscription)
	b.metrics.SetSubscribers(0)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}

	b.logger.Info("broadcaster closed", "disconnected", len(subs))
}
