// Package broadcast implements the Broadcast Bus: fan-out of JSON-shaped
// state deltas to every connected push subscriber. Each subscriber has a
// bounded queue with a drop-the-oldest overflow policy: state is
// idempotent and last-write-wins, so an overflowing subscriber should
// lose stale deltas, not the freshest one.
package broadcast

import (
	"sync"
)

// Delta is one state-change notification.
type Delta struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// subscriberQueueDepth bounds how many undelivered deltas a slow subscriber
// accumulates before the oldest is dropped.
const subscriberQueueDepth = 64

// Subscriber is a single connected push client.
type Subscriber struct {
	id   uint64
	ch   chan Delta
	bus  *Bus
}

// Deltas returns the channel a subscriber's connection handler should range
// over to forward deltas to the client.
func (s *Subscriber) Deltas() <-chan Delta { return s.ch }

// Close unsubscribes and releases the channel. Safe to call more than once.
func (s *Subscriber) Close() { s.bus.remove(s.id) }

// Bus fans out deltas to every subscribed client. Delivery is
// best-effort: a full subscriber queue drops its oldest entry rather than
// blocking the publisher, and a subscriber whose send fails outright
// (detected by its connection handler) is pruned via Close.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscriber
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[uint64]*Subscriber)}
}

// Subscribe registers a new subscriber and returns it; the caller is
// responsible for draining Deltas() and calling Close on disconnect.
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscriber{
		id:  b.nextID,
		ch:  make(chan Delta, subscriberQueueDepth),
		bus: b,
	}
	b.subs[sub.id] = sub
	return sub
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// Broadcast sends kind/payload to every subscriber, in FIFO order per
// subscriber. A subscriber at capacity has its oldest queued delta
// dropped to make room, never the new one.
func (b *Bus) Broadcast(kind string, payload any) {
	delta := Delta{Type: kind, Payload: payload}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- delta:
		default:
			// Queue full: drop the oldest, then retry once.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- delta:
			default:
			}
		}
	}
}

// SubscriberCount reports the number of connected subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
