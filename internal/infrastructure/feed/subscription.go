package feed

import (
	"sync"

	"github.com/google/uuid"
)

const subscriptionBuffer = 128

// Subscription is one subscriber's handle on a table's change events.
// Events() closes once the subscription ends, so consumers can range
// over it.
type Subscription struct {
	ID    string
	Table string

	hub    *Hub
	events chan Event

	mu     sync.Mutex
	closed bool
}

func newSubscription(h *Hub, table string) *Subscription {
	return &Subscription{
		ID:     uuid.NewString(),
		Table:  table,
		hub:    h,
		events: make(chan Event, subscriptionBuffer),
	}
}

// Events yields change events until the subscription is closed.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close detaches the subscription from the hub and ends Events().
// It is safe to call more than once and never blocks on the consumer.
func (s *Subscription) Close() {
	s.hub.detach(s)
	s.terminate()
}

func (s *Subscription) terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// deliver enqueues ev; false means the subscription ended or its buffer
// is full.
func (s *Subscription) deliver(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}
