// Package feed fans table-scoped change events out to in-process
// subscribers. Delivery is at-least-once with no ordering guarantee
// across subscribers; narrowing beyond the table happens on the
// consumer side.
package feed

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Op is the kind of row change an event describes.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is the unit delivered by the data store's push feed.
type Event struct {
	Op    Op              `json:"op"`
	Table string          `json:"table"`
	Row   json.RawMessage `json:"row"`
}

// Decode unmarshals the event's row into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Row, v)
}

// Source is the subscribe capability handed to components. The concrete
// Hub satisfies it; tests drive components through a Hub directly.
type Source interface {
	Subscribe(table string) *Subscription
}

// Hub coordinates subscriptions per table and fans published events out
// to every active subscriber of the event's table.
type Hub struct {
	log *zap.Logger

	mu     sync.RWMutex
	tables map[string]map[string]*Subscription // table -> subID -> sub
	closed bool
}

// NewHub constructs an initialized Hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:    log.Named("feed"),
		tables: make(map[string]map[string]*Subscription),
	}
}

var _ Source = (*Hub)(nil)

// Subscribe registers interest in change events for one table. The
// returned subscription is live until its Close is called or the hub
// drops it for falling behind.
func (h *Hub) Subscribe(table string) *Subscription {
	sub := newSubscription(h, table)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.terminate()
		return sub
	}
	subs := h.tables[table]
	if subs == nil {
		subs = make(map[string]*Subscription)
		h.tables[table] = subs
	}
	subs[sub.ID] = sub
	h.mu.Unlock()

	return sub
}

// Publish delivers ev to all subscribers of ev.Table and reports how
// many received it. A subscriber whose buffer is full is closed to keep
// backpressure bounded rather than blocking the feed.
func (h *Hub) Publish(ev Event) int {
	h.mu.RLock()
	subs := h.tables[ev.Table]
	if len(subs) == 0 {
		h.mu.RUnlock()
		return 0
	}
	targets := make([]*Subscription, 0, len(subs))
	for _, s := range subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if s.deliver(ev) {
			delivered++
		} else {
			h.log.Warn("dropping slow subscriber",
				zap.String("table", ev.Table), zap.String("sub", s.ID))
			s.Close()
		}
	}
	return delivered
}

// Close terminates every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*Subscription
	for _, subs := range h.tables {
		for _, s := range subs {
			all = append(all, s)
		}
	}
	h.tables = make(map[string]map[string]*Subscription)
	h.mu.Unlock()

	for _, s := range all {
		s.terminate()
	}
}

func (h *Hub) detach(sub *Subscription) {
	h.mu.Lock()
	if subs := h.tables[sub.Table]; subs != nil {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(h.tables, sub.Table)
		}
	}
	h.mu.Unlock()
}
