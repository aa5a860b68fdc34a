// Package msgsync keeps one thread's message view consistent with the
// data store under concurrent writers: an initial pull snapshot, a
// push stream of row-level inserts, and the client's own sends all
// converge on a single list ordered by (created_at, id).
package msgsync

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Behappytocode/circle/internal/infrastructure/feed"
	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// State is the per-thread lifecycle: Idle before any thread is opened,
// Loading while the history fetch is in flight, Live afterwards.
type State int

const (
	Idle State = iota
	Loading
	Live
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Live:
		return "live"
	}
	return "idle"
}

// ErrNoThread is returned by Send when no thread is open.
var ErrNoThread = errors.New("msgsync: no open thread")

// Synchronizer is the live view of the currently open thread.
//
// Every handler that touches the list captures the epoch current at its
// creation and re-checks it before writing; a thread switch bumps the
// epoch, so late fetch results and events from a superseded
// subscription are discarded instead of leaking into the new thread.
type Synchronizer struct {
	store repository.DataStore
	src   feed.Source
	log   *zap.Logger
	self  string

	mu      sync.Mutex
	epoch   uint64
	state   State
	thread  circle.Thread
	msgs    []circle.Message
	backlog []circle.Message // events that raced the history fetch
	sub     *feed.Subscription
	updates chan struct{}
}

// New constructs an idle Synchronizer for the given identity.
func New(store repository.DataStore, src feed.Source, self string, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{
		store:   store,
		src:     src,
		log:     log.Named("msgsync"),
		self:    self,
		updates: make(chan struct{}, 1),
	}
}

// Open selects a thread: the previous thread's subscription is released
// first, then the new subscription is acquired before the history fetch
// starts, so an insert racing the fetch lands in the backlog instead of
// being lost.
func (s *Synchronizer) Open(ctx context.Context, t circle.Thread) {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	if s.sub != nil {
		s.sub.Close()
	}
	sub := s.src.Subscribe(circle.TableMessages)
	s.sub = sub
	s.thread = t
	s.state = Loading
	s.msgs = nil
	s.backlog = nil
	s.mu.Unlock()

	go s.pump(epoch, t, sub)
	go s.load(ctx, epoch, t)
}

// Close releases the current subscription and returns to Idle.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.epoch++
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	s.state = Idle
	s.thread = circle.Thread{}
	s.msgs = nil
	s.backlog = nil
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Thread returns the open thread, if any.
func (s *Synchronizer) Thread() (circle.Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thread, s.state != Idle
}

// Messages returns a copy of the displayed list in (created_at, id)
// order.
func (s *Synchronizer) Messages() []circle.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]circle.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Updates signals after the view changes; consumers re-read Messages.
func (s *Synchronizer) Updates() <-chan struct{} {
	return s.updates
}

// Send issues an insert addressed to the open thread and returns the
// message as written. The view is deliberately not touched here: the
// insert's own echo through the feed materializes it, keeping the store
// the single source of truth. A failed insert therefore cannot corrupt
// the displayed list.
func (s *Synchronizer) Send(ctx context.Context, body, imageURL, audioURL string) (circle.Message, error) {
	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return circle.Message{}, ErrNoThread
	}
	t := s.thread
	s.mu.Unlock()

	m := circle.Message{ID: uuid.NewString(), SenderID: s.self}
	if body != "" {
		m.Body = &body
	}
	if imageURL != "" {
		m.ImageURL = &imageURL
	}
	if audioURL != "" {
		m.AudioURL = &audioURL
	}
	switch t.Kind {
	case circle.ThreadGroup:
		m.GroupID = &t.ID
	case circle.ThreadDirect:
		m.ReceiverID = &t.ID
	}

	validated, err := circle.NewMessage(m)
	if err != nil {
		return circle.Message{}, err
	}
	if err := s.store.InsertMessage(ctx, *validated); err != nil {
		return circle.Message{}, err
	}
	return *validated, nil
}

// pump applies feed events for the subscription's thread until the
// subscription closes.
func (s *Synchronizer) pump(epoch uint64, t circle.Thread, sub *feed.Subscription) {
	for ev := range sub.Events() {
		if ev.Op != feed.OpInsert {
			continue
		}
		var m circle.Message
		if err := ev.Decode(&m); err != nil {
			s.log.Warn("undecodable message event", zap.Error(err))
			continue
		}
		s.apply(epoch, t, m)
	}
}

// load resolves the initial history fetch, then replays any events that
// arrived while it was in flight.
func (s *Synchronizer) load(ctx context.Context, epoch uint64, t circle.Thread) {
	history, err := s.store.ThreadMessages(ctx, s.self, t)

	s.mu.Lock()
	if epoch != s.epoch {
		// The user switched threads while this fetch was in flight.
		s.mu.Unlock()
		return
	}
	if err != nil {
		// Read failures degrade to an empty view; buffered events still
		// apply so the thread keeps working live.
		s.log.Warn("history fetch failed", zap.String("thread", t.ID), zap.Error(err))
		history = nil
	}
	s.msgs = make([]circle.Message, len(history))
	copy(s.msgs, history)
	sort.SliceStable(s.msgs, func(i, j int) bool { return s.msgs[i].Before(s.msgs[j]) })

	backlog := s.backlog
	s.backlog = nil
	s.state = Live
	for _, m := range backlog {
		s.mergeLocked(m)
	}
	s.mu.Unlock()

	s.signal()
}

// apply routes one insert event: staleness guard, addressing predicate,
// then buffer or merge depending on lifecycle state.
func (s *Synchronizer) apply(epoch uint64, t circle.Thread, m circle.Message) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	if !m.InThread(s.self, t) {
		s.mu.Unlock()
		return
	}
	if s.state == Loading {
		s.backlog = append(s.backlog, m)
		s.mu.Unlock()
		return
	}
	changed := s.mergeLocked(m)
	s.mu.Unlock()

	if changed {
		s.signal()
	}
}

// mergeLocked inserts m at its (created_at, id) position. A duplicate id
// is a no-op: the echo of an optimistic send and an at-least-once
// redelivery look identical here. Out-of-order arrivals insert at the
// ordered position rather than appending blindly.
func (s *Synchronizer) mergeLocked(m circle.Message) bool {
	for _, existing := range s.msgs {
		if existing.ID == m.ID {
			return false
		}
	}
	i := sort.Search(len(s.msgs), func(i int) bool { return m.Before(s.msgs[i]) })
	s.msgs = append(s.msgs, circle.Message{})
	copy(s.msgs[i+1:], s.msgs[i:])
	s.msgs[i] = m
	return true
}

func (s *Synchronizer) signal() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
