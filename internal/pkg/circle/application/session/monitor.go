// Package session tracks the authenticated-identity lifecycle for one
// connected client.
package session

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Change announces a session transition. Established false means the
// identity ended (sign-out or invalidation) and all downstream state
// must be hard-reset: a new identity must never observe another
// identity's cached threads or messages.
type Change struct {
	AccountID   string
	Established bool
}

const watchBuffer = 8

// Monitor holds the current identity and notifies watchers on
// establish/clear.
type Monitor struct {
	log *zap.Logger

	mu       sync.Mutex
	current  string
	watchers map[string]chan Change
}

func NewMonitor(log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		log:      log.Named("session"),
		watchers: make(map[string]chan Change),
	}
}

// Current returns the authenticated account id, if any.
func (m *Monitor) Current() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != ""
}

// Establish records a new identity and notifies watchers. Replacing an
// existing identity first announces the clear so dependents reset.
func (m *Monitor) Establish(accountID string) {
	m.mu.Lock()
	previous := m.current
	m.current = accountID
	m.mu.Unlock()

	if previous != "" && previous != accountID {
		m.notify(Change{AccountID: previous, Established: false})
	}
	m.notify(Change{AccountID: accountID, Established: true})
}

// Clear ends the current identity, if any.
func (m *Monitor) Clear() {
	m.mu.Lock()
	previous := m.current
	m.current = ""
	m.mu.Unlock()

	if previous != "" {
		m.notify(Change{AccountID: previous, Established: false})
	}
}

// Watch registers a watcher. The cancel func must be called when the
// watcher is done; the channel is buffered and never blocks the monitor.
func (m *Monitor) Watch() (<-chan Change, func()) {
	id := uuid.NewString()
	ch := make(chan Change, watchBuffer)

	m.mu.Lock()
	m.watchers[id] = ch
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

func (m *Monitor) notify(c Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.watchers {
		select {
		case ch <- c:
		default:
			m.log.Warn("session watcher lagging, change dropped", zap.String("watcher", id))
		}
	}
}
