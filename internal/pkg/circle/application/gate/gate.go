// Package gate maps the current identity to its account status and
// decides which views are reachable. Pending and banned accounts never
// reach the thread directory or any message view.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	cacheport "github.com/Behappytocode/circle/internal/infrastructure/cache/port"
	"github.com/Behappytocode/circle/internal/pkg/circle/application/session"
	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// View is the routing state the gate exposes.
type View int

const (
	ViewUnconfigured View = iota
	ViewLoading
	ViewUnauthenticated
	ViewAuthenticated
)

func (v View) String() string {
	switch v {
	case ViewUnconfigured:
		return "unconfigured"
	case ViewLoading:
		return "loading"
	case ViewUnauthenticated:
		return "unauthenticated"
	case ViewAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// State is the gate's current routing decision. Account is set only in
// ViewAuthenticated; its Status picks the branch (pending blocks all
// messaging and offers a manual re-check, banned blocks everything but
// sign-out, approved unlocks the directory and synchronizer).
type State struct {
	View    View
	Account *circle.Account
}

// CanMessage reports whether messaging views are reachable.
func (s State) CanMessage() bool {
	return s.View == ViewAuthenticated && s.Account != nil && s.Account.Status == circle.StatusApproved
}

const accountCacheTTL = 10 * time.Minute

// Gate resolves identities to account records, preferring stale cached
// data over blocking error states on read failures.
type Gate struct {
	store repository.DataStore
	cache cacheport.Cache // optional
	log   *zap.Logger

	mu    sync.Mutex
	state State
}

// New constructs a Gate. configured false pins the gate to the
// first-run setup view until the process restarts with credentials.
func New(store repository.DataStore, cache cacheport.Cache, configured bool, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	view := ViewUnauthenticated
	if !configured {
		view = ViewUnconfigured
	}
	return &Gate{
		store: store,
		cache: cache,
		log:   log.Named("gate"),
		state: State{View: view},
	}
}

// State returns the current routing decision.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// FetchStatus loads an account record. ErrNotFound propagates (an
// identity without a profile row is an incomplete-setup state, not a
// crash); transport failures fall back to the last cached snapshot when
// one exists.
func (g *Gate) FetchStatus(ctx context.Context, accountID string) (circle.Account, error) {
	acct, err := g.store.Account(ctx, accountID)
	if err == nil {
		g.remember(ctx, acct)
		return acct, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return circle.Account{}, err
	}
	if cached, ok := g.recall(ctx, accountID); ok {
		g.log.Warn("status fetch failed, serving cached account",
			zap.String("account", accountID), zap.Error(err))
		return cached, nil
	}
	return circle.Account{}, err
}

// HandleSession reacts to a session change: establishment fetches the
// profile and routes; termination hard-resets to unauthenticated.
func (g *Gate) HandleSession(ctx context.Context, c session.Change) {
	g.mu.Lock()
	if g.state.View == ViewUnconfigured {
		g.mu.Unlock()
		return
	}
	if !c.Established {
		g.state = State{View: ViewUnauthenticated}
		g.mu.Unlock()
		return
	}
	g.state = State{View: ViewLoading}
	g.mu.Unlock()

	g.resolve(ctx, c.AccountID)
}

// Refresh re-fetches the current account's status; this is the manual
// re-check the pending view offers, and how an approved→banned
// transition is detected between push events.
func (g *Gate) Refresh(ctx context.Context) {
	g.mu.Lock()
	acct := g.state.Account
	g.mu.Unlock()
	if acct == nil {
		return
	}
	g.resolve(ctx, acct.ID)
}

func (g *Gate) resolve(ctx context.Context, accountID string) {
	acct, err := g.FetchStatus(ctx, accountID)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		// Keep whatever the last authenticated snapshot was; never
		// blank an authenticated view over a read failure.
		if errors.Is(err, repository.ErrNotFound) {
			g.log.Warn("no account row for identity", zap.String("account", accountID))
			g.state = State{View: ViewUnauthenticated}
			return
		}
		g.log.Warn("status resolve failed", zap.Error(err))
		if g.state.Account == nil {
			g.state = State{View: ViewUnauthenticated}
		}
		return
	}
	g.state = State{View: ViewAuthenticated, Account: &acct}
}

func (g *Gate) remember(ctx context.Context, acct circle.Account) {
	if g.cache == nil {
		return
	}
	payload, err := json.Marshal(acct)
	if err != nil {
		return
	}
	if err := g.cache.Set(ctx, accountKey(acct.ID), string(payload), accountCacheTTL); err != nil {
		g.log.Debug("account cache write failed", zap.Error(err))
	}
}

func (g *Gate) recall(ctx context.Context, accountID string) (circle.Account, bool) {
	if g.cache == nil {
		return circle.Account{}, false
	}
	payload, err := g.cache.Get(ctx, accountKey(accountID))
	if err != nil {
		return circle.Account{}, false
	}
	var acct circle.Account
	if err := json.Unmarshal([]byte(payload), &acct); err != nil {
		return circle.Account{}, false
	}
	return acct, true
}

func accountKey(id string) string {
	return "account:" + id
}
