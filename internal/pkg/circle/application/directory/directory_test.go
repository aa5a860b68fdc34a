package directory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Behappytocode/circle/internal/infrastructure/feed"
	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	"github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/adapter"
)

func seededStore(hub *feed.Hub) *adapter.MemDataStore {
	store := adapter.NewMemDataStore(hub)
	store.AddAccount(circle.Account{ID: "alice", DisplayName: "Alice", Status: circle.StatusApproved})
	store.AddAccount(circle.Account{ID: "bob", DisplayName: "Bob", Status: circle.StatusApproved})
	store.AddAccount(circle.Account{ID: "pete", DisplayName: "Pete", Status: circle.StatusPending})
	store.AddGroup(circle.Group{ID: "g1", Name: "climbing", CreatedBy: "alice"}, "alice", "bob")
	store.AddGroup(circle.Group{ID: "g2", Name: "book club", CreatedBy: "bob"}, "bob")
	return store
}

func threadIDs(threads []circle.Thread) []string {
	ids := make([]string, 0, len(threads))
	for _, t := range threads {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestListOrdersGroupsBeforePeers(t *testing.T) {
	store := seededStore(nil)

	threads, err := List(context.Background(), store, "alice")
	require.NoError(t, err)

	// Alice's groups first, then approved peers. Pending accounts and
	// alice herself never appear.
	assert.Equal(t, []string{"g1", "bob"}, threadIDs(threads))
	assert.Equal(t, circle.ThreadGroup, threads[0].Kind)
	assert.Equal(t, circle.ThreadDirect, threads[1].Kind)
}

func TestDirectoryRefreshesOnAccountEvents(t *testing.T) {
	hub := feed.NewHub(nil)
	defer hub.Close()
	store := seededStore(hub)

	d, err := Open(context.Background(), store, hub, "alice", nil)
	require.NoError(t, err)
	defer d.Close()

	require.Equal(t, []string{"g1", "bob"}, threadIDs(d.Threads("")))

	// A newly approved account shows up without any explicit refresh.
	store.AddAccount(circle.Account{ID: "carol", DisplayName: "Carol", Status: circle.StatusApproved})
	require.Eventually(t, func() bool {
		return len(d.Threads("")) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, threadIDs(d.Threads("")), "carol")
}

func TestDirectoryRefreshesOnMembershipEvents(t *testing.T) {
	hub := feed.NewHub(nil)
	defer hub.Close()
	store := seededStore(hub)

	d, err := Open(context.Background(), store, hub, "alice", nil)
	require.NoError(t, err)
	defer d.Close()

	store.AddGroup(circle.Group{ID: "g3", Name: "running", CreatedBy: "bob"}, "alice", "bob")
	require.Eventually(t, func() bool {
		ids := threadIDs(d.Threads(""))
		for _, id := range ids {
			if id == "g3" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestDirectoryReflectsBan(t *testing.T) {
	hub := feed.NewHub(nil)
	defer hub.Close()
	store := seededStore(hub)

	d, err := Open(context.Background(), store, hub, "alice", nil)
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, store.SetAccountStatus(context.Background(), "bob", circle.StatusBanned))
	require.Eventually(t, func() bool {
		for _, id := range threadIDs(d.Threads("")) {
			if id == "bob" {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond, "banned peers drop out of the directory")
}

func TestDirectoryFilter(t *testing.T) {
	store := seededStore(nil)
	hub := feed.NewHub(nil)
	defer hub.Close()

	d, err := Open(context.Background(), store, hub, "alice", nil)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, []string{"bob"}, threadIDs(d.Threads("BOB")), "filter is case-insensitive")
	assert.Equal(t, []string{"g1"}, threadIDs(d.Threads("climb")))
	assert.Empty(t, d.Threads("nobody"))
	assert.Len(t, d.Threads("  "), 2, "blank filter lists everything")
}

// stallingStore blocks one MemberGroups call on demand so a refresh can
// be held open while events pile up unread.
type stallingStore struct {
	*adapter.MemDataStore

	mu      sync.Mutex
	block   chan struct{}
	entered chan struct{}
}

func (s *stallingStore) arm() (entered <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = make(chan struct{})
	s.entered = make(chan struct{})
	block := s.block
	return s.entered, func() { close(block) }
}

func (s *stallingStore) MemberGroups(ctx context.Context, accountID string) ([]circle.Group, error) {
	s.mu.Lock()
	block, entered := s.block, s.entered
	s.block, s.entered = nil, nil
	s.mu.Unlock()
	if block != nil {
		close(entered)
		<-block
	}
	return s.MemDataStore.MemberGroups(ctx, accountID)
}

func TestDirectoryResubscribesAfterFeedDrop(t *testing.T) {
	hub := feed.NewHub(nil)
	defer hub.Close()
	store := &stallingStore{MemDataStore: seededStore(hub)}

	d, err := Open(context.Background(), store, hub, "alice", nil)
	require.NoError(t, err)
	defer d.Close()

	// Stall the next refresh so the flood below overruns the accounts
	// subscription's buffer and the hub drops it.
	entered, release := store.arm()
	accountEvent := feed.Event{Op: feed.OpUpdate, Table: circle.TableAccounts, Row: json.RawMessage(`{}`)}
	hub.Publish(accountEvent)
	<-entered
	for i := 0; i < 200; i++ {
		hub.Publish(accountEvent)
	}
	release()

	// The directory recovers: a later change still reaches the listing.
	store.AddAccount(circle.Account{ID: "carol", DisplayName: "Carol", Status: circle.StatusApproved})
	require.Eventually(t, func() bool {
		for _, id := range threadIDs(d.Threads("")) {
			if id == "carol" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "directory must resubscribe after the hub drops it")
}

func TestDirectoryUpdatesSignal(t *testing.T) {
	hub := feed.NewHub(nil)
	defer hub.Close()
	store := seededStore(hub)

	d, err := Open(context.Background(), store, hub, "alice", nil)
	require.NoError(t, err)
	defer d.Close()

	// Drain the initial refresh signal if still pending.
	select {
	case <-d.Updates():
	default:
	}

	store.AddAccount(circle.Account{ID: "dave", DisplayName: "Dave", Status: circle.StatusApproved})
	select {
	case <-d.Updates():
	case <-time.After(time.Second):
		t.Fatal("no update signal after account event")
	}
}
