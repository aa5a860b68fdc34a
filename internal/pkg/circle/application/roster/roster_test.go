package roster

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qport "github.com/Behappytocode/circle/internal/infrastructure/queue/port"
	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	"github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/adapter"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// fakeQueue records enqueued tasks.
type fakeQueue struct {
	tasks []qport.Task
	opts  []qport.EnqueueOption
}

func (q *fakeQueue) Enqueue(ctx context.Context, t qport.Task, opts ...qport.EnqueueOption) (string, error) {
	q.tasks = append(q.tasks, t)
	q.opts = append(q.opts, opts...)
	return "task-1", nil
}

func (q *fakeQueue) Close() error { return nil }

// fakeServer captures registered handlers so tests can invoke them.
type fakeServer struct {
	handlers map[string]qport.Handler
}

func (s *fakeServer) Register(taskType string, h qport.Handler) {
	if s.handlers == nil {
		s.handlers = make(map[string]qport.Handler)
	}
	s.handlers[taskType] = h
}

func (s *fakeServer) Run(ctx context.Context) error  { return nil }
func (s *fakeServer) Stop(ctx context.Context) error { return nil }

func seededRoster(t *testing.T) (*Roster, *adapter.MemDataStore, *fakeQueue) {
	t.Helper()
	store := adapter.NewMemDataStore(nil)
	store.AddAccount(circle.Account{ID: "p1", DisplayName: "Pending One", Status: circle.StatusPending})
	store.AddAccount(circle.Account{ID: "p2", DisplayName: "Pending Two", Status: circle.StatusPending})
	store.AddAccount(circle.Account{ID: "b1", DisplayName: "Banned One", Status: circle.StatusBanned})
	store.AddAccount(circle.Account{ID: "a1", DisplayName: "Approved One", Status: circle.StatusApproved})
	q := &fakeQueue{}
	return New(store, q, nil), store, q
}

func accountIDs(accts []circle.Account) []string {
	ids := make([]string, 0, len(accts))
	for _, a := range accts {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestListDefaultsToReviewQueue(t *testing.T) {
	r, _, _ := seededRoster(t)

	accts, err := r.List(context.Background())
	require.NoError(t, err)
	// Pending and banned both stay visible; approved accounts are not
	// the admin's concern here.
	assert.ElementsMatch(t, []string{"p1", "p2", "b1"}, accountIDs(accts))
}

func TestListFiltersByStatus(t *testing.T) {
	r, _, _ := seededRoster(t)

	accts, err := r.List(context.Background(), circle.StatusBanned)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, accountIDs(accts))

	_, err = r.List(context.Background(), circle.Status("deleted"))
	assert.Error(t, err)
}

func TestSetStatusApprove(t *testing.T) {
	r, store, _ := seededRoster(t)

	accts, err := r.SetStatus(context.Background(), "p1", circle.StatusApproved)
	require.NoError(t, err)
	// The returned listing is the refreshed review queue.
	assert.ElementsMatch(t, []string{"p2", "b1"}, accountIDs(accts))

	acct, err := store.Account(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, circle.StatusApproved, acct.Status)
}

func TestSetStatusBanIsReversible(t *testing.T) {
	r, store, _ := seededRoster(t)

	_, err := r.SetStatus(context.Background(), "a1", circle.StatusBanned)
	require.NoError(t, err)
	acct, _ := store.Account(context.Background(), "a1")
	assert.Equal(t, circle.StatusBanned, acct.Status)

	_, err = r.SetStatus(context.Background(), "a1", circle.StatusApproved)
	require.NoError(t, err)
	acct, _ = store.Account(context.Background(), "a1")
	assert.Equal(t, circle.StatusApproved, acct.Status)
}

func TestSetStatusRejectsInvalidTransitions(t *testing.T) {
	r, _, _ := seededRoster(t)

	_, err := r.SetStatus(context.Background(), "p1", circle.StatusPending)
	assert.ErrorIs(t, err, ErrBadTransition)

	_, err = r.SetStatus(context.Background(), "ghost", circle.StatusApproved)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPurgeRequiresBannedAccount(t *testing.T) {
	r, _, q := seededRoster(t)

	_, err := r.Purge(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrNotBanned)

	_, err = r.Purge(context.Background(), "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, q.tasks)
}

func TestPurgeEnqueuesAdminTask(t *testing.T) {
	r, _, q := seededRoster(t)

	taskID, err := r.Purge(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "task-1", taskID)

	require.Len(t, q.tasks, 1)
	assert.Equal(t, PurgeAccountTaskType, q.tasks[0].Type)
	var p PurgeAccountPayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload, &p))
	assert.Equal(t, "b1", p.AccountID)

	require.Len(t, q.opts, 1)
	assert.Equal(t, "admin", q.opts[0].Queue)
	assert.Equal(t, 5, q.opts[0].MaxRetry)
}

func TestPurgeWithoutQueueFailsFast(t *testing.T) {
	store := adapter.NewMemDataStore(nil)
	store.AddAccount(circle.Account{ID: "b1", Status: circle.StatusBanned})
	r := New(store, nil, nil)

	_, err := r.Purge(context.Background(), "b1")
	assert.Error(t, err)
}

func TestPurgeAccountTaskHandler(t *testing.T) {
	store := adapter.NewMemDataStore(nil)
	store.AddAccount(circle.Account{ID: "b1", DisplayName: "Banned One", Status: circle.StatusBanned})
	srv := &fakeServer{}
	RegisterPurgeAccountTask(srv, store, nil)

	h := srv.handlers[PurgeAccountTaskType]
	require.NotNil(t, h)

	payload, _ := json.Marshal(PurgeAccountPayload{AccountID: "b1"})
	require.NoError(t, h(context.Background(), qport.Task{Type: PurgeAccountTaskType, Payload: payload}))

	_, err := store.Account(context.Background(), "b1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// Redelivery after the purge already ran succeeds silently.
	assert.NoError(t, h(context.Background(), qport.Task{Type: PurgeAccountTaskType, Payload: payload}))

	// A payload that cannot be decoded surfaces the failure.
	assert.Error(t, h(context.Background(), qport.Task{Type: PurgeAccountTaskType, Payload: []byte("{")}))
}
