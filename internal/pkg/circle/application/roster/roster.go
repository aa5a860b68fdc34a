// Package roster is the admin view over non-approved accounts.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	qport "github.com/Behappytocode/circle/internal/infrastructure/queue/port"
	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

var (
	ErrBadTransition = errors.New("roster: status must be approved or banned")
	ErrNotBanned     = errors.New("roster: account is not banned")
)

// PurgeAccountTaskType names the queued admin maintenance task that
// removes a banned account's rows.
const PurgeAccountTaskType = "admin:purge_account"

// PurgeAccountPayload is the task's JSON payload.
type PurgeAccountPayload struct {
	AccountID string `json:"accountId"`
}

// Roster lists and mutates non-approved accounts. queue may be nil when
// no background worker is configured; Purge then fails fast.
type Roster struct {
	store repository.DataStore
	queue qport.Client
	log   *zap.Logger
}

func New(store repository.DataStore, queue qport.Client, log *zap.Logger) *Roster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Roster{store: store, queue: queue, log: log.Named("roster")}
}

// List returns accounts in the given states; with no filter it returns
// the full review queue, pending and banned both, so banned accounts
// stay administratively visible and reversible.
func (r *Roster) List(ctx context.Context, statuses ...circle.Status) ([]circle.Account, error) {
	if len(statuses) == 0 {
		statuses = []circle.Status{circle.StatusPending, circle.StatusBanned}
	}
	for _, s := range statuses {
		if !s.Valid() {
			return nil, fmt.Errorf("roster: invalid status filter %q", s)
		}
	}
	return r.store.AccountsByStatus(ctx, statuses...)
}

// SetStatus transitions an account to approved or banned and returns
// the refreshed review queue; a successful mutation always re-lists for
// the caller. Other clients observe the transition via the change feed.
func (r *Roster) SetStatus(ctx context.Context, accountID string, status circle.Status) ([]circle.Account, error) {
	if status != circle.StatusApproved && status != circle.StatusBanned {
		return nil, ErrBadTransition
	}
	if err := r.store.SetAccountStatus(ctx, accountID, status); err != nil {
		return nil, err
	}
	r.log.Info("account status changed",
		zap.String("account", accountID), zap.String("status", string(status)))
	return r.List(ctx)
}

// Purge enqueues removal of a banned account's rows. The deletion
// itself is the background task's job; messages are otherwise never
// deleted.
func (r *Roster) Purge(ctx context.Context, accountID string) (taskID string, err error) {
	if r.queue == nil {
		return "", errors.New("roster: no task queue configured")
	}
	acct, err := r.store.Account(ctx, accountID)
	if err != nil {
		return "", err
	}
	if acct.Status != circle.StatusBanned {
		return "", ErrNotBanned
	}

	payload, err := json.Marshal(PurgeAccountPayload{AccountID: accountID})
	if err != nil {
		return "", err
	}
	return r.queue.Enqueue(ctx,
		qport.Task{Type: PurgeAccountTaskType, Payload: payload},
		qport.EnqueueOption{Queue: "admin", MaxRetry: 5})
}

// RegisterPurgeAccountTask binds the purge handler to the worker server.
func RegisterPurgeAccountTask(srv qport.Server, store repository.DataStore, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	taskLog := log.Named("purge")
	srv.Register(PurgeAccountTaskType, func(ctx context.Context, t qport.Task) error {
		var p PurgeAccountPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return err // malformed payload; retries cannot fix it but surface it
		}
		if err := store.PurgeAccount(ctx, p.AccountID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil // already purged; the task is idempotent
			}
			return err
		}
		taskLog.Info("account purged", zap.String("account", p.AccountID))
		return nil
	})
}
