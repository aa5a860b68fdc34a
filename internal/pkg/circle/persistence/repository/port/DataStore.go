package repository

import (
	"context"
	"errors"

	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
)

// ErrNotFound is returned when a point query matches no row.
var ErrNotFound = errors.New("datastore: not found")

// DataStore is the query/insert surface of the externally-owned data
// store. It is injected into every component so tests can substitute an
// in-memory implementation; change notifications travel separately
// through the feed.
type DataStore interface {
	// Account fetches one account by id; ErrNotFound when absent.
	Account(ctx context.Context, id string) (circle.Account, error)

	// ApprovedAccounts lists accounts with status=approved, excluding
	// excludeID, in insertion order.
	ApprovedAccounts(ctx context.Context, excludeID string) ([]circle.Account, error)

	// AccountsByStatus lists accounts whose status is any of statuses,
	// keeping pending and banned independently filterable.
	AccountsByStatus(ctx context.Context, statuses ...circle.Status) ([]circle.Account, error)

	// SetAccountStatus transitions an account's access state;
	// ErrNotFound when the account does not exist.
	SetAccountStatus(ctx context.Context, id string, status circle.Status) error

	// MemberGroups lists the groups accountID belongs to, in insertion order.
	MemberGroups(ctx context.Context, accountID string) ([]circle.Group, error)

	// ThreadMessages loads the full history of thread t as seen by self,
	// ordered by (created_at, id) ascending.
	ThreadMessages(ctx context.Context, self string, t circle.Thread) ([]circle.Message, error)

	// InsertMessage persists one immutable message.
	InsertMessage(ctx context.Context, m circle.Message) error

	// PurgeAccount removes a banned account's rows (messages,
	// memberships, then the account). External admin action only.
	PurgeAccount(ctx context.Context, id string) error
}
