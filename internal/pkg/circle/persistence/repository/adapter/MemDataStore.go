package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Behappytocode/circle/internal/infrastructure/feed"
	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// MemDataStore is an in-memory DataStore. It exists because every
// component takes the store as an injected capability; wiring this one
// in gives tests (and local development) the full stack without
// PostgreSQL. When a hub is attached, writes echo change events the way
// the real store's push feed does.
type MemDataStore struct {
	mu       sync.Mutex
	accounts []circle.Account
	groups   []circle.Group
	members  []circle.Membership
	messages []circle.Message
	hub      *feed.Hub
}

func NewMemDataStore(hub *feed.Hub) *MemDataStore {
	return &MemDataStore{hub: hub}
}

var _ repository.DataStore = (*MemDataStore)(nil)

// AddAccount seeds an account, publishing the insert event.
func (r *MemDataStore) AddAccount(a circle.Account) {
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	r.accounts = append(r.accounts, a)
	r.mu.Unlock()
	r.publish(feed.OpInsert, circle.TableAccounts, a)
}

// AddGroup seeds a group with the given member account ids.
func (r *MemDataStore) AddGroup(g circle.Group, memberIDs ...string) {
	r.mu.Lock()
	r.groups = append(r.groups, g)
	memberships := make([]circle.Membership, 0, len(memberIDs))
	for _, id := range memberIDs {
		m := circle.Membership{GroupID: g.ID, AccountID: id}
		r.members = append(r.members, m)
		memberships = append(memberships, m)
	}
	r.mu.Unlock()
	r.publish(feed.OpInsert, circle.TableGroups, g)
	for _, m := range memberships {
		r.publish(feed.OpInsert, circle.TableMemberships, m)
	}
}

func (r *MemDataStore) Account(ctx context.Context, id string) (circle.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return circle.Account{}, repository.ErrNotFound
}

func (r *MemDataStore) ApprovedAccounts(ctx context.Context, excludeID string) ([]circle.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []circle.Account
	for _, a := range r.accounts {
		if a.Status == circle.StatusApproved && a.ID != excludeID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemDataStore) AccountsByStatus(ctx context.Context, statuses ...circle.Status) ([]circle.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []circle.Account
	for _, a := range r.accounts {
		for _, s := range statuses {
			if a.Status == s {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (r *MemDataStore) SetAccountStatus(ctx context.Context, id string, status circle.Status) error {
	r.mu.Lock()
	var updated *circle.Account
	for i := range r.accounts {
		if r.accounts[i].ID == id {
			r.accounts[i].Status = status
			r.accounts[i].UpdatedAt = time.Now().UTC()
			cp := r.accounts[i]
			updated = &cp
			break
		}
	}
	r.mu.Unlock()
	if updated == nil {
		return repository.ErrNotFound
	}
	r.publish(feed.OpUpdate, circle.TableAccounts, *updated)
	return nil
}

func (r *MemDataStore) MemberGroups(ctx context.Context, accountID string) ([]circle.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []circle.Group
	for _, g := range r.groups {
		for _, m := range r.members {
			if m.GroupID == g.ID && m.AccountID == accountID {
				out = append(out, g)
				break
			}
		}
	}
	return out, nil
}

func (r *MemDataStore) ThreadMessages(ctx context.Context, self string, t circle.Thread) ([]circle.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make(map[string]string, len(r.accounts))
	for _, a := range r.accounts {
		names[a.ID] = a.DisplayName
	}
	var out []circle.Message
	for _, m := range r.messages {
		if m.InThread(self, t) {
			// Same join the SQL adapter performs on the sender's profile.
			m.SenderName = names[m.SenderID]
			out = append(out, m)
		}
	}
	sortMessages(out)
	return out, nil
}

func (r *MemDataStore) InsertMessage(ctx context.Context, m circle.Message) error {
	if m.ID == "" {
		return fmt.Errorf("MemDataStore: message id is required")
	}
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
	r.publish(feed.OpInsert, circle.TableMessages, m)
	return nil
}

func (r *MemDataStore) PurgeAccount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts := r.accounts[:0]
	found := false
	for _, a := range r.accounts {
		if a.ID == id {
			found = true
			continue
		}
		accounts = append(accounts, a)
	}
	if !found {
		return repository.ErrNotFound
	}
	r.accounts = accounts

	members := r.members[:0]
	for _, m := range r.members {
		if m.AccountID != id {
			members = append(members, m)
		}
	}
	r.members = members

	messages := r.messages[:0]
	for _, m := range r.messages {
		if m.SenderID == id || (m.ReceiverID != nil && *m.ReceiverID == id) {
			continue
		}
		messages = append(messages, m)
	}
	r.messages = messages
	return nil
}

func (r *MemDataStore) publish(op feed.Op, table string, row any) {
	if r.hub == nil {
		return
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return
	}
	r.hub.Publish(feed.Event{Op: op, Table: table, Row: payload})
}

func sortMessages(msgs []circle.Message) {
	// insertion sort; histories in memory stay small
	for i := 1; i < len(msgs); i++ {
		for j := i; j > 0 && msgs[j].Before(msgs[j-1]); j-- {
			msgs[j], msgs[j-1] = msgs[j-1], msgs[j]
		}
	}
}
