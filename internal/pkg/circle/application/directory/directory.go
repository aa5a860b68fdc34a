// Package directory maintains the set of addressable threads (approved
// peers plus group memberships) for one identity, refreshed from the
// change feed.
package directory

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Behappytocode/circle/internal/infrastructure/feed"
	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// List runs the directory listing query once: groups the account belongs
// to, then every approved account except self, in insertion order.
func List(ctx context.Context, store repository.DataStore, self string) ([]circle.Thread, error) {
	groups, err := store.MemberGroups(ctx, self)
	if err != nil {
		return nil, err
	}
	peers, err := store.ApprovedAccounts(ctx, self)
	if err != nil {
		return nil, err
	}
	threads := make([]circle.Thread, 0, len(groups)+len(peers))
	for _, g := range groups {
		threads = append(threads, circle.GroupThread(g))
	}
	for _, p := range peers {
		threads = append(threads, circle.DirectThread(p))
	}
	return threads, nil
}

// Directory keeps a live thread listing for one identity. Any change
// event on the accounts or memberships tables re-runs the full listing;
// re-querying beats incremental diffing here because the directory is
// small and correctness matters more than efficiency.
type Directory struct {
	store repository.DataStore
	src   feed.Source
	log   *zap.Logger
	self  string

	mu      sync.Mutex
	threads []circle.Thread
	closed  bool

	accountsSub *feed.Subscription
	membersSub  *feed.Subscription
	updates     chan struct{}
	done        chan struct{}
}

// Open loads the initial listing and starts following the change feed.
func Open(ctx context.Context, store repository.DataStore, src feed.Source, self string, log *zap.Logger) (*Directory, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Directory{
		store:       store,
		src:         src,
		log:         log.Named("directory"),
		self:        self,
		accountsSub: src.Subscribe(circle.TableAccounts),
		membersSub:  src.Subscribe(circle.TableMemberships),
		updates:     make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	if err := d.Refresh(ctx); err != nil {
		d.Close()
		return nil, err
	}
	go d.follow()
	return d, nil
}

// Threads returns a snapshot of the current listing, optionally
// filtered by a case-insensitive name match.
func (d *Directory) Threads(filter string) []circle.Thread {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]circle.Thread, 0, len(d.threads))
	needle := strings.ToLower(strings.TrimSpace(filter))
	for _, t := range d.threads {
		if needle != "" && !strings.Contains(strings.ToLower(t.DisplayName), needle) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Updates signals after each successful refresh; consumers re-read
// Threads. The channel is a coalescing edge trigger, not a queue.
func (d *Directory) Updates() <-chan struct{} {
	return d.updates
}

// Refresh re-runs the listing query. On failure the last-known listing
// is kept rather than blanked.
func (d *Directory) Refresh(ctx context.Context) error {
	threads, err := List(ctx, d.store, d.self)
	if err != nil {
		d.log.Warn("directory refresh failed, keeping last listing", zap.Error(err))
		return err
	}
	d.mu.Lock()
	d.threads = threads
	d.mu.Unlock()

	select {
	case d.updates <- struct{}{}:
	default:
	}
	return nil
}

// Close releases the feed subscriptions and stops the refresh loop.
func (d *Directory) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	accounts, members := d.accountsSub, d.membersSub
	d.mu.Unlock()

	close(d.done)
	accounts.Close()
	members.Close()
}

func (d *Directory) follow() {
	for {
		d.mu.Lock()
		accountEvents := d.accountsSub.Events()
		memberEvents := d.membersSub.Events()
		d.mu.Unlock()

		select {
		case <-d.done:
			return
		case _, ok := <-accountEvents:
			if !ok && !d.resubscribe(circle.TableAccounts) {
				return
			}
		case _, ok := <-memberEvents:
			if !ok && !d.resubscribe(circle.TableMemberships) {
				return
			}
		}
		// Which row changed does not matter; the whole listing is re-run.
		// After a resubscribe this also covers events missed while dropped.
		_ = d.Refresh(context.Background())
	}
}

// resubscribe replaces a subscription the hub dropped for slowness.
// Returns false once the directory itself is closed.
func (d *Directory) resubscribe(table string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.log.Warn("feed subscription dropped, resubscribing", zap.String("table", table))
	sub := d.src.Subscribe(table)
	switch table {
	case circle.TableAccounts:
		d.accountsSub = sub
	case circle.TableMemberships:
		d.membersSub = sub
	}
	return true
}
