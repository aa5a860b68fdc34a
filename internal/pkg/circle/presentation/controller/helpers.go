package controller

import (
	"context"
	"errors"
	"strings"

	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// threadFromParams resolves the :threadId path parameter plus the kind
// query/body value into a thread view. Display fields are irrelevant for
// addressing, so they stay empty.
func threadFromParams(id, kind string) (circle.Thread, bool) {
	switch circle.ThreadKind(kind) {
	case circle.ThreadDirect:
		return circle.Thread{ID: id, Kind: circle.ThreadDirect}, true
	case circle.ThreadGroup:
		return circle.Thread{ID: id, Kind: circle.ThreadGroup}, true
	}
	return circle.Thread{}, false
}

// canAddress reports whether self may read or write thread t. Group
// threads require a membership row; direct threads require an approved
// peer other than self. The same rule the directory applies when it
// lists threads, enforced here because HTTP callers bypass the
// directory.
func canAddress(ctx context.Context, store repository.DataStore, self string, t circle.Thread) (bool, error) {
	switch t.Kind {
	case circle.ThreadGroup:
		groups, err := store.MemberGroups(ctx, self)
		if err != nil {
			return false, err
		}
		for _, g := range groups {
			if g.ID == t.ID {
				return true, nil
			}
		}
		return false, nil
	case circle.ThreadDirect:
		if t.ID == self {
			return false, nil
		}
		peer, err := store.Account(ctx, t.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return peer.Status == circle.StatusApproved, nil
	}
	return false, nil
}
