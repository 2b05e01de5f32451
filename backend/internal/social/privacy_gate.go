package social

import (
	"context"

	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/model"
)

// CanView reports whether viewerID may see target's content: always for the
// owner and for public accounts, otherwise only for followers.
func CanView(viewerID string, target *model.Account) bool {
	if target == nil {
		return false
	}
	if viewerID == target.ID {
		return true
	}
	if !target.IsPrivate {
		return true
	}
	return target.HasFollower(viewerID)
}

// Gate applies CanView to an account read from the store. It never caches.
type Gate struct {
	records records
}

func NewGate(store docstore.Store) *Gate {
	return &Gate{records: records{store: store}}
}

// CanView fetches targetID and applies the predicate.
func (g *Gate) CanView(ctx context.Context, viewerID, targetID string) (bool, error) {
	if viewerID == targetID {
		return true, nil
	}
	target, err := g.records.account(ctx, targetID)
	if err != nil {
		return false, err
	}
	return CanView(viewerID, target), nil
}
