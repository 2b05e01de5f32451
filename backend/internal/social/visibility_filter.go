package social

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lookbook/backend/internal/cache"
	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/model"
	"lookbook/backend/pkg/logger"
)

// Surface is the read context a result set is shown in.
type Surface int

const (
	// SurfaceDiscovery covers feed, explore and search. The viewer's own items are hidden.
	SurfaceDiscovery Surface = iota
	// SurfaceProfile is a single account's grid. Own items are shown.
	SurfaceProfile
)

// PostGroup is a tag or style search hit with the posts attached to it.
type PostGroup struct {
	Key             string       `json:"key"`
	Name            string       `json:"name"`
	Posts           []model.Post `json:"posts"`
	PublicPostCount int          `json:"publicPostCount"`
}

// VisibilityFilter drops items whose owner fails the privacy gate. Within one
// request every distinct owner is looked up at most once.
type VisibilityFilter struct {
	records     records
	privacy     cache.PrivacyCache
	concurrency int
	logger      *zap.Logger
	lookups     atomic.Int64
}

// NewVisibilityFilter creates a filter. privacy may be nil.
func NewVisibilityFilter(store docstore.Store, privacy cache.PrivacyCache, concurrency int, log *zap.Logger) *VisibilityFilter {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &VisibilityFilter{
		records:     records{store: store},
		privacy:     privacy,
		concurrency: concurrency,
		logger:      logger.OrDefault(log, "visibility"),
	}
}

// Lookups counts owner fetches made against the store since creation.
func (f *VisibilityFilter) Lookups() int64 {
	return f.lookups.Load()
}

// Visibility is the per-request memo of owner verdicts for one viewer.
type Visibility struct {
	filter   *VisibilityFilter
	viewerID string

	mu       sync.Mutex
	verdicts map[string]bool
}

// NewRequest starts a memo for viewerID. Do not share it across requests.
func (f *VisibilityFilter) NewRequest(viewerID string) *Visibility {
	return &Visibility{
		filter:   f,
		viewerID: viewerID,
		verdicts: make(map[string]bool),
	}
}

// CanSee reports whether the viewer may see content owned by ownerID.
func (v *Visibility) CanSee(ctx context.Context, ownerID string) bool {
	if ownerID == v.viewerID {
		return true
	}
	v.mu.Lock()
	verdict, ok := v.verdicts[ownerID]
	v.mu.Unlock()
	if ok {
		return verdict
	}

	verdict = v.filter.resolve(ctx, v.viewerID, ownerID)
	v.mu.Lock()
	v.verdicts[ownerID] = verdict
	v.mu.Unlock()
	return verdict
}

// Prefetch resolves every unresolved owner concurrently, bounded by the
// filter's concurrency.
func (v *Visibility) Prefetch(ctx context.Context, ownerIDs []string) {
	pending := make([]string, 0, len(ownerIDs))
	seen := make(map[string]struct{}, len(ownerIDs))

	v.mu.Lock()
	for _, id := range ownerIDs {
		if id == v.viewerID {
			continue
		}
		if _, done := v.verdicts[id]; done {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		pending = append(pending, id)
	}
	v.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.filter.concurrency)
	for _, id := range pending {
		g.Go(func() error {
			verdict := v.filter.resolve(gctx, v.viewerID, id)
			v.mu.Lock()
			v.verdicts[id] = verdict
			v.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// resolve is fail-closed: an owner that cannot be read is not visible.
func (f *VisibilityFilter) resolve(ctx context.Context, viewerID, ownerID string) bool {
	if f.privacy != nil {
		if private, ok := f.privacy.Get(ctx, ownerID); ok && !private {
			return true
		}
	}

	f.lookups.Add(1)
	owner, err := f.records.account(ctx, ownerID)
	if err != nil {
		f.logger.Warn("Owner lookup failed, hiding content",
			zap.String("viewer_id", viewerID),
			zap.String("owner_id", ownerID),
			zap.Error(err),
		)
		return false
	}
	if f.privacy != nil {
		f.privacy.Set(ctx, ownerID, owner.IsPrivate)
	}
	return CanView(viewerID, owner)
}

// FilterSlice keeps the items of a heterogeneous result set whose owner the
// viewer may see. On discovery surfaces the viewer's own items are dropped.
func FilterSlice[T any](ctx context.Context, v *Visibility, surface Surface, items []T, owner func(T) string) []T {
	owners := make([]string, len(items))
	for i, item := range items {
		owners[i] = owner(item)
	}
	v.Prefetch(ctx, owners)

	out := make([]T, 0, len(items))
	for i, item := range items {
		o := owners[i]
		if surface == SurfaceDiscovery && o == v.viewerID {
			continue
		}
		if v.CanSee(ctx, o) {
			out = append(out, item)
		}
	}
	return out
}

// Posts filters posts with this request's memo.
func (v *Visibility) Posts(ctx context.Context, surface Surface, posts []model.Post) []model.Post {
	return FilterSlice(ctx, v, surface, posts, func(p model.Post) string { return p.UserID })
}

// Filter filters posts for viewerID with a fresh memo.
func (f *VisibilityFilter) Filter(ctx context.Context, viewerID string, surface Surface, posts []model.Post) []model.Post {
	return f.NewRequest(viewerID).Posts(ctx, surface, posts)
}

// FilterGrouped filters the posts inside each group, recomputes
// PublicPostCount and drops groups left empty. Grouped results are always a
// discovery surface.
func (f *VisibilityFilter) FilterGrouped(ctx context.Context, viewerID string, groups []PostGroup) []PostGroup {
	v := f.NewRequest(viewerID)

	var owners []string
	for _, g := range groups {
		for _, p := range g.Posts {
			owners = append(owners, p.UserID)
		}
	}
	v.Prefetch(ctx, owners)

	out := make([]PostGroup, 0, len(groups))
	for _, g := range groups {
		posts := v.Posts(ctx, SurfaceDiscovery, g.Posts)
		if len(posts) == 0 {
			continue
		}
		g.Posts = posts
		g.PublicPostCount = len(posts)
		out = append(out, g)
	}
	return out
}

// FilterAccounts turns accounts into list entries. Accounts are not content:
// private ones stay listed, with Locked set when the viewer cannot see their
// posts. On discovery surfaces the viewer is left out.
func (f *VisibilityFilter) FilterAccounts(ctx context.Context, viewerID string, surface Surface, accounts []model.Account) []model.AccountSummary {
	out := make([]model.AccountSummary, 0, len(accounts))
	for i := range accounts {
		a := &accounts[i]
		if surface == SurfaceDiscovery && a.ID == viewerID {
			continue
		}
		if f.privacy != nil {
			f.privacy.Set(ctx, a.ID, a.IsPrivate)
		}
		s := a.Summary()
		s.Locked = !CanView(viewerID, a)
		out = append(out, s)
	}
	return out
}
