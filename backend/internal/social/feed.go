package social

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"lookbook/backend/internal/cache"
	"lookbook/backend/internal/constants"
	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/model"
	"lookbook/backend/pkg/logger"
)

// FeedService serves every read surface. All results go through the
// VisibilityFilter; feed and explore are cached per viewer.
type FeedService struct {
	records    records
	visibility *VisibilityFilter
	cache      *cache.TTL[string, []model.Post]
	pageSize   int
	logger     *zap.Logger
}

func NewFeedService(store docstore.Store, visibility *VisibilityFilter, ttl time.Duration, pageSize int, log *zap.Logger) *FeedService {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &FeedService{
		records:    records{store: store},
		visibility: visibility,
		cache:      cache.NewTTL[string, []model.Post](ttl),
		pageSize:   pageSize,
		logger:     logger.OrDefault(log, "feed"),
	}
}

func feedKey(viewerID string) string    { return "feed:" + viewerID }
func exploreKey(viewerID string) string { return "explore:" + viewerID }

// InvalidateViewer marks the viewer's cached feed and explore pages stale.
func (s *FeedService) InvalidateViewer(viewerID string) {
	s.cache.MarkStale(feedKey(viewerID))
	s.cache.MarkStale(exploreKey(viewerID))
}

// Purge drops every cached page.
func (s *FeedService) Purge() {
	s.cache.Purge()
}

// Feed returns recent posts of accounts the viewer follows.
func (s *FeedService) Feed(ctx context.Context, viewerID string) ([]model.Post, error) {
	if posts, ok := s.cache.Get(feedKey(viewerID)); ok {
		return posts, nil
	}

	viewer, err := s.records.account(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	var posts []model.Post
	for _, ids := range chunk(viewer.Following) {
		batch, err := queryAll[model.Post](ctx, s.records, docstore.Query{
			Collection: constants.CollectionPosts,
			Filters:    []docstore.Filter{docstore.In("userId", ids)},
			OrderBy:    &docstore.Order{Field: "createdAt", Desc: true},
			Limit:      s.pageSize,
		})
		if err != nil {
			return nil, err
		}
		posts = append(posts, batch...)
	}
	posts = newestFirst(posts, s.pageSize)

	posts = s.visibility.Filter(ctx, viewerID, SurfaceDiscovery, posts)
	s.cache.Set(feedKey(viewerID), posts)
	return posts, nil
}

// Explore returns the most recent posts the viewer may see.
func (s *FeedService) Explore(ctx context.Context, viewerID string) ([]model.Post, error) {
	if posts, ok := s.cache.Get(exploreKey(viewerID)); ok {
		return posts, nil
	}

	posts, err := queryAll[model.Post](ctx, s.records, docstore.Query{
		Collection: constants.CollectionPosts,
		OrderBy:    &docstore.Order{Field: "createdAt", Desc: true},
		Limit:      s.pageSize,
	})
	if err != nil {
		return nil, err
	}

	posts = s.visibility.Filter(ctx, viewerID, SurfaceDiscovery, posts)
	s.cache.Set(exploreKey(viewerID), posts)
	return posts, nil
}

// SearchPosts finds posts tagged or styled with the query.
func (s *FeedService) SearchPosts(ctx context.Context, viewerID, query string) ([]model.Post, error) {
	key := model.Key(query)
	if key == "" {
		return []model.Post{}, nil
	}

	seen := make(map[string]bool)
	var posts []model.Post
	for _, field := range []string{"tagKeys", "styleKeys"} {
		batch, err := s.postsWithKey(ctx, field, key)
		if err != nil {
			return nil, err
		}
		for _, p := range batch {
			if !seen[p.ID] {
				seen[p.ID] = true
				posts = append(posts, p)
			}
		}
	}
	posts = newestFirst(posts, s.pageSize)
	return s.visibility.Filter(ctx, viewerID, SurfaceDiscovery, posts), nil
}

// SearchTags returns one group per query word that names a product tag.
func (s *FeedService) SearchTags(ctx context.Context, viewerID, query string) ([]PostGroup, error) {
	groups, err := s.searchGroups(ctx, query, "tagKeys", func(p model.Post) []string {
		names := make([]string, len(p.Tags))
		for i, t := range p.Tags {
			names[i] = t.Name
		}
		return names
	})
	if err != nil {
		return nil, err
	}
	return s.visibility.FilterGrouped(ctx, viewerID, groups), nil
}

// SearchStyles returns one group per query word that names a style.
func (s *FeedService) SearchStyles(ctx context.Context, viewerID, query string) ([]PostGroup, error) {
	groups, err := s.searchGroups(ctx, query, "styleKeys", func(p model.Post) []string { return p.Styles })
	if err != nil {
		return nil, err
	}
	return s.visibility.FilterGrouped(ctx, viewerID, groups), nil
}

func (s *FeedService) searchGroups(ctx context.Context, query, field string, names func(model.Post) []string) ([]PostGroup, error) {
	var groups []PostGroup
	seen := make(map[string]bool)
	for _, word := range strings.Fields(query) {
		key := model.Key(word)
		if seen[key] {
			continue
		}
		seen[key] = true

		posts, err := s.postsWithKey(ctx, field, key)
		if err != nil {
			return nil, err
		}
		if len(posts) == 0 {
			continue
		}
		groups = append(groups, PostGroup{
			Key:             key,
			Name:            displayName(posts, key, names),
			Posts:           posts,
			PublicPostCount: len(posts),
		})
	}
	return groups, nil
}

// SearchUsers finds accounts whose username starts with the query.
func (s *FeedService) SearchUsers(ctx context.Context, viewerID, query string) ([]model.AccountSummary, error) {
	key := model.Key(query)
	if key == "" {
		return []model.AccountSummary{}, nil
	}
	accounts, err := queryAll[model.Account](ctx, s.records, docstore.Query{
		Collection: constants.CollectionAccounts,
		Filters:    []docstore.Filter{docstore.Contains("searchKeys", key)},
		OrderBy:    &docstore.Order{Field: "username"},
		Limit:      s.pageSize,
	})
	if err != nil {
		return nil, err
	}
	return s.visibility.FilterAccounts(ctx, viewerID, SurfaceDiscovery, accounts), nil
}

// ProfilePosts returns an account's grid. Private accounts the viewer does
// not follow are refused.
func (s *FeedService) ProfilePosts(ctx context.Context, viewerID, ownerID string) ([]model.Post, error) {
	owner, err := s.records.account(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !CanView(viewerID, owner) {
		return nil, precondition(ErrPrivateContent, "This account is private. Follow them to see their posts.")
	}

	posts, err := queryAll[model.Post](ctx, s.records, docstore.Query{
		Collection: constants.CollectionPosts,
		Filters:    []docstore.Filter{docstore.Eq("userId", ownerID)},
		OrderBy:    &docstore.Order{Field: "createdAt", Desc: true},
	})
	if err != nil {
		return nil, err
	}
	return s.visibility.Filter(ctx, viewerID, SurfaceProfile, posts), nil
}

func (s *FeedService) postsWithKey(ctx context.Context, field, key string) ([]model.Post, error) {
	return queryAll[model.Post](ctx, s.records, docstore.Query{
		Collection: constants.CollectionPosts,
		Filters:    []docstore.Filter{docstore.Contains(field, key)},
		OrderBy:    &docstore.Order{Field: "createdAt", Desc: true},
		Limit:      s.pageSize,
	})
}

// displayName returns the first spelling of key found on the posts.
func displayName(posts []model.Post, key string, names func(model.Post) []string) string {
	for _, p := range posts {
		for _, n := range names(p) {
			if model.Key(n) == key {
				return strings.TrimSpace(n)
			}
		}
	}
	return key
}

func newestFirst(posts []model.Post, limit int) []model.Post {
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].CreatedAt > posts[j].CreatedAt })
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts
}
