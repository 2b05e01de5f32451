package social

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"lookbook/backend/internal/constants"
	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/model"
)

// FollowStyle subscribes viewerID to a style. The style record is created on
// its first follow, keyed by the lowercased name.
func (g *FollowGraph) FollowStyle(ctx context.Context, viewerID, name string) error {
	key := model.Key(name)
	if key == "" {
		return invalid("Style name is required.")
	}

	s := newSaga("follow_style", g.logger, zap.String("viewer_id", viewerID), zap.String("style", key))
	return s.run(ctx,
		newStep("add_style_follower", func(ctx context.Context) error {
			union := docstore.ArrayUnion("followers", viewerID)
			err := g.records.update(ctx, constants.CollectionStyles, key, union)
			if !isNotFound(err) {
				return err
			}
			err = g.records.put(ctx, constants.CollectionStyles, key, model.Style{
				Name:      strings.TrimSpace(name),
				Followers: []string{viewerID},
			})
			if err != nil {
				return err
			}
			// A concurrent first follower may have replaced the record.
			return g.records.update(ctx, constants.CollectionStyles, key, union)
		}),
		newStep("add_followed_style", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, viewerID, docstore.ArrayUnion("followedStyles", key))
		}),
	)
}

// UnfollowStyle removes the subscription from both records.
func (g *FollowGraph) UnfollowStyle(ctx context.Context, viewerID, name string) error {
	key := model.Key(name)
	if key == "" {
		return invalid("Style name is required.")
	}

	s := newSaga("unfollow_style", g.logger, zap.String("viewer_id", viewerID), zap.String("style", key))
	return s.run(ctx,
		newStep("remove_followed_style", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, viewerID, docstore.ArrayRemove("followedStyles", key))
		}),
		newStep("remove_style_follower", func(ctx context.Context) error {
			err := g.records.update(ctx, constants.CollectionStyles, key, docstore.ArrayRemove("followers", viewerID))
			if isNotFound(err) {
				return nil
			}
			return err
		}),
	)
}

// Style reads a style record by name.
func (g *FollowGraph) Style(ctx context.Context, name string) (*model.Style, bool, error) {
	key := model.Key(name)
	doc, err := g.records.store.Get(ctx, constants.CollectionStyles, key)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, wrapStoreErr("get", constants.CollectionStyles, key, err)
	}
	var style model.Style
	if err := docstore.Decode(doc, &style); err != nil {
		return nil, false, err
	}
	return &style, true, nil
}
