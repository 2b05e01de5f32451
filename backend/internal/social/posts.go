package social

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"lookbook/backend/internal/constants"
	"lookbook/backend/internal/model"
)

// NewPost is the input for publishing an outfit photo.
type NewPost struct {
	ImageURL string      `json:"imageUrl"`
	Caption  string      `json:"caption"`
	Tags     []model.Tag `json:"tags"`
	Styles   []string    `json:"styles"`
}

// CreatePost publishes a post owned by ownerID with its search keys filled in.
func (s *InteractionService) CreatePost(ctx context.Context, ownerID string, in NewPost) (*model.Post, error) {
	if _, err := s.records.account(ctx, ownerID); err != nil {
		return nil, err
	}

	post := &model.Post{
		UserID:    ownerID,
		ImageURL:  strings.TrimSpace(in.ImageURL),
		Caption:   strings.TrimSpace(in.Caption),
		LikedBy:   []string{},
		Tags:      in.Tags,
		Styles:    in.Styles,
		CreatedAt: model.Millis(s.now()),
	}
	if post.Tags == nil {
		post.Tags = []model.Tag{}
	}
	if post.Styles == nil {
		post.Styles = []string{}
	}
	if err := post.Validate(); err != nil {
		return nil, invalid(err.Error())
	}
	post.IndexKeys()

	id, err := s.records.add(ctx, constants.CollectionPosts, post)
	if err != nil {
		return nil, err
	}
	post.ID = id
	s.logger.Debug("Post created", zap.String("post_id", id), zap.String("owner_id", ownerID))
	return post, nil
}
