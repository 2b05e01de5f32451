package social

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"lookbook/backend/internal/constants"
	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/model"
	apperrors "lookbook/backend/pkg/errors"
	"lookbook/backend/pkg/logger"
)

// PostState is what the post screen needs to draw its buttons.
type PostState struct {
	Liked        bool `json:"liked"`
	Bookmarked   bool `json:"bookmarked"`
	LikeCount    int  `json:"likeCount"`
	CommentCount int  `json:"commentCount"`
	CanBookmark  bool `json:"canBookmark"`
}

// InteractionService handles likes, comments, bookmarks and boards.
type InteractionService struct {
	records       records
	consistency   *ConsistencyMaintainer
	visibility    *VisibilityFilter
	notifications *NotificationEmitter
	dedupeLikes   bool
	logger        *zap.Logger
	now           func() time.Time
}

// NewInteractionService wires the interaction service. With dedupeLikes a
// repeated like never produces a second like notification.
func NewInteractionService(store docstore.Store, consistency *ConsistencyMaintainer, visibility *VisibilityFilter, notifications *NotificationEmitter, dedupeLikes bool, log *zap.Logger) *InteractionService {
	return &InteractionService{
		records:       records{store: store},
		consistency:   consistency,
		visibility:    visibility,
		notifications: notifications,
		dedupeLikes:   dedupeLikes,
		logger:        logger.OrDefault(log, "interactions"),
		now:           time.Now,
	}
}

// accessiblePost loads a post and refuses it if the viewer lost access.
func (s *InteractionService) accessiblePost(ctx context.Context, viewerID, postID string) (*model.Post, error) {
	post, err := s.records.post(ctx, postID)
	if err != nil {
		return nil, err
	}
	ok, err := s.consistency.EnforcePostAccess(ctx, viewerID, post)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, precondition(ErrPrivateContent, "This account is private. Follow them to see their posts.")
	}
	return post, nil
}

// ViewPost opens a single post.
func (s *InteractionService) ViewPost(ctx context.Context, viewerID, postID string) (*model.Post, error) {
	return s.accessiblePost(ctx, viewerID, postID)
}

// State loads the viewer's interaction state for a post. A viewer who lost
// access gets a state with CanBookmark unset and their bookmark removed.
func (s *InteractionService) State(ctx context.Context, viewerID, postID string) (*PostState, error) {
	post, err := s.records.post(ctx, postID)
	if err != nil {
		return nil, err
	}
	canSee, err := s.consistency.EnforcePostAccess(ctx, viewerID, post)
	if err != nil {
		return nil, err
	}

	state := &PostState{
		Liked:        post.IsLikedBy(viewerID),
		LikeCount:    post.LikeCount,
		CommentCount: post.CommentCount,
		CanBookmark:  canSee,
	}
	if canSee {
		state.Bookmarked, err = s.records.exists(ctx, constants.CollectionBookmarks, model.BookmarkID(viewerID, postID))
		if err != nil {
			return nil, err
		}
	}
	return state, nil
}

// Like adds the viewer's like. Liking twice is a no-op.
func (s *InteractionService) Like(ctx context.Context, viewerID, postID string) error {
	post, err := s.accessiblePost(ctx, viewerID, postID)
	if err != nil {
		return err
	}
	if post.IsLikedBy(viewerID) {
		return nil
	}

	note := model.Notification{
		Type:        constants.NotificationLike,
		SenderID:    viewerID,
		RecipientID: post.UserID,
		PostID:      postID,
		Status:      constants.StatusUnread,
	}
	sg := newSaga("like", s.logger, zap.String("viewer_id", viewerID), zap.String("post_id", postID))
	return sg.run(ctx,
		newStep("add_like", func(ctx context.Context) error {
			return s.records.update(ctx, constants.CollectionPosts, postID,
				docstore.ArrayUnion("likedBy", viewerID),
				docstore.Increment("likeCount", 1),
			)
		}),
		newStep("notify", func(ctx context.Context) error {
			if !s.dedupeLikes {
				_, err := s.notifications.Emit(ctx, note)
				return err
			}
			_, _, err := s.notifications.EmitOnce(ctx, note, Match{
				Type:        constants.NotificationLike,
				SenderID:    viewerID,
				RecipientID: post.UserID,
				PostID:      postID,
			})
			return err
		}),
	)
}

// Unlike removes the viewer's like. A failure to retract the like
// notification is logged and not returned.
func (s *InteractionService) Unlike(ctx context.Context, viewerID, postID string) error {
	post, err := s.records.post(ctx, postID)
	if err != nil {
		return err
	}
	if !post.IsLikedBy(viewerID) {
		return nil
	}

	err = s.records.update(ctx, constants.CollectionPosts, postID,
		docstore.ArrayRemove("likedBy", viewerID),
		docstore.Increment("likeCount", -1),
	)
	if err != nil {
		return err
	}

	if _, err := s.notifications.Retract(ctx, Match{
		Type:        constants.NotificationLike,
		SenderID:    viewerID,
		RecipientID: post.UserID,
		PostID:      postID,
	}); err != nil {
		s.logger.Warn("Failed to retract like notification",
			zap.String("viewer_id", viewerID),
			zap.String("post_id", postID),
			zap.Error(err),
		)
	}
	return nil
}

// Comment adds a comment and notifies the post owner with an excerpt.
func (s *InteractionService) Comment(ctx context.Context, viewerID, postID, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("Comment can't be empty.")
	}
	if utf8.RuneCountInString(text) > constants.MaxCommentLength {
		return nil, invalid("Comment is too long.")
	}
	post, err := s.accessiblePost(ctx, viewerID, postID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		PostID:    postID,
		UserID:    viewerID,
		Text:      text,
		CreatedAt: model.Millis(s.now()),
	}
	sg := newSaga("comment", s.logger, zap.String("viewer_id", viewerID), zap.String("post_id", postID))
	err = sg.run(ctx,
		newStep("add_comment", func(ctx context.Context) error {
			id, err := s.records.add(ctx, constants.CollectionComments, comment)
			comment.ID = id
			return err
		}),
		newStep("count_comment", func(ctx context.Context) error {
			return s.records.update(ctx, constants.CollectionPosts, postID, docstore.Increment("commentCount", 1))
		}),
		newStep("notify", func(ctx context.Context) error {
			_, err := s.notifications.Emit(ctx, model.Notification{
				Type:        constants.NotificationComment,
				SenderID:    viewerID,
				RecipientID: post.UserID,
				PostID:      postID,
				Text:        excerpt(text),
				Status:      constants.StatusUnread,
			})
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// Bookmark saves a snapshot of the post for the viewer. Posts the viewer
// cannot see are refused.
func (s *InteractionService) Bookmark(ctx context.Context, viewerID, postID string) (*model.Bookmark, error) {
	post, err := s.accessiblePost(ctx, viewerID, postID)
	if err != nil {
		return nil, err
	}
	return s.saveBookmark(ctx, viewerID, post)
}

func (s *InteractionService) saveBookmark(ctx context.Context, viewerID string, post *model.Post) (*model.Bookmark, error) {
	b := &model.Bookmark{
		ID:          model.BookmarkID(viewerID, post.ID),
		UserID:      viewerID,
		PostID:      post.ID,
		PostOwnerID: post.UserID,
		ImageURL:    post.ImageURL,
		Caption:     post.Caption,
		CreatedAt:   model.Millis(s.now()),
	}
	if err := s.records.put(ctx, constants.CollectionBookmarks, b.ID, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Unbookmark removes the viewer's bookmark of a post.
func (s *InteractionService) Unbookmark(ctx context.Context, viewerID, postID string) error {
	return s.records.delete(ctx, constants.CollectionBookmarks, model.BookmarkID(viewerID, postID))
}

// Bookmarks lists the viewer's bookmarks, newest first. Bookmarks of posts
// the viewer can no longer see are left out, as are bookmarks whose post
// is gone.
func (s *InteractionService) Bookmarks(ctx context.Context, viewerID string) ([]model.Bookmark, error) {
	list, err := queryAll[model.Bookmark](ctx, s.records, docstore.Query{
		Collection: constants.CollectionBookmarks,
		Filters:    []docstore.Filter{docstore.Eq("userId", viewerID)},
		OrderBy:    &docstore.Order{Field: "createdAt", Desc: true},
	})
	if err != nil {
		return nil, err
	}

	// Older bookmarks carry no owner snapshot.
	owners := make(map[string]string)
	known := list[:0]
	for _, b := range list {
		if b.PostOwnerID == "" {
			owner, seen := owners[b.PostID]
			if !seen {
				owner = s.postOwner(ctx, viewerID, b.PostID)
				owners[b.PostID] = owner
			}
			b.PostOwnerID = owner
		}
		if b.PostOwnerID != "" {
			known = append(known, b)
		}
	}

	v := s.visibility.NewRequest(viewerID)
	return FilterSlice(ctx, v, SurfaceProfile, known, func(b model.Bookmark) string { return b.PostOwnerID }), nil
}

// postOwner returns "" when the post cannot be read.
func (s *InteractionService) postOwner(ctx context.Context, viewerID, postID string) string {
	post, err := s.records.post(ctx, postID)
	if err != nil {
		if !isNotFound(err) {
			s.logger.Warn("Bookmarked post lookup failed, hiding bookmark",
				zap.String("viewer_id", viewerID),
				zap.String("post_id", postID),
				zap.Error(err),
			)
		}
		return ""
	}
	return post.UserID
}

// CreateBoard creates an empty inspiration board.
func (s *InteractionService) CreateBoard(ctx context.Context, viewerID, name string) (*model.InspoBoard, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("Board name is required.")
	}
	board := &model.InspoBoard{
		UserID:    viewerID,
		Name:      name,
		Posts:     []string{},
		CreatedAt: model.Millis(s.now()),
	}
	id, err := s.records.add(ctx, constants.CollectionInspoBoards, board)
	if err != nil {
		return nil, err
	}
	board.ID = id
	return board, nil
}

// Boards lists the viewer's boards.
func (s *InteractionService) Boards(ctx context.Context, viewerID string) ([]model.InspoBoard, error) {
	return queryAll[model.InspoBoard](ctx, s.records, docstore.Query{
		Collection: constants.CollectionInspoBoards,
		Filters:    []docstore.Filter{docstore.Eq("userId", viewerID)},
		OrderBy:    &docstore.Order{Field: "createdAt"},
	})
}

func (s *InteractionService) ownBoard(ctx context.Context, viewerID, boardID string) (*model.InspoBoard, error) {
	board, err := s.records.board(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if board.UserID != viewerID {
		return nil, apperrors.NewBoardNotFound(boardID)
	}
	return board, nil
}

// AddToBoard appends a post to one of the viewer's boards and bookmarks it.
func (s *InteractionService) AddToBoard(ctx context.Context, viewerID, boardID, postID string) error {
	board, err := s.ownBoard(ctx, viewerID, boardID)
	if err != nil {
		return err
	}
	post, err := s.accessiblePost(ctx, viewerID, postID)
	if err != nil {
		return err
	}

	var steps []step
	if !slices.Contains(board.Posts, postID) {
		steps = append(steps, newStep("add_entry", func(ctx context.Context) error {
			return s.records.update(ctx, constants.CollectionInspoBoards, boardID,
				docstore.ArrayUnion("posts", postID),
				docstore.Increment("postCount", 1),
			)
		}))
	}
	steps = append(steps, newStep("bookmark", func(ctx context.Context) error {
		_, err := s.saveBookmark(ctx, viewerID, post)
		return err
	}))

	sg := newSaga("add_to_board", s.logger, zap.String("board_id", boardID), zap.String("post_id", postID))
	return sg.run(ctx, steps...)
}

// RemoveFromBoard drops a post from one of the viewer's boards. The bookmark stays.
func (s *InteractionService) RemoveFromBoard(ctx context.Context, viewerID, boardID, postID string) error {
	board, err := s.ownBoard(ctx, viewerID, boardID)
	if err != nil {
		return err
	}
	if !slices.Contains(board.Posts, postID) {
		return nil
	}
	return s.records.update(ctx, constants.CollectionInspoBoards, boardID,
		docstore.ArrayRemove("posts", postID),
		docstore.Increment("postCount", -1),
	)
}
