package social

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"lookbook/backend/internal/constants"
	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/model"
	apperrors "lookbook/backend/pkg/errors"
	"lookbook/backend/pkg/logger"
)

// CascadeReport lists what a cleanup pass changed and what it could not.
type CascadeReport struct {
	BookmarksRemoved    []string `json:"bookmarksRemoved"`
	BoardsRewritten     []string `json:"boardsRewritten"`
	BoardEntriesRemoved int      `json:"boardEntriesRemoved"`
	Failures            []string `json:"failures,omitempty"`
}

// Changed reports whether anything was removed.
func (r *CascadeReport) Changed() bool {
	return len(r.BookmarksRemoved) > 0 || r.BoardEntriesRemoved > 0
}

func (r *CascadeReport) completed() []string {
	done := make([]string, 0, len(r.BookmarksRemoved)+len(r.BoardsRewritten))
	for _, id := range r.BookmarksRemoved {
		done = append(done, "delete_bookmark:"+id)
	}
	for _, id := range r.BoardsRewritten {
		done = append(done, "rewrite_board:"+id)
	}
	return done
}

// ConsistencyMaintainer removes derived data (bookmarks, board entries) a
// viewer may no longer see after a relationship or privacy change. Every
// removal is an independent write; failures are collected, never retried.
type ConsistencyMaintainer struct {
	records records
	logger  *zap.Logger
}

func NewConsistencyMaintainer(store docstore.Store, log *zap.Logger) *ConsistencyMaintainer {
	return &ConsistencyMaintainer{
		records: records{store: store},
		logger:  logger.OrDefault(log, "consistency"),
	}
}

// AfterUnfollow removes viewerID's bookmarks and board entries of posts owned
// by unfollowedID.
func (c *ConsistencyMaintainer) AfterUnfollow(ctx context.Context, viewerID, unfollowedID string) (*CascadeReport, error) {
	report := &CascadeReport{}
	var errs []error
	fail := func(step string, err error) {
		report.Failures = append(report.Failures, step)
		errs = append(errs, fmt.Errorf("%s: %w", step, err))
	}

	owners := newOwnerResolver(c.records)

	bookmarks, err := queryAll[model.Bookmark](ctx, c.records, docstore.Query{
		Collection: constants.CollectionBookmarks,
		Filters:    []docstore.Filter{docstore.Eq("userId", viewerID)},
	})
	if err != nil {
		return report, err
	}
	for _, b := range bookmarks {
		owner, err := owners.resolve(ctx, b.PostID, b.PostOwnerID)
		if err != nil {
			fail("resolve_owner:"+b.PostID, err)
			continue
		}
		if owner != unfollowedID {
			continue
		}
		if err := c.records.delete(ctx, constants.CollectionBookmarks, b.ID); err != nil {
			fail("delete_bookmark:"+b.ID, err)
			continue
		}
		report.BookmarksRemoved = append(report.BookmarksRemoved, b.ID)
	}

	boards, err := queryAll[model.InspoBoard](ctx, c.records, docstore.Query{
		Collection: constants.CollectionInspoBoards,
		Filters:    []docstore.Filter{docstore.Eq("userId", viewerID)},
	})
	if err != nil {
		fail("list_boards", err)
		return report, c.finish("after_unfollow", report, errs, viewerID, unfollowedID)
	}
	for _, board := range boards {
		kept := make([]string, 0, len(board.Posts))
		for _, postID := range board.Posts {
			owner, err := owners.resolve(ctx, postID, "")
			if err != nil {
				fail("resolve_owner:"+postID, err)
				kept = append(kept, postID)
				continue
			}
			if owner != unfollowedID {
				kept = append(kept, postID)
			}
		}
		c.rewriteBoard(ctx, report, board, kept, fail)
	}

	return report, c.finish("after_unfollow", report, errs, viewerID, unfollowedID)
}

// AfterPrivacyChange removes bookmarks and board entries of accountID's posts
// held by anyone who is not a follower. It does nothing for public accounts.
func (c *ConsistencyMaintainer) AfterPrivacyChange(ctx context.Context, accountID string) (*CascadeReport, error) {
	report := &CascadeReport{}
	account, err := c.records.account(ctx, accountID)
	if err != nil {
		return report, err
	}
	if !account.IsPrivate {
		return report, nil
	}

	var errs []error
	fail := func(step string, err error) {
		report.Failures = append(report.Failures, step)
		errs = append(errs, fmt.Errorf("%s: %w", step, err))
	}
	revoked := func(holder string) bool {
		return holder != accountID && !account.HasFollower(holder)
	}

	posts, err := queryAll[model.Post](ctx, c.records, docstore.Query{
		Collection: constants.CollectionPosts,
		Filters:    []docstore.Filter{docstore.Eq("userId", accountID)},
	})
	if err != nil {
		return report, err
	}

	// Bookmarks carry the owner; legacy ones without it are found per post.
	bookmarks, err := queryAll[model.Bookmark](ctx, c.records, docstore.Query{
		Collection: constants.CollectionBookmarks,
		Filters:    []docstore.Filter{docstore.Eq("postOwnerId", accountID)},
	})
	if err != nil {
		return report, err
	}
	seen := make(map[string]bool, len(bookmarks))
	for _, b := range bookmarks {
		seen[b.ID] = true
	}
	for _, p := range posts {
		legacy, err := queryAll[model.Bookmark](ctx, c.records, docstore.Query{
			Collection: constants.CollectionBookmarks,
			Filters:    []docstore.Filter{docstore.Eq("postId", p.ID)},
		})
		if err != nil {
			fail("list_bookmarks:"+p.ID, err)
			continue
		}
		for _, b := range legacy {
			if !seen[b.ID] {
				seen[b.ID] = true
				bookmarks = append(bookmarks, b)
			}
		}
	}

	for _, b := range bookmarks {
		if !revoked(b.UserID) {
			continue
		}
		if err := c.records.delete(ctx, constants.CollectionBookmarks, b.ID); err != nil {
			fail("delete_bookmark:"+b.ID, err)
			continue
		}
		report.BookmarksRemoved = append(report.BookmarksRemoved, b.ID)
	}

	// Board entries: find every board holding one of the posts.
	boards := make(map[string]model.InspoBoard)
	drop := make(map[string]map[string]bool)
	var order []string
	for _, p := range posts {
		holders, err := queryAll[model.InspoBoard](ctx, c.records, docstore.Query{
			Collection: constants.CollectionInspoBoards,
			Filters:    []docstore.Filter{docstore.Contains("posts", p.ID)},
		})
		if err != nil {
			fail("list_boards:"+p.ID, err)
			continue
		}
		for _, board := range holders {
			if !revoked(board.UserID) {
				continue
			}
			if _, ok := boards[board.ID]; !ok {
				boards[board.ID] = board
				drop[board.ID] = make(map[string]bool)
				order = append(order, board.ID)
			}
			drop[board.ID][p.ID] = true
		}
	}
	for _, id := range order {
		board := boards[id]
		kept := make([]string, 0, len(board.Posts))
		for _, postID := range board.Posts {
			if !drop[id][postID] {
				kept = append(kept, postID)
			}
		}
		c.rewriteBoard(ctx, report, board, kept, fail)
	}

	return report, c.finish("after_privacy_change", report, errs, accountID, "")
}

// EnforcePostAccess is the single-post path run when a post is opened or its
// interaction state loaded. If the viewer lost access, their bookmark of the
// post is deleted inline and false is returned. An owner that cannot be read
// denies access.
func (c *ConsistencyMaintainer) EnforcePostAccess(ctx context.Context, viewerID string, post *model.Post) (bool, error) {
	if viewerID == post.UserID {
		return true, nil
	}
	owner, err := c.records.account(ctx, post.UserID)
	if err != nil {
		return false, err
	}
	if CanView(viewerID, owner) {
		return true, nil
	}

	bookmarkID := model.BookmarkID(viewerID, post.ID)
	if err := c.records.delete(ctx, constants.CollectionBookmarks, bookmarkID); err != nil {
		c.logger.Warn("Failed to remove bookmark of inaccessible post",
			zap.String("viewer_id", viewerID),
			zap.String("post_id", post.ID),
			zap.Error(err),
		)
	}
	return false, nil
}

func (c *ConsistencyMaintainer) rewriteBoard(ctx context.Context, report *CascadeReport, board model.InspoBoard, kept []string, fail func(string, error)) {
	removed := len(board.Posts) - len(kept)
	if removed == 0 {
		return
	}
	err := c.records.update(ctx, constants.CollectionInspoBoards, board.ID,
		docstore.Set("posts", kept),
		docstore.Set("postCount", len(kept)),
	)
	if err != nil {
		fail("rewrite_board:"+board.ID, err)
		return
	}
	report.BoardsRewritten = append(report.BoardsRewritten, board.ID)
	report.BoardEntriesRemoved += removed
}

func (c *ConsistencyMaintainer) finish(workflow string, report *CascadeReport, errs []error, subject, other string) error {
	fields := []zap.Field{
		zap.String("workflow", workflow),
		zap.String("account_id", subject),
		zap.Int("bookmarks_removed", len(report.BookmarksRemoved)),
		zap.Int("board_entries_removed", report.BoardEntriesRemoved),
		zap.Int("failures", len(report.Failures)),
	}
	if other != "" {
		fields = append(fields, zap.String("other_id", other))
	}

	if len(errs) == 0 {
		if report.Changed() {
			c.logger.Info("Cascade cleanup finished", fields...)
		}
		return nil
	}
	c.logger.Error("Cascade cleanup incomplete", append(fields, zap.Strings("failed_steps", report.Failures))...)
	return &CascadeError{
		ErrPartialFailure: apperrors.NewPartialFailure(workflow, report.Failures[0], report.completed(), errors.Join(errs...)),
		Report:            report,
	}
}

// CascadeError is a partial cleanup together with its report.
type CascadeError struct {
	*apperrors.ErrPartialFailure
	Report *CascadeReport
}

// ownerResolver memoises post -> owner lookups within one cleanup pass.
type ownerResolver struct {
	records records
	owners  map[string]string
}

func newOwnerResolver(r records) *ownerResolver {
	return &ownerResolver{records: r, owners: make(map[string]string)}
}

// resolve returns the owner of postID, preferring the denormalised value.
// A post that no longer exists has no owner ("").
func (o *ownerResolver) resolve(ctx context.Context, postID, known string) (string, error) {
	if known != "" {
		o.owners[postID] = known
		return known, nil
	}
	if owner, ok := o.owners[postID]; ok {
		return owner, nil
	}
	post, err := o.records.post(ctx, postID)
	if apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound) {
		o.owners[postID] = ""
		return "", nil
	}
	if err != nil {
		return "", err
	}
	o.owners[postID] = post.UserID
	return post.UserID, nil
}
