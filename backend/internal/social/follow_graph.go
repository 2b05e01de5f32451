package social

import (
	"context"

	"go.uber.org/zap"

	"lookbook/backend/internal/constants"
	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/model"
	"lookbook/backend/pkg/logger"
)

// Action is what a transition did.
type Action string

const (
	ActionFollowed   Action = "followed"
	ActionRequested  Action = "requested"
	ActionUnfollowed Action = "unfollowed"
	ActionCancelled  Action = "cancelled"
)

// Result is the outcome of a follow transition. Callers use State to settle
// their optimistic UI.
type Result struct {
	State  model.FollowState `json:"state"`
	Action Action            `json:"action"`
}

func (r Result) IsFollowing() bool        { return r.State.IsFollowing() }
func (r Result) HasRequestedFollow() bool { return r.State.HasRequestedFollow() }

// FeedInvalidator drops cached feeds whose inputs changed.
type FeedInvalidator interface {
	InvalidateViewer(viewerID string)
}

// FollowGraph owns the follow edges between accounts. Edges live on both
// accounts (following on one side, followers on the other) and are written
// as independent updates; nothing here is atomic across records.
type FollowGraph struct {
	records       records
	notifications *NotificationEmitter
	consistency   *ConsistencyMaintainer
	feeds         FeedInvalidator
	logger        *zap.Logger
}

// NewFollowGraph wires the graph service. feeds may be nil.
func NewFollowGraph(store docstore.Store, notifications *NotificationEmitter, consistency *ConsistencyMaintainer, feeds FeedInvalidator, log *zap.Logger) *FollowGraph {
	return &FollowGraph{
		records:       records{store: store},
		notifications: notifications,
		consistency:   consistency,
		feeds:         feeds,
		logger:        logger.OrDefault(log, "follow_graph"),
	}
}

// StateOf derives viewerID's state towards target from target's edge sets.
func StateOf(viewerID string, target *model.Account) model.FollowState {
	switch {
	case target.HasFollower(viewerID):
		return model.StateFollowing
	case target.HasPendingRequestFrom(viewerID):
		return model.StateRequested
	}
	return model.StateNone
}

// Status reads the current state of the viewer -> target edge.
func (g *FollowGraph) Status(ctx context.Context, viewerID, targetID string) (model.FollowState, error) {
	target, err := g.records.account(ctx, targetID)
	if err != nil {
		return model.StateNone, err
	}
	return StateOf(viewerID, target), nil
}

// IsFollowingBack reports whether target follows the viewer.
func (g *FollowGraph) IsFollowingBack(ctx context.Context, viewerID, targetID string) (bool, error) {
	viewer, err := g.records.account(ctx, viewerID)
	if err != nil {
		return false, err
	}
	return viewer.HasFollower(targetID), nil
}

// Transition applies a follow-button press given the state the caller
// believes it is in. A press while REQUESTED writes nothing.
func (g *FollowGraph) Transition(ctx context.Context, viewerID, targetID string, current model.FollowState) (Result, error) {
	if viewerID == targetID {
		return Result{}, precondition(ErrSelfFollow, "You can't follow yourself.")
	}
	switch current {
	case model.StateFollowing:
		return g.Unfollow(ctx, viewerID, targetID)
	case model.StateRequested:
		return Result{State: model.StateRequested, Action: ActionRequested}, nil
	case model.StateNone:
		return g.follow(ctx, viewerID, targetID)
	}
	return Result{}, invalid("Unknown follow state.")
}

func (g *FollowGraph) follow(ctx context.Context, viewerID, targetID string) (Result, error) {
	target, err := g.records.account(ctx, targetID)
	if err != nil {
		return Result{}, err
	}

	// A stale press must not open a request on an edge that already exists.
	if target.HasFollower(viewerID) {
		return Result{State: model.StateFollowing, Action: ActionFollowed}, nil
	}
	if target.IsPrivate {
		return g.request(ctx, viewerID, target)
	}

	s := newSaga("follow", g.logger, zap.String("viewer_id", viewerID), zap.String("target_id", targetID))
	err = s.run(ctx,
		newStep("add_following", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, viewerID, docstore.ArrayUnion("following", targetID))
		}),
		newStep("add_follower", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, targetID, docstore.ArrayUnion("followers", viewerID))
		}),
		newStep("notify", func(ctx context.Context) error {
			_, err := g.notifications.Emit(ctx, model.Notification{
				Type:        constants.NotificationFollow,
				SenderID:    viewerID,
				RecipientID: targetID,
				Status:      constants.StatusUnread,
			})
			return err
		}),
	)
	g.invalidate(viewerID)
	if err != nil {
		return Result{}, err
	}
	return Result{State: model.StateFollowing, Action: ActionFollowed}, nil
}

func (g *FollowGraph) request(ctx context.Context, viewerID string, target *model.Account) (Result, error) {
	requested := Result{State: model.StateRequested, Action: ActionRequested}
	match := Match{
		Type:        constants.NotificationFollowRequest,
		SenderID:    viewerID,
		RecipientID: target.ID,
		Status:      constants.StatusPending,
	}

	exists, err := g.notifications.Exists(ctx, match)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return requested, nil
	}

	var steps []step
	if !target.HasPendingRequestFrom(viewerID) {
		steps = append(steps, newStep("add_pending", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, target.ID, docstore.ArrayUnion("pendingFollowRequests", viewerID))
		}))
	}
	steps = append(steps,
		newStep("notify", func(ctx context.Context) error {
			_, _, err := g.notifications.EmitOnce(ctx, model.Notification{
				Type:        constants.NotificationFollowRequest,
				SenderID:    viewerID,
				RecipientID: target.ID,
				Status:      constants.StatusPending,
			}, match)
			return err
		}),
	)
	s := newSaga("follow_request", g.logger, zap.String("viewer_id", viewerID), zap.String("target_id", target.ID))
	if err := s.run(ctx, steps...); err != nil {
		return Result{}, err
	}
	return requested, nil
}

// Unfollow removes the viewer -> target edge and any pending request. When
// the target is private the viewer's saved copies of its posts are cleaned up.
func (g *FollowGraph) Unfollow(ctx context.Context, viewerID, targetID string) (Result, error) {
	if viewerID == targetID {
		return Result{}, precondition(ErrSelfFollow, "You can't unfollow yourself.")
	}
	target, err := g.records.account(ctx, targetID)
	if err != nil {
		return Result{}, err
	}
	prior := StateOf(viewerID, target)

	s := newSaga("unfollow", g.logger, zap.String("viewer_id", viewerID), zap.String("target_id", targetID))
	err = s.run(ctx,
		newStep("remove_following", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, viewerID, docstore.ArrayRemove("following", targetID))
		}),
		newStep("remove_follower", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, targetID,
				docstore.ArrayRemove("followers", viewerID),
				docstore.ArrayRemove("pendingFollowRequests", viewerID),
			)
		}),
		newStep("retract_request", func(ctx context.Context) error {
			_, err := g.notifications.Retract(ctx, Match{
				Type:        constants.NotificationFollowRequest,
				SenderID:    viewerID,
				RecipientID: targetID,
				Status:      constants.StatusPending,
			})
			return err
		}),
	)
	g.invalidate(viewerID)
	if err != nil {
		return Result{}, err
	}

	result := Result{State: model.StateNone, Action: ActionUnfollowed}
	if prior == model.StateRequested {
		result.Action = ActionCancelled
	}

	if target.IsPrivate {
		if _, err := g.consistency.AfterUnfollow(ctx, viewerID, targetID); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Accept resolves requesterID's pending request to targetID.
func (g *FollowGraph) Accept(ctx context.Context, targetID, requesterID string) error {
	target, err := g.records.account(ctx, targetID)
	if err != nil {
		return err
	}
	if !target.HasPendingRequestFrom(requesterID) {
		return precondition(ErrNoPendingRequest, "This follow request is no longer pending.")
	}

	s := newSaga("accept_request", g.logger, zap.String("target_id", targetID), zap.String("requester_id", requesterID))
	err = s.run(ctx,
		newStep("remove_pending", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, targetID,
				docstore.ArrayRemove("pendingFollowRequests", requesterID),
				docstore.ArrayUnion("followers", requesterID),
			)
		}),
		newStep("add_following", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, requesterID, docstore.ArrayUnion("following", targetID))
		}),
		newStep("mark_accepted", func(ctx context.Context) error {
			_, err := g.notifications.SetStatus(ctx, constants.StatusAccepted, Match{
				Type:        constants.NotificationFollowRequest,
				SenderID:    requesterID,
				RecipientID: targetID,
				Status:      constants.StatusPending,
			})
			return err
		}),
		newStep("notify", func(ctx context.Context) error {
			_, err := g.notifications.Emit(ctx, model.Notification{
				Type:        constants.NotificationFollowAccepted,
				SenderID:    targetID,
				RecipientID: requesterID,
				Status:      constants.StatusUnread,
			})
			return err
		}),
	)
	g.invalidate(requesterID)
	return err
}

// Decline drops requesterID's pending request to targetID. Declining a
// request that is not pending is a no-op.
func (g *FollowGraph) Decline(ctx context.Context, targetID, requesterID string) error {
	s := newSaga("decline_request", g.logger, zap.String("target_id", targetID), zap.String("requester_id", requesterID))
	return s.run(ctx,
		newStep("remove_pending", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, targetID, docstore.ArrayRemove("pendingFollowRequests", requesterID))
		}),
		newStep("mark_declined", func(ctx context.Context) error {
			_, err := g.notifications.SetStatus(ctx, constants.StatusDeclined, Match{
				Type:        constants.NotificationFollowRequest,
				SenderID:    requesterID,
				RecipientID: targetID,
				Status:      constants.StatusPending,
			})
			return err
		}),
	)
}

// RemoveFollower removes followerID from selfID's followers. If self is
// private the follower's saved copies of self's posts are cleaned up.
func (g *FollowGraph) RemoveFollower(ctx context.Context, selfID, followerID string) error {
	if selfID == followerID {
		return precondition(ErrSelfFollow, "You can't remove yourself.")
	}
	self, err := g.records.account(ctx, selfID)
	if err != nil {
		return err
	}

	s := newSaga("remove_follower", g.logger, zap.String("self_id", selfID), zap.String("follower_id", followerID))
	err = s.run(ctx,
		newStep("remove_follower", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, selfID, docstore.ArrayRemove("followers", followerID))
		}),
		newStep("remove_following", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, followerID, docstore.ArrayRemove("following", selfID))
		}),
	)
	g.invalidate(followerID)
	if err != nil {
		return err
	}

	if self.IsPrivate {
		if _, err := g.consistency.AfterUnfollow(ctx, followerID, selfID); err != nil {
			return err
		}
	}
	return nil
}

// RepairReport describes what RepairEdge rewrote.
type RepairReport struct {
	Following      bool `json:"following"`
	FixedFollowing bool `json:"fixedFollowing"`
	ClearedPending bool `json:"clearedPending"`
}

// RepairEdge reconciles the a -> b edge after a partial failure. b's
// followers list is authoritative: a's following list is rewritten to agree,
// and a stale pending request from a is cleared if a already follows b.
func (g *FollowGraph) RepairEdge(ctx context.Context, aID, bID string) (RepairReport, error) {
	a, err := g.records.account(ctx, aID)
	if err != nil {
		return RepairReport{}, err
	}
	b, err := g.records.account(ctx, bID)
	if err != nil {
		return RepairReport{}, err
	}

	report := RepairReport{Following: b.HasFollower(aID)}
	var steps []step
	switch {
	case report.Following && !a.IsFollowing(bID):
		report.FixedFollowing = true
		steps = append(steps, newStep("add_following", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, aID, docstore.ArrayUnion("following", bID))
		}))
	case !report.Following && a.IsFollowing(bID):
		report.FixedFollowing = true
		steps = append(steps, newStep("remove_following", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, aID, docstore.ArrayRemove("following", bID))
		}))
	}
	if report.Following && b.HasPendingRequestFrom(aID) {
		report.ClearedPending = true
		steps = append(steps, newStep("clear_pending", func(ctx context.Context) error {
			return g.records.update(ctx, constants.CollectionAccounts, bID, docstore.ArrayRemove("pendingFollowRequests", aID))
		}))
	}
	if len(steps) == 0 {
		return report, nil
	}

	s := newSaga("repair_edge", g.logger, zap.String("a_id", aID), zap.String("b_id", bID))
	if err := s.run(ctx, steps...); err != nil {
		return report, err
	}
	g.invalidate(aID)
	g.logger.Info("Edge repaired",
		zap.String("a_id", aID),
		zap.String("b_id", bID),
		zap.Bool("following", report.Following),
		zap.Bool("fixed_following", report.FixedFollowing),
		zap.Bool("cleared_pending", report.ClearedPending),
	)
	return report, nil
}

func (g *FollowGraph) invalidate(viewerID string) {
	if g.feeds != nil {
		g.feeds.InvalidateViewer(viewerID)
	}
}
