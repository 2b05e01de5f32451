package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lookbook/backend/internal/model"
	"lookbook/backend/internal/social"
)

type followResponse struct {
	State              model.FollowState `json:"state"`
	Action             social.Action     `json:"action,omitempty"`
	IsFollowing        bool              `json:"isFollowing"`
	HasRequestedFollow bool              `json:"hasRequestedFollow"`
	Label              *social.Label     `json:"label,omitempty"`
}

func newFollowResponse(r social.Result) followResponse {
	return followResponse{
		State:              r.State,
		Action:             r.Action,
		IsFollowing:        r.IsFollowing(),
		HasRequestedFollow: r.HasRequestedFollow(),
	}
}

func (h *Handler) createAccount(c *gin.Context) {
	var req social.NewAccount
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	account, err := h.engine.Accounts.CreateAccount(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (h *Handler) getAccount(c *gin.Context) {
	account, err := h.engine.Accounts.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if account.ID != viewerID(c) {
		summary := account.Summary()
		summary.Locked = !social.CanView(viewerID(c), account)
		c.JSON(http.StatusOK, summary)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *Handler) setPrivacy(c *gin.Context) {
	id := c.Param("id")
	if id != viewerID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only change your own privacy."})
		return
	}
	var req struct {
		IsPrivate *bool `json:"isPrivate" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	report, err := h.engine.Accounts.SetPrivacy(c.Request.Context(), id, *req.IsPrivate)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isPrivate": *req.IsPrivate, "cleanup": report})
}

func (h *Handler) followStatus(c *gin.Context) {
	ctx := c.Request.Context()
	viewer, target := viewerID(c), c.Param("target")

	state, err := h.engine.Graph.Status(ctx, viewer, target)
	if err != nil {
		h.respondError(c, err)
		return
	}
	back, err := h.engine.Graph.IsFollowingBack(ctx, viewer, target)
	if err != nil {
		h.respondError(c, err)
		return
	}
	label := social.ButtonLabel(state, back)
	resp := newFollowResponse(social.Result{State: state})
	resp.Label = &label
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) transition(c *gin.Context) {
	var req struct {
		State *model.FollowState `json:"state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.engine.Graph.Transition(c.Request.Context(), viewerID(c), c.Param("target"), *req.State)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFollowResponse(res))
}

func (h *Handler) unfollow(c *gin.Context) {
	res, err := h.engine.Graph.Unfollow(c.Request.Context(), viewerID(c), c.Param("target"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFollowResponse(res))
}

func (h *Handler) acceptRequest(c *gin.Context) {
	if err := h.engine.Graph.Accept(c.Request.Context(), viewerID(c), c.Param("requester")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (h *Handler) declineRequest(c *gin.Context) {
	if err := h.engine.Graph.Decline(c.Request.Context(), viewerID(c), c.Param("requester")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "declined"})
}

func (h *Handler) removeFollower(c *gin.Context) {
	if err := h.engine.Graph.RemoveFollower(c.Request.Context(), viewerID(c), c.Param("follower")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *Handler) getStyle(c *gin.Context) {
	style, ok, err := h.engine.Graph.Style(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"name": c.Param("name"), "followerCount": 0, "following": false})
		return
	}
	following := false
	for _, id := range style.Followers {
		if id == viewerID(c) {
			following = true
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"name": style.Name, "followerCount": len(style.Followers), "following": following})
}

func (h *Handler) followStyle(c *gin.Context) {
	if err := h.engine.Graph.FollowStyle(c.Request.Context(), viewerID(c), c.Param("name")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": true})
}

func (h *Handler) unfollowStyle(c *gin.Context) {
	if err := h.engine.Graph.UnfollowStyle(c.Request.Context(), viewerID(c), c.Param("name")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": false})
}

func (h *Handler) repairEdge(c *gin.Context) {
	var req struct {
		From string `json:"from" binding:"required"`
		To   string `json:"to" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	report, err := h.engine.Graph.RepairEdge(c.Request.Context(), req.From, req.To)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
