package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lookbook/backend/internal/constants"
	"lookbook/backend/internal/social"
)

func (h *Handler) feed(c *gin.Context) {
	posts, err := h.engine.Feeds.Feed(c.Request.Context(), viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *Handler) explore(c *gin.Context) {
	posts, err := h.engine.Feeds.Explore(c.Request.Context(), viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *Handler) searchPosts(c *gin.Context) {
	posts, err := h.engine.Feeds.SearchPosts(c.Request.Context(), viewerID(c), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *Handler) searchTags(c *gin.Context) {
	groups, err := h.engine.Feeds.SearchTags(c.Request.Context(), viewerID(c), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (h *Handler) searchStyles(c *gin.Context) {
	groups, err := h.engine.Feeds.SearchStyles(c.Request.Context(), viewerID(c), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (h *Handler) searchUsers(c *gin.Context) {
	users, err := h.engine.Feeds.SearchUsers(c.Request.Context(), viewerID(c), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) profilePosts(c *gin.Context) {
	posts, err := h.engine.Feeds.ProfilePosts(c.Request.Context(), viewerID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *Handler) createPost(c *gin.Context) {
	var req social.NewPost
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	post, err := h.engine.Interactions.CreatePost(c.Request.Context(), viewerID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) viewPost(c *gin.Context) {
	post, err := h.engine.Interactions.ViewPost(c.Request.Context(), viewerID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) postState(c *gin.Context) {
	state, err := h.engine.Interactions.State(c.Request.Context(), viewerID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) like(c *gin.Context) {
	if err := h.engine.Interactions.Like(c.Request.Context(), viewerID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": true})
}

func (h *Handler) unlike(c *gin.Context) {
	if err := h.engine.Interactions.Unlike(c.Request.Context(), viewerID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": false})
}

func (h *Handler) comment(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	comment, err := h.engine.Interactions.Comment(c.Request.Context(), viewerID(c), c.Param("id"), req.Text)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) bookmark(c *gin.Context) {
	b, err := h.engine.Interactions.Bookmark(c.Request.Context(), viewerID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) unbookmark(c *gin.Context) {
	if err := h.engine.Interactions.Unbookmark(c.Request.Context(), viewerID(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarked": false})
}

func (h *Handler) bookmarks(c *gin.Context) {
	list, err := h.engine.Interactions.Bookmarks(c.Request.Context(), viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarks": list})
}

func (h *Handler) boards(c *gin.Context) {
	list, err := h.engine.Interactions.Boards(c.Request.Context(), viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"boards": list})
}

func (h *Handler) createBoard(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	board, err := h.engine.Interactions.CreateBoard(c.Request.Context(), viewerID(c), req.Name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, board)
}

func (h *Handler) addToBoard(c *gin.Context) {
	if err := h.engine.Interactions.AddToBoard(c.Request.Context(), viewerID(c), c.Param("id"), c.Param("postId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "added"})
}

func (h *Handler) removeFromBoard(c *gin.Context) {
	if err := h.engine.Interactions.RemoveFromBoard(c.Request.Context(), viewerID(c), c.Param("id"), c.Param("postId")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (h *Handler) notifications(c *gin.Context) {
	limit, err := notificationLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.engine.Notifications.ForRecipient(c.Request.Context(), viewerID(c), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// notificationLimit parses the page size, clamping it to MaxNotificationPage.
func notificationLimit(raw string) (int, error) {
	if raw == "" {
		return constants.DefaultNotificationPage, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive number")
	}
	return min(limit, constants.MaxNotificationPage), nil
}
