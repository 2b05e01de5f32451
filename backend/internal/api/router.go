// Package api exposes the social engine over HTTP with gin. The caller's
// identity arrives in the X-User-ID header; authentication happens upstream.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lookbook/backend/internal/social"
	"lookbook/backend/pkg/logger"
)

// ViewerHeader carries the authenticated account id.
const ViewerHeader = "X-User-ID"

const viewerKey = "viewer_id"

// Handler serves the engine's operations.
type Handler struct {
	engine *social.Engine
	logger *zap.Logger
}

func NewHandler(engine *social.Engine, log *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger.OrDefault(log, "api")}
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(engine *social.Engine, log *zap.Logger, production bool) *gin.Engine {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	h := NewHandler(engine, log)

	router := gin.New()
	router.Use(ginLogger(h.logger))
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Authorization", "Accept", "Origin", "Cache-Control", "X-Requested-With", ViewerHeader},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Signup is the only call without a viewer.
	router.POST("/api/accounts", h.createAccount)

	api := router.Group("/api", requireViewer())
	{
		api.GET("/accounts/:id", h.getAccount)
		api.PUT("/accounts/:id/privacy", h.setPrivacy)

		api.GET("/follow/:target", h.followStatus)
		api.POST("/follow/:target", h.transition)
		api.DELETE("/follow/:target", h.unfollow)
		api.POST("/requests/:requester/accept", h.acceptRequest)
		api.POST("/requests/:requester/decline", h.declineRequest)
		api.DELETE("/followers/:follower", h.removeFollower)

		api.GET("/styles/:name", h.getStyle)
		api.POST("/styles/:name/follow", h.followStyle)
		api.DELETE("/styles/:name/follow", h.unfollowStyle)

		api.GET("/feed", h.feed)
		api.GET("/explore", h.explore)
		api.GET("/search/posts", h.searchPosts)
		api.GET("/search/tags", h.searchTags)
		api.GET("/search/styles", h.searchStyles)
		api.GET("/search/users", h.searchUsers)
		api.GET("/profiles/:id/posts", h.profilePosts)

		api.POST("/posts", h.createPost)
		api.GET("/posts/:id", h.viewPost)
		api.GET("/posts/:id/state", h.postState)
		api.POST("/posts/:id/like", h.like)
		api.DELETE("/posts/:id/like", h.unlike)
		api.POST("/posts/:id/comments", h.comment)
		api.POST("/posts/:id/bookmark", h.bookmark)
		api.DELETE("/posts/:id/bookmark", h.unbookmark)
		api.GET("/bookmarks", h.bookmarks)

		api.GET("/boards", h.boards)
		api.POST("/boards", h.createBoard)
		api.POST("/boards/:id/posts/:postId", h.addToBoard)
		api.DELETE("/boards/:id/posts/:postId", h.removeFromBoard)

		api.GET("/notifications", h.notifications)

		api.POST("/maintenance/repair-edge", h.repairEdge)
	}

	return router
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
			zap.String("viewer_id", c.GetString(viewerKey)),
		)
	}
}

func requireViewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := c.GetHeader(ViewerHeader)
		if viewer == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + ViewerHeader + " header"})
			return
		}
		c.Set(viewerKey, viewer)
		c.Next()
	}
}

func viewerID(c *gin.Context) string {
	return c.GetString(viewerKey)
}
