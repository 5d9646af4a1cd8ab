// Package api exposes the application over HTTP: feed and folder management,
// article statuses, OPML transfer and sync controls.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/feedvault/feedvault/app/database"
	"github.com/feedvault/feedvault/app/feed"
	"github.com/feedvault/feedvault/app/store"
	feedsync "github.com/feedvault/feedvault/app/sync"
	"github.com/feedvault/feedvault/app/tasks"
)

func NewHandler(st *store.Store, provider *feedsync.Provider, refresher *feed.Refresher,
	scheduler tasks.TaskSchedulerInterface, articles database.ArticleRepository,
	ops database.PendingOperationRepository, statuses database.SyncStatusRepository) *Handler {
	return &Handler{
		store:     st,
		provider:  provider,
		refresher: refresher,
		scheduler: scheduler,
		articles:  articles,
		ops:       ops,
		statuses:  statuses,
	}
}

// NewServer creates the HTTP server with all routes configured.
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	api := r.Group("/api")
	if apiAccessKey != "" {
		api.Use(authMiddleware(apiAccessKey))
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled (API_ACCESS_KEY not set)")
	}
	{
		api.GET("/feeds", handler.ListFeeds)
		api.POST("/feeds", handler.AddFeed)
		api.PATCH("/feeds/:id", handler.UpdateFeed)
		api.DELETE("/feeds/:id", handler.DeleteFeed)
		api.POST("/feeds/:id/refresh", handler.RefreshFeed)
		api.GET("/feeds/:id/articles", handler.ListArticles)

		api.GET("/folders", handler.ListFolders)
		api.POST("/folders", handler.AddFolder)
		api.PATCH("/folders/:id", handler.RenameFolder)
		api.DELETE("/folders/:id", handler.DeleteFolder)

		api.POST("/articles/statuses", handler.MarkArticles)

		api.GET("/opml", handler.ExportOPML)
		api.POST("/opml", handler.ImportOPML)

		api.POST("/sync/refresh", handler.TriggerSync)
	}

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	return r
}

func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
