package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feedvault/feedvault/app/database"
	feedsync "github.com/feedvault/feedvault/app/sync"
	"github.com/feedvault/feedvault/app/tasks"
)

func outcomeString(outcome feedsync.Outcome) string {
	switch outcome {
	case feedsync.OutcomeApplied:
		return "applied"
	case feedsync.OutcomeAppliedAndQueued:
		return "queued"
	case feedsync.OutcomeRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// respondMutation maps a mutation outcome onto an HTTP response. A rolled
// back mutation surfaces the remote failure as a gateway error.
func respondMutation(c *gin.Context, status int, result feedsync.MutationResult, err error, body gin.H) {
	if err != nil {
		slog.Error("Mutation failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   err.Error(),
			"outcome": outcomeString(result.Outcome),
		})
		return
	}

	if body == nil {
		body = gin.H{}
	}
	body["outcome"] = outcomeString(result.Outcome)
	c.JSON(status, body)
}

func feedBody(feed database.Feed, folderName string) gin.H {
	return gin.H{
		"id":            feed.ID,
		"url":           feed.URL,
		"name":          feed.DisplayName(),
		"folder":        folderName,
		"external_id":   feed.ExternalID,
		"home_page_url": feed.HomePageURL,
	}
}

func (h *Handler) folderNameFor(feed database.Feed) string {
	if feed.FolderID == nil {
		return ""
	}
	folder, ok := h.store.FolderByID(*feed.FolderID)
	if !ok {
		return ""
	}
	return folder.Name
}

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds := h.store.Feeds()

	out := make([]gin.H, 0, len(feeds))
	for _, feed := range feeds {
		body := feedBody(feed, h.folderNameFor(feed))
		if feed.LastCheckedAt != nil {
			body["last_checked_at"] = feed.LastCheckedAt.Format(time.RFC3339)
		}
		out = append(out, body)
	}

	c.JSON(http.StatusOK, gin.H{"feeds": out, "total": len(out)})
}

func (h *Handler) AddFeed(c *gin.Context) {
	var req addFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	feed, result, err := h.provider.AddFeed(c.Request.Context(), req.URL, req.Name, req.Folder)
	if err != nil {
		respondMutation(c, 0, result, err, nil)
		return
	}

	if err := h.scheduler.EnqueueTask(tasks.NewRefreshFeedTask(feed.ID, h.refresher)); err != nil {
		slog.Warn("Failed to enqueue initial refresh", "feed", feed.ID, "error", err)
	}

	respondMutation(c, http.StatusCreated, result, nil, feedBody(feed, req.Folder))
}

func (h *Handler) UpdateFeed(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.store.FeedByID(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	var req updateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == nil && req.Folder == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	result := feedsync.MutationResult{}
	if req.Name != nil {
		var err error
		result, err = h.provider.RenameFeed(c.Request.Context(), id, *req.Name)
		if err != nil {
			respondMutation(c, 0, result, err, nil)
			return
		}
	}
	if req.Folder != nil {
		var err error
		result, err = h.provider.MoveFeed(c.Request.Context(), id, *req.Folder)
		if err != nil {
			respondMutation(c, 0, result, err, nil)
			return
		}
	}

	feed, _ := h.store.FeedByID(id)
	respondMutation(c, http.StatusOK, result, nil, feedBody(feed, h.folderNameFor(feed)))
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.store.FeedByID(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	result, err := h.provider.DeleteFeed(c.Request.Context(), id)
	respondMutation(c, http.StatusOK, result, err, nil)
}

func (h *Handler) RefreshFeed(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.store.FeedByID(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	task := tasks.NewRefreshFeedTask(id, h.refresher)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": task.GetID()})
}

func (h *Handler) ListArticles(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.store.FeedByID(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	unreadOnly := c.Query("unread") == "true"
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	articles, err := h.store.ArticlesForFeed(id, unreadOnly, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_articles", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]gin.H, 0, len(articles))
	for _, article := range articles {
		body := gin.H{
			"id":      article.ID,
			"title":   article.Title,
			"url":     article.URL,
			"read":    article.Read,
			"starred": article.Starred,
			"new":     article.New,
		}
		if article.PublishedAt != nil {
			body["published_at"] = article.PublishedAt.Format(time.RFC3339)
		}
		out = append(out, body)
	}

	c.JSON(http.StatusOK, gin.H{"articles": out, "total": len(out)})
}

func (h *Handler) ListFolders(c *gin.Context) {
	folders := h.store.Folders()

	out := make([]gin.H, 0, len(folders))
	for _, folder := range folders {
		out = append(out, gin.H{
			"id":          folder.ID,
			"name":        folder.Name,
			"external_id": folder.ExternalID,
			"feed_count":  len(h.store.FeedsInFolder(&folder.ID)),
		})
	}

	c.JSON(http.StatusOK, gin.H{"folders": out, "total": len(out)})
}

func (h *Handler) AddFolder(c *gin.Context) {
	var req addFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	folder, result, err := h.provider.AddFolder(c.Request.Context(), req.Name)
	respondMutation(c, http.StatusCreated, result, err, gin.H{
		"id":          folder.ID,
		"name":        folder.Name,
		"external_id": folder.ExternalID,
	})
}

func (h *Handler) RenameFolder(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.store.FolderByID(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return
	}

	var req renameFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.provider.RenameFolder(c.Request.Context(), id, req.Name)
	respondMutation(c, http.StatusOK, result, err, nil)
}

func (h *Handler) DeleteFolder(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.store.FolderByID(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Folder not found"})
		return
	}

	result, err := h.provider.DeleteFolder(c.Request.Context(), id)
	respondMutation(c, http.StatusOK, result, err, nil)
}

func (h *Handler) MarkArticles(c *gin.Context) {
	var req markArticlesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := database.StatusKey(req.Key)
	switch key {
	case database.StatusRead, database.StatusStarred, database.StatusNew:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status key"})
		return
	}

	changed, err := h.provider.MarkArticles(c.Request.Context(), req.ArticleIDs, key, req.Flag)
	if err != nil {
		slog.Error("Failed to mark articles", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark articles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"changed": len(changed)})
}

func (h *Handler) TriggerSync(c *gin.Context) {
	queue := []tasks.TaskInterface{
		tasks.NewDrainOperationsTask(h.provider),
		tasks.NewSendStatusesTask(h.provider),
		tasks.NewPullChangesTask(h.provider),
	}
	for _, task := range queue {
		if err := h.scheduler.EnqueueTask(task); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusAccepted, gin.H{"enqueued": len(queue)})
}

func (h *Handler) GetHealth(c *gin.Context) {
	feeds, folders := h.store.Stats()

	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"feeds":     feeds,
		"folders":   folders,
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	feeds, folders := h.store.Stats()

	stats := gin.H{
		"feeds":   feeds,
		"folders": folders,
	}

	if total, err := h.articles.CountAll(); err == nil {
		stats["articles"] = total
	}
	if unread, err := h.articles.CountUnread(); err == nil {
		stats["unread"] = unread
	}
	if pending, err := h.ops.Count(); err == nil {
		stats["pending_operations"] = pending
	}
	if pending, err := h.statuses.PendingCount(); err == nil {
		stats["pending_statuses"] = pending
	}

	c.JSON(http.StatusOK, stats)
}
