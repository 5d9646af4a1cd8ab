package api

import (
	"github.com/feedvault/feedvault/app/database"
	"github.com/feedvault/feedvault/app/feed"
	"github.com/feedvault/feedvault/app/store"
	feedsync "github.com/feedvault/feedvault/app/sync"
	"github.com/feedvault/feedvault/app/tasks"
)

type Handler struct {
	store     *store.Store
	provider  *feedsync.Provider
	refresher *feed.Refresher
	scheduler tasks.TaskSchedulerInterface
	articles  database.ArticleRepository
	ops       database.PendingOperationRepository
	statuses  database.SyncStatusRepository
}

type addFeedRequest struct {
	URL    string `json:"url" binding:"required"`
	Name   string `json:"name"`
	Folder string `json:"folder"`
}

type updateFeedRequest struct {
	Name   *string `json:"name"`
	Folder *string `json:"folder"`
}

type addFolderRequest struct {
	Name string `json:"name" binding:"required"`
}

type renameFolderRequest struct {
	Name string `json:"name" binding:"required"`
}

type markArticlesRequest struct {
	ArticleIDs []string `json:"article_ids" binding:"required"`
	Key        string   `json:"key" binding:"required"`
	Flag       bool     `json:"flag"`
}
