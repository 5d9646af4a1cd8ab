package tasks

import (
	"context"
	"log/slog"
	"time"

	feedsync "github.com/feedvault/feedvault/app/sync"
)

// PullChangesTask fetches and reconciles remote deltas for both zones.
type PullChangesTask struct {
	Task
	provider *feedsync.Provider
}

func NewPullChangesTask(provider *feedsync.Provider) *PullChangesTask {
	return &PullChangesTask{
		Task:     NewTask(TaskTypePullChanges, "all-zones"),
		provider: provider,
	}
}

func (t *PullChangesTask) Execute(ctx context.Context) error {
	if err := t.provider.PullChanges(ctx); err != nil {
		return err
	}

	slog.Debug("Remote pull completed", "duration", t.GetDuration().String())
	return nil
}

// SendStatusesTask transmits queued article status deltas.
type SendStatusesTask struct {
	Task
	provider *feedsync.Provider
}

func NewSendStatusesTask(provider *feedsync.Provider) *SendStatusesTask {
	return &SendStatusesTask{
		Task:     NewTask(TaskTypeSendStatuses, "status-queue"),
		provider: provider,
	}
}

func (t *SendStatusesTask) Execute(ctx context.Context) error {
	return t.provider.SendArticleStatuses(ctx)
}

// DrainOperationsTask replays the pending structural operation queue.
type DrainOperationsTask struct {
	Task
	provider *feedsync.Provider
}

func NewDrainOperationsTask(provider *feedsync.Provider) *DrainOperationsTask {
	return &DrainOperationsTask{
		Task:     NewTask(TaskTypeDrainOperations, "operation-queue"),
		provider: provider,
	}
}

func (t *DrainOperationsTask) Execute(ctx context.Context) error {
	return t.provider.ProcessPendingOperations(ctx)
}

// ArticleCleaner is the slice of the store the cleanup task needs.
type ArticleCleaner interface {
	CleanupArticles(olderThan time.Time) (int64, error)
}

// CleanupArticlesTask removes old read, unstarred articles past the
// retention window.
type CleanupArticlesTask struct {
	Task
	cleaner       ArticleCleaner
	retentionDays int
}

func NewCleanupArticlesTask(cleaner ArticleCleaner, retentionDays int) *CleanupArticlesTask {
	return &CleanupArticlesTask{
		Task:          NewTask(TaskTypeCleanupArticles, "articles"),
		cleaner:       cleaner,
		retentionDays: retentionDays,
	}
}

func (t *CleanupArticlesTask) Execute(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -t.retentionDays)

	removed, err := t.cleaner.CleanupArticles(cutoff)
	if err != nil {
		return err
	}
	if removed > 0 {
		slog.Info("Article cleanup completed", "removed", removed, "cutoff", cutoff.Format(time.RFC3339))
	}
	return nil
}
