package tasks

import (
	"context"
	"log/slog"

	"github.com/feedvault/feedvault/app/feed"
)

type RefreshFeedTask struct {
	Task
	refresher *feed.Refresher
	feedID    string
}

func NewRefreshFeedTask(feedID string, refresher *feed.Refresher) *RefreshFeedTask {
	return &RefreshFeedTask{
		Task:      NewTask(TaskTypeRefreshFeed, feedID),
		refresher: refresher,
		feedID:    feedID,
	}
}

func (t *RefreshFeedTask) Execute(ctx context.Context) error {
	if err := t.refresher.Refresh(ctx, t.feedID); err != nil {
		return err
	}

	slog.Debug("Feed refresh completed", "feed", t.feedID, "duration", t.GetDuration().String())
	return nil
}
