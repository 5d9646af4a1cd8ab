package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/feedvault/feedvault/app/database"
	"github.com/feedvault/feedvault/app/remote"
)

// SendArticleStatuses transmits queued per-article status deltas to the
// remote store. Each pass claims a batch, collapses it into one status record
// per article and pushes the records; entries for records that could not be
// written recoverably are returned to the queue.
func (p *Provider) SendArticleStatuses(ctx context.Context) error {
	if p.client == nil {
		return nil
	}

	for {
		batch, err := p.statuses.SelectBatchForSending(statusBatchSize)
		if err != nil {
			return fmt.Errorf("failed to select status batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		if !p.accountAvailable(ctx) {
			if err := p.statuses.ResetUnsent(batch); err != nil {
				return err
			}
			return nil
		}

		sent, reset, err := p.sendBatch(ctx, batch)
		if err != nil {
			if resetErr := p.statuses.ResetUnsent(batch); resetErr != nil {
				slog.Error("Failed to reset status batch after send failure", "error", resetErr)
			}
			return err
		}

		if err := p.statuses.MarkSent(sent); err != nil {
			return err
		}
		if err := p.statuses.ResetUnsent(reset); err != nil {
			return err
		}

		// Nothing landed; a further claim would meet the same remote.
		if len(sent) == 0 {
			return nil
		}
	}
}

// sendBatch pushes one claimed batch and splits it into entries confirmed by
// the remote store and entries to return to the queue.
func (p *Provider) sendBatch(ctx context.Context, batch []database.SyncStatus) (sent, reset []database.SyncStatus, err error) {
	byArticle := lo.GroupBy(batch, func(entry database.SyncStatus) string {
		return entry.ArticleID
	})

	records := make([]remote.Record, 0, len(byArticle))
	for articleID, entries := range byArticle {
		fields := &remote.StatusFields{ArticleID: articleID}
		for _, entry := range entries {
			flag := entry.Flag
			switch entry.Key {
			case database.StatusRead:
				fields.Read = &flag
			case database.StatusStarred:
				fields.Starred = &flag
			case database.StatusNew:
				fields.New = &flag
			case database.StatusDeleted:
				fields.Deleted = &flag
			}
		}
		records = append(records, remote.Record{
			Kind:   remote.KindArticleStatus,
			ID:     articleID,
			Status: fields,
		})
	}

	results, err := p.client.PushRecords(ctx, remote.ZoneArticles, records)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to push status records: %w", err)
	}

	outcomeByArticle := make(map[string]*remote.Error, len(results))
	for _, result := range results {
		outcomeByArticle[result.ID] = result.Err
	}

	for articleID, entries := range byArticle {
		recordErr, ok := outcomeByArticle[articleID]
		switch {
		case ok && recordErr == nil:
			sent = append(sent, entries...)
		case ok && !remote.IsRecoverable(recordErr):
			// The remote store will never accept this record; dropping the
			// entries is the only way to keep the queue moving.
			slog.Error("Dropping unacceptable status record", "articleID", articleID, "error", recordErr)
			sent = append(sent, entries...)
		default:
			reset = append(reset, entries...)
		}
	}

	return sent, reset, nil
}
