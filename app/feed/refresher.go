package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/feedvault/feedvault/app/database"
	"github.com/feedvault/feedvault/app/store"
)

// Refresher runs the fetch-parse-store pipeline for one feed.
type Refresher struct {
	fetcher  *Fetcher
	parser   *Parser
	store    *store.Store
	statuses database.SyncStatusRepository
}

func NewRefresher(fetcher *Fetcher, parser *Parser, st *store.Store,
	statuses database.SyncStatusRepository) *Refresher {
	return &Refresher{
		fetcher:  fetcher,
		parser:   parser,
		store:    st,
		statuses: statuses,
	}
}

// Refresh fetches a feed and folds its items into the article store. New
// articles are flagged new and queued as status deltas; articles pruned by
// the per-feed cap are queued as deletions.
func (r *Refresher) Refresh(ctx context.Context, feedID string) error {
	feed, ok := r.store.FeedByID(feedID)
	if !ok {
		return fmt.Errorf("feed %s not found", feedID)
	}

	result, err := r.fetcher.Fetch(ctx, feed.URL, feed.ETag, feed.LastModified)
	if err != nil {
		return err
	}

	now := time.Now()
	if result.NotModified {
		slog.Debug("Feed unchanged", "feed", feed.URL)
		return r.store.UpdateFeedFetchState(feedID, feed.ETag, feed.LastModified, now)
	}

	metadata, items, err := r.parser.Parse(result.Body)
	if err != nil {
		return fmt.Errorf("failed to parse feed %s: %w", feed.URL, err)
	}

	if err := r.store.UpdateFeedMetadata(feedID, metadata.Title, metadata.Link, metadata.IconURL); err != nil {
		return err
	}

	articles := make([]database.Article, 0, len(items))
	for _, item := range items {
		articles = append(articles, database.Article{
			ID:          ArticleID(feedID, item.GUID),
			FeedID:      feedID,
			GUID:        item.GUID,
			Title:       item.Title,
			ContentHTML: item.Content,
			URL:         item.Link,
			PublishedAt: item.PublishedAt,
			ModifiedAt:  item.UpdatedAt,
			New:         true,
		})
	}

	newIDs, prunedIDs, err := r.store.UpsertArticles(feedID, articles)
	if err != nil {
		return err
	}

	for _, id := range newIDs {
		if err := r.statuses.RecordStatusChange(id, database.StatusNew, true); err != nil {
			return err
		}
	}
	for _, id := range prunedIDs {
		if err := r.statuses.RecordStatusChange(id, database.StatusDeleted, true); err != nil {
			return err
		}
	}

	if len(newIDs) > 0 {
		slog.Info("Feed refreshed", "feed", feed.URL, "new", len(newIDs), "total", len(items))
	}

	return r.store.UpdateFeedFetchState(feedID, result.ETag, result.LastModified, now)
}

// ArticleID derives the stable article identifier from its feed and GUID.
// The same item always maps to the same ID, so repeated fetches update in
// place instead of duplicating.
func ArticleID(feedID, guid string) string {
	sum := sha256.Sum256([]byte(feedID + "|" + guid))
	return hex.EncodeToString(sum[:])
}
