package sync

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/samber/lo"

	"github.com/feedvault/feedvault/app/database"
	"github.com/feedvault/feedvault/app/remote"
	"github.com/feedvault/feedvault/app/store"
)

// ArticleZone reconciles article-zone deltas into the local store.
//
// Status reconciliation is local-pending-wins: a remote flag value never
// overwrites an article whose same flag has an unsent local change queued.
// The local change is newer by definition; it will reach the remote store on
// the next status send.
type ArticleZone struct {
	store    *store.Store
	statuses database.SyncStatusRepository
}

func NewArticleZone(st *store.Store, statuses database.SyncStatusRepository) *ArticleZone {
	return &ArticleZone{store: st, statuses: statuses}
}

// Apply ingests one change set: upserts changed articles, applies status
// flags and removes deleted articles.
func (z *ArticleZone) Apply(ctx context.Context, changes *remote.ChangeSet) error {
	var errs []error

	statuses := make(map[string]*remote.StatusFields)
	articlesByFeed := make(map[string][]remote.Record)

	for _, record := range changes.Changed {
		switch record.Kind {
		case remote.KindArticle:
			articlesByFeed[record.Article.FeedExternalID] = append(articlesByFeed[record.Article.FeedExternalID], record)
		case remote.KindArticleStatus:
			// Later records in the same batch win per flag.
			merged, ok := statuses[record.Status.ArticleID]
			if !ok {
				merged = &remote.StatusFields{ArticleID: record.Status.ArticleID}
				statuses[record.Status.ArticleID] = merged
			}
			mergeStatus(merged, record.Status)
		default:
			slog.Warn("Ignoring unexpected record kind in article zone", "kind", record.Kind, "id", record.ID)
		}
	}

	for feedExternalID, records := range articlesByFeed {
		if err := z.applyArticles(feedExternalID, records); err != nil {
			errs = append(errs, err)
		}
	}

	if err := z.applyStatuses(statuses); err != nil {
		errs = append(errs, err)
	}

	var deletedIDs []string
	for _, key := range changes.Deleted {
		if key.Kind == remote.KindArticle {
			deletedIDs = append(deletedIDs, key.ID)
		}
	}
	for articleID, fields := range statuses {
		if fields.Deleted != nil && *fields.Deleted {
			deletedIDs = append(deletedIDs, articleID)
		}
	}
	if err := z.applyDeletions(deletedIDs); err != nil {
		errs = append(errs, err)
	}

	for _, err := range errs {
		slog.Error("Article zone reconciliation error", "error", err)
	}
	if len(errs) > 0 {
		return errs[len(errs)-1]
	}
	return nil
}

func (z *ArticleZone) applyArticles(feedExternalID string, records []remote.Record) error {
	feed, ok := z.store.FeedByExternalID(feedExternalID)
	if !ok {
		// The owning feed has not arrived (or was deleted locally). Skip;
		// the next full or incremental pull re-delivers the articles once
		// the feed exists.
		slog.Debug("Skipping articles for unknown feed", "feedExternalID", feedExternalID, "count", len(records))
		return nil
	}

	articles := make([]database.Article, 0, len(records))
	for _, record := range records {
		article, err := z.toArticle(feed.ID, record)
		if err != nil {
			slog.Warn("Dropping undecodable article record", "id", record.ID, "error", err)
			continue
		}
		articles = append(articles, article)
	}
	if len(articles) == 0 {
		return nil
	}

	_, prunedIDs, err := z.store.UpsertArticles(feed.ID, articles)
	if err != nil {
		return fmt.Errorf("failed to upsert articles for feed %s: %w", feed.ID, err)
	}

	// Capacity pruning removed older articles; propagate their deletion so
	// the remote store converges too.
	for _, id := range prunedIDs {
		if err := z.statuses.RecordStatusChange(id, database.StatusDeleted, true); err != nil {
			return err
		}
	}
	return nil
}

func (z *ArticleZone) toArticle(feedID string, record remote.Record) (database.Article, error) {
	fields := record.Article

	content := fields.Content
	if fields.ContentEncoding == "gzip" {
		reader, err := gzip.NewReader(bytes.NewReader(fields.Content))
		if err != nil {
			return database.Article{}, fmt.Errorf("failed to open gzip content: %w", err)
		}
		content, err = io.ReadAll(reader)
		if err != nil {
			return database.Article{}, fmt.Errorf("failed to decompress content: %w", err)
		}
		if err := reader.Close(); err != nil {
			return database.Article{}, fmt.Errorf("failed to finish decompression: %w", err)
		}
	}

	return database.Article{
		ID:          record.ID,
		FeedID:      feedID,
		GUID:        fields.GUID,
		Title:       fields.Title,
		ContentHTML: string(content),
		URL:         fields.URL,
		PublishedAt: fields.PublishedAt,
		ModifiedAt:  fields.ModifiedAt,
	}, nil
}

// applyStatuses splits the merged per-article flags into per-key buckets,
// subtracts articles with pending local changes for that key and applies the
// remainder.
func (z *ArticleZone) applyStatuses(statuses map[string]*remote.StatusFields) error {
	buckets := map[database.StatusKey]map[bool][]string{
		database.StatusRead:    {},
		database.StatusStarred: {},
		database.StatusNew:     {},
	}

	for articleID, fields := range statuses {
		if fields.Read != nil {
			buckets[database.StatusRead][*fields.Read] = append(buckets[database.StatusRead][*fields.Read], articleID)
		}
		if fields.Starred != nil {
			buckets[database.StatusStarred][*fields.Starred] = append(buckets[database.StatusStarred][*fields.Starred], articleID)
		}
		if fields.New != nil {
			buckets[database.StatusNew][*fields.New] = append(buckets[database.StatusNew][*fields.New], articleID)
		}
	}

	for key, byFlag := range buckets {
		if len(byFlag[true]) == 0 && len(byFlag[false]) == 0 {
			continue
		}

		pending, err := z.statuses.PendingArticleIDs(key)
		if err != nil {
			return fmt.Errorf("failed to load pending %s statuses: %w", key, err)
		}

		for _, flag := range []bool{true, false} {
			updatable := lo.Without(byFlag[flag], pending...)
			if len(updatable) == 0 {
				continue
			}
			if _, err := z.store.MarkArticles(updatable, key, flag); err != nil {
				return fmt.Errorf("failed to apply remote %s=%t statuses: %w", key, flag, err)
			}
		}
	}

	return nil
}

// applyDeletions removes remotely deleted articles, except those the user has
// starred locally with the change still unsent. A locally starred article is
// an explicit keep; its deletion would race the outgoing star.
func (z *ArticleZone) applyDeletions(articleIDs []string) error {
	if len(articleIDs) == 0 {
		return nil
	}

	pendingStarred, err := z.statuses.PendingArticleIDs(database.StatusStarred)
	if err != nil {
		return fmt.Errorf("failed to load pending starred statuses: %w", err)
	}

	deletable := lo.Without(articleIDs, pendingStarred...)
	if len(deletable) == 0 {
		return nil
	}
	if err := z.store.DeleteArticles(deletable); err != nil {
		return fmt.Errorf("failed to delete remotely removed articles: %w", err)
	}
	return nil
}

func mergeStatus(dst, src *remote.StatusFields) {
	if src.Read != nil {
		dst.Read = src.Read
	}
	if src.Starred != nil {
		dst.Starred = src.Starred
	}
	if src.New != nil {
		dst.New = src.New
	}
	if src.Deleted != nil {
		dst.Deleted = src.Deleted
	}
}
