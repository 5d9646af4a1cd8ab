package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// feedArticleCap bounds how many read, unstarred, non-new articles a feed
// keeps. Older ones beyond the cap are pruned during upsert; callers receive
// the pruned IDs so a "deleted" status can be propagated to other devices.
const feedArticleCap = 500

var _ ArticleRepository = (*ArticleRepositoryImpl)(nil)

// ArticleRepositoryImpl handles database operations for articles
type ArticleRepositoryImpl struct {
	db *DB
}

func NewArticleRepository(db *DB) *ArticleRepositoryImpl {
	return &ArticleRepositoryImpl{db: db}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func (r *ArticleRepositoryImpl) GetByIDs(ids []string) ([]Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, feed_id, guid, title, content_html, url, published_at,
		       modified_at, read, starred, is_new, created_at
		FROM articles
		WHERE id IN (%s)
	`, placeholders(len(ids)))

	rows, err := r.db.Query(query, toArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles by IDs: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

func (r *ArticleRepositoryImpl) GetByFeed(feedID string, unreadOnly bool, limit int) ([]Article, error) {
	query := `
		SELECT id, feed_id, guid, title, content_html, url, published_at,
		       modified_at, read, starred, is_new, created_at
		FROM articles
		WHERE feed_id = ?
	`
	if unreadOnly {
		query += " AND read = 0"
	}
	query += " ORDER BY COALESCE(published_at, created_at) DESC LIMIT ?"

	rows, err := r.db.Query(query, feedID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles for feed: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

// UpsertBatch inserts or updates the given articles for one feed, then prunes
// read, unstarred, non-new articles beyond the per-feed cap. It returns the
// IDs of newly created articles and of articles pruned as a side effect.
func (r *ArticleRepositoryImpl) UpsertBatch(feedID string, articles []Article) ([]string, []string, error) {
	var newIDs []string

	for _, article := range articles {
		var exists int
		err := r.db.QueryRow(`SELECT COUNT(*) FROM articles WHERE id = ?`, article.ID).Scan(&exists)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check article existence: %w", err)
		}

		if exists == 0 {
			_, err = r.db.Exec(`
				INSERT INTO articles (id, feed_id, guid, title, content_html, url,
				                      published_at, modified_at, read, starred, is_new)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, article.ID, feedID, article.GUID, article.Title, article.ContentHTML,
				article.URL, article.PublishedAt, article.ModifiedAt,
				article.Read, article.Starred, article.New)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to insert article: %w", err)
			}
			newIDs = append(newIDs, article.ID)
		} else {
			_, err = r.db.Exec(`
				UPDATE articles
				SET title = ?, content_html = ?, url = ?, modified_at = ?
				WHERE id = ?
			`, article.Title, article.ContentHTML, article.URL, article.ModifiedAt, article.ID)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to update article: %w", err)
			}
		}
	}

	prunedIDs, err := r.pruneFeed(feedID)
	if err != nil {
		return nil, nil, err
	}

	return newIDs, prunedIDs, nil
}

func (r *ArticleRepositoryImpl) pruneFeed(feedID string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT id FROM articles
		WHERE feed_id = ? AND read = 1 AND starred = 0 AND is_new = 0
		ORDER BY COALESCE(published_at, created_at) DESC
		LIMIT -1 OFFSET ?
	`, feedID, feedArticleCap)
	if err != nil {
		return nil, fmt.Errorf("failed to select prunable articles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan prunable article: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prunable articles: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.DeleteByIDs(ids); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *ArticleRepositoryImpl) DeleteByIDs(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`DELETE FROM articles WHERE id IN (%s)`, placeholders(len(ids)))
	if _, err := r.db.Exec(query, toArgs(ids)...); err != nil {
		return fmt.Errorf("failed to delete articles: %w", err)
	}

	return nil
}

// SetStatus flips one status flag on the given articles and returns the IDs
// whose stored value actually changed.
func (r *ArticleRepositoryImpl) SetStatus(ids []string, key StatusKey, flag bool) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	column, err := statusColumn(key)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id FROM articles WHERE %s != ? AND id IN (%s)`,
		column, placeholders(len(ids)))
	args := append([]interface{}{flag}, toArgs(ids)...)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select articles for status change: %w", err)
	}
	defer rows.Close()

	var changed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan article for status change: %w", err)
		}
		changed = append(changed, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating articles for status change: %w", err)
	}

	if len(changed) == 0 {
		return nil, nil
	}

	update := fmt.Sprintf(`UPDATE articles SET %s = ? WHERE id IN (%s)`,
		column, placeholders(len(changed)))
	updateArgs := append([]interface{}{flag}, toArgs(changed)...)
	if _, err := r.db.Exec(update, updateArgs...); err != nil {
		return nil, fmt.Errorf("failed to update article status: %w", err)
	}

	return changed, nil
}

func statusColumn(key StatusKey) (string, error) {
	switch key {
	case StatusRead:
		return "read", nil
	case StatusStarred:
		return "starred", nil
	case StatusNew:
		return "is_new", nil
	default:
		return "", fmt.Errorf("status key %q has no article column", key)
	}
}

func (r *ArticleRepositoryImpl) CountUnread() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM articles WHERE read = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread articles: %w", err)
	}
	return count, nil
}

func (r *ArticleRepositoryImpl) CountAll() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM articles`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

// Cleanup removes read, unstarred, non-new articles older than the cutoff.
func (r *ArticleRepositoryImpl) Cleanup(olderThan time.Time) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM articles
		WHERE read = 1 AND starred = 0 AND is_new = 0
		  AND COALESCE(published_at, created_at) < ?
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup articles: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get cleanup row count: %w", err)
	}

	return deleted, nil
}

func scanArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		var article Article
		if err := rows.Scan(&article.ID, &article.FeedID, &article.GUID,
			&article.Title, &article.ContentHTML, &article.URL,
			&article.PublishedAt, &article.ModifiedAt,
			&article.Read, &article.Starred, &article.New,
			&article.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}
