package database

import (
	"fmt"
)

var _ SyncStatusRepository = (*SyncStatusRepositoryImpl)(nil)

// SyncStatusRepositoryImpl handles database operations for the sync status
// queue: per-article status deltas awaiting transmission to the remote store.
type SyncStatusRepositoryImpl struct {
	db *DB
}

func NewSyncStatusRepository(db *DB) *SyncStatusRepositoryImpl {
	return &SyncStatusRepositoryImpl{db: db}
}

// RecordStatusChange upserts one pending row per (article, key). A newer
// local mutation overwrites any unsent prior value for the same key and
// clears a stale claim so the latest value is what gets sent.
func (r *SyncStatusRepositoryImpl) RecordStatusChange(articleID string, key StatusKey, flag bool) error {
	_, err := r.db.Exec(`
		INSERT INTO sync_statuses (article_id, status_key, flag, selected)
		VALUES (?, ?, ?, 0)
		ON CONFLICT (article_id, status_key) DO UPDATE SET
			flag = excluded.flag,
			selected = 0,
			created_at = CURRENT_TIMESTAMP
	`, articleID, string(key), flag)

	if err != nil {
		return fmt.Errorf("failed to record status change: %w", err)
	}

	return nil
}

func (r *SyncStatusRepositoryImpl) PendingCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sync_statuses`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending statuses: %w", err)
	}
	return count, nil
}

// PendingArticleIDs returns the IDs of all articles with a pending (sent or
// not yet confirmed) change for the given key. Claimed rows count as pending:
// a claim is not a confirmation.
func (r *SyncStatusRepositoryImpl) PendingArticleIDs(key StatusKey) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT article_id FROM sync_statuses WHERE status_key = ?
	`, string(key))
	if err != nil {
		return nil, fmt.Errorf("failed to get pending article IDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pending article ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending article IDs: %w", err)
	}

	return ids, nil
}

// SelectBatchForSending atomically claims up to limit unclaimed rows, oldest
// first. Claimed rows are excluded from subsequent claims until released.
func (r *SyncStatusRepositoryImpl) SelectBatchForSending(limit int) ([]SyncStatus, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT article_id, status_key, flag, selected, created_at
		FROM sync_statuses
		WHERE selected = 0
		ORDER BY created_at, rowid
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select status batch: %w", err)
	}

	var entries []SyncStatus
	for rows.Next() {
		var entry SyncStatus
		if err := rows.Scan(&entry.ArticleID, &entry.Key, &entry.Flag,
			&entry.Selected, &entry.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan status row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating status rows: %w", err)
	}
	rows.Close()

	for i := range entries {
		if _, err := tx.Exec(`
			UPDATE sync_statuses SET selected = 1
			WHERE article_id = ? AND status_key = ?
		`, entries[i].ArticleID, string(entries[i].Key)); err != nil {
			return nil, fmt.Errorf("failed to claim status row: %w", err)
		}
		entries[i].Selected = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status claim: %w", err)
	}

	return entries, nil
}

// MarkSent deletes rows whose deltas were confirmed sent (or whose articles
// no longer exist locally, so there is nothing left to reconcile). Only rows
// still carrying the claim are deleted: a mutation recorded while the batch
// was in flight recoalesces the row with a cleared claim, and that newer,
// never-sent value must survive the send's completion.
func (r *SyncStatusRepositoryImpl) MarkSent(entries []SyncStatus) error {
	for _, entry := range entries {
		if _, err := r.db.Exec(`
			DELETE FROM sync_statuses
			WHERE article_id = ? AND status_key = ? AND selected = 1
		`, entry.ArticleID, string(entry.Key)); err != nil {
			return fmt.Errorf("failed to delete sent status: %w", err)
		}
	}
	return nil
}

// ResetUnsent returns claimed rows to the queue after a failed send.
func (r *SyncStatusRepositoryImpl) ResetUnsent(entries []SyncStatus) error {
	for _, entry := range entries {
		if _, err := r.db.Exec(`
			UPDATE sync_statuses SET selected = 0
			WHERE article_id = ? AND status_key = ?
		`, entry.ArticleID, string(entry.Key)); err != nil {
			return fmt.Errorf("failed to reset status claim: %w", err)
		}
	}
	return nil
}
