package database

import (
	"fmt"
)

var _ FeedRepository = (*FeedRepositoryImpl)(nil)

// FeedRepositoryImpl handles database operations for feeds
type FeedRepositoryImpl struct {
	db *DB
}

func NewFeedRepository(db *DB) *FeedRepositoryImpl {
	return &FeedRepositoryImpl{db: db}
}

func (r *FeedRepositoryImpl) GetAll() ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT id, folder_id, url, name, custom_name, home_page_url, icon_url,
		       external_id, etag, last_modified, last_checked_at, created_at, updated_at
		FROM feeds
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var feed Feed
		if err := rows.Scan(&feed.ID, &feed.FolderID, &feed.URL, &feed.Name,
			&feed.CustomName, &feed.HomePageURL, &feed.IconURL, &feed.ExternalID,
			&feed.ETag, &feed.LastModified, &feed.LastCheckedAt,
			&feed.CreatedAt, &feed.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *FeedRepositoryImpl) Insert(feed *Feed) error {
	_, err := r.db.Exec(`
		INSERT INTO feeds (id, folder_id, url, name, custom_name, home_page_url,
		                   icon_url, external_id, etag, last_modified, last_checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, feed.ID, feed.FolderID, feed.URL, feed.Name, feed.CustomName,
		feed.HomePageURL, feed.IconURL, feed.ExternalID, feed.ETag,
		feed.LastModified, feed.LastCheckedAt)

	if err != nil {
		return fmt.Errorf("failed to insert feed: %w", err)
	}

	return nil
}

func (r *FeedRepositoryImpl) Update(feed *Feed) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET folder_id = ?, url = ?, name = ?, custom_name = ?, home_page_url = ?,
		    icon_url = ?, external_id = ?, etag = ?, last_modified = ?,
		    last_checked_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, feed.FolderID, feed.URL, feed.Name, feed.CustomName, feed.HomePageURL,
		feed.IconURL, feed.ExternalID, feed.ETag, feed.LastModified,
		feed.LastCheckedAt, feed.ID)

	if err != nil {
		return fmt.Errorf("failed to update feed: %w", err)
	}

	return nil
}

func (r *FeedRepositoryImpl) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}

	return nil
}
