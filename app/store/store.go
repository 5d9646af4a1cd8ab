// Package store owns the in-memory model of folders and feeds, backed by the
// database repositories. All structural mutation flows through its API; other
// components hold IDs, never pointers into the arena, and observe changes
// through the event bus.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feedvault/feedvault/app/database"
	"github.com/feedvault/feedvault/app/events"
)

type Store struct {
	mu      sync.RWMutex
	folders map[string]*database.Folder
	feeds   map[string]*database.Feed

	folderRepo  database.FolderRepository
	feedRepo    database.FeedRepository
	articleRepo database.ArticleRepository
	bus         *events.Bus
}

func NewStore(folderRepo database.FolderRepository, feedRepo database.FeedRepository,
	articleRepo database.ArticleRepository, bus *events.Bus) *Store {
	return &Store{
		folders:     make(map[string]*database.Folder),
		feeds:       make(map[string]*database.Feed),
		folderRepo:  folderRepo,
		feedRepo:    feedRepo,
		articleRepo: articleRepo,
		bus:         bus,
	}
}

// Load populates the arena from the database. Call once at startup.
func (s *Store) Load() error {
	folders, err := s.folderRepo.GetAll()
	if err != nil {
		return fmt.Errorf("failed to load folders: %w", err)
	}
	feeds, err := s.feedRepo.GetAll()
	if err != nil {
		return fmt.Errorf("failed to load feeds: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range folders {
		s.folders[folders[i].ID] = &folders[i]
	}
	for i := range feeds {
		s.feeds[feeds[i].ID] = &feeds[i]
	}

	return nil
}

// --- Lookups (copies, never arena pointers) ---

func (s *Store) Folders() []database.Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	folders := make([]database.Folder, 0, len(s.folders))
	for _, folder := range s.folders {
		folders = append(folders, *folder)
	}
	return folders
}

func (s *Store) Feeds() []database.Feed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feeds := make([]database.Feed, 0, len(s.feeds))
	for _, feed := range s.feeds {
		feeds = append(feeds, *feed)
	}
	return feeds
}

// FeedsInFolder returns the member feeds of a folder, or top-level feeds when
// folderID is nil.
func (s *Store) FeedsInFolder(folderID *string) []database.Feed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var feeds []database.Feed
	for _, feed := range s.feeds {
		switch {
		case folderID == nil && feed.FolderID == nil:
			feeds = append(feeds, *feed)
		case folderID != nil && feed.FolderID != nil && *feed.FolderID == *folderID:
			feeds = append(feeds, *feed)
		}
	}
	return feeds
}

func (s *Store) FeedByID(id string) (database.Feed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feed, ok := s.feeds[id]
	if !ok {
		return database.Feed{}, false
	}
	return *feed, true
}

func (s *Store) FeedByURL(url string) (database.Feed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, feed := range s.feeds {
		if feed.URL == url {
			return *feed, true
		}
	}
	return database.Feed{}, false
}

func (s *Store) FeedByExternalID(externalID string) (database.Feed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, feed := range s.feeds {
		if feed.ExternalID == externalID {
			return *feed, true
		}
	}
	return database.Feed{}, false
}

func (s *Store) FolderByID(id string) (database.Folder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	folder, ok := s.folders[id]
	if !ok {
		return database.Folder{}, false
	}
	return *folder, true
}

func (s *Store) FolderByName(name string) (database.Folder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, folder := range s.folders {
		if folder.Name == name {
			return *folder, true
		}
	}
	return database.Folder{}, false
}

func (s *Store) FolderByExternalID(externalID string) (database.Folder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, folder := range s.folders {
		if folder.ExternalID == externalID {
			return *folder, true
		}
	}
	return database.Folder{}, false
}

// --- Folder mutations ---

// AddFolder creates a folder with a local-only external ID, or returns the
// existing folder of the same name (folder identity is its display name).
func (s *Store) AddFolder(name string) (database.Folder, error) {
	if name == "" {
		return database.Folder{}, fmt.Errorf("folder name must not be empty")
	}

	if existing, ok := s.FolderByName(name); ok {
		return existing, nil
	}

	folder := &database.Folder{
		ID:         uuid.NewString(),
		Name:       name,
		ExternalID: database.LocalIDPrefix + uuid.NewString(),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.folderRepo.Insert(folder); err != nil {
		return database.Folder{}, err
	}

	s.mu.Lock()
	s.folders[folder.ID] = folder
	s.mu.Unlock()

	s.bus.Publish(events.FoldersChanged{})
	return *folder, nil
}

func (s *Store) RenameFolder(id, name string) error {
	if name == "" {
		return fmt.Errorf("folder name must not be empty")
	}

	s.mu.Lock()
	folder, ok := s.folders[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("folder %s not found", id)
	}
	folder.Name = name
	snapshot := *folder
	s.mu.Unlock()

	if err := s.folderRepo.Update(&snapshot); err != nil {
		return err
	}

	s.bus.Publish(events.FoldersChanged{})
	return nil
}

// RemoveFolder deletes a folder. Any feeds still referencing it are detached
// to the top level; callers that want member feeds gone remove them first.
// The arena is mutated only after the repository writes succeed, so a failed
// delete leaves memory and database agreeing.
func (s *Store) RemoveFolder(id string) error {
	s.mu.Lock()
	if _, ok := s.folders[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("folder %s not found", id)
	}
	var detached []database.Feed
	for _, feed := range s.feeds {
		if feed.FolderID != nil && *feed.FolderID == id {
			snapshot := *feed
			snapshot.FolderID = nil
			detached = append(detached, snapshot)
		}
	}
	s.mu.Unlock()

	for i := range detached {
		if err := s.feedRepo.Update(&detached[i]); err != nil {
			return err
		}
	}
	if err := s.folderRepo.Delete(id); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.folders, id)
	for _, snapshot := range detached {
		if feed, ok := s.feeds[snapshot.ID]; ok {
			feed.FolderID = nil
		}
	}
	s.mu.Unlock()

	s.bus.Publish(events.FoldersChanged{})
	return nil
}

// SetFolderExternalID promotes a folder's local token to a remote-assigned
// ID. Promotion is one-way; demoting back to a local token is rejected.
func (s *Store) SetFolderExternalID(id, externalID string) error {
	s.mu.Lock()
	folder, ok := s.folders[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("folder %s not found", id)
	}
	if !database.IsLocalID(folder.ExternalID) && database.IsLocalID(externalID) {
		s.mu.Unlock()
		return fmt.Errorf("folder %s already has remote ID %s", id, folder.ExternalID)
	}
	folder.ExternalID = externalID
	snapshot := *folder
	s.mu.Unlock()

	return s.folderRepo.Update(&snapshot)
}

// --- Feed mutations ---

// AddFeed creates a feed with a local-only external ID.
func (s *Store) AddFeed(url, name string, folderID *string) (database.Feed, error) {
	if url == "" {
		return database.Feed{}, fmt.Errorf("feed URL must not be empty")
	}
	if existing, ok := s.FeedByURL(url); ok {
		return existing, nil
	}

	feed := &database.Feed{
		ID:         uuid.NewString(),
		FolderID:   folderID,
		URL:        url,
		Name:       name,
		ExternalID: database.LocalIDPrefix + uuid.NewString(),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.feedRepo.Insert(feed); err != nil {
		return database.Feed{}, err
	}

	s.mu.Lock()
	s.feeds[feed.ID] = feed
	s.mu.Unlock()

	s.bus.Publish(events.FeedsChanged{})
	return *feed, nil
}

// RenameFeed sets the user-edited display name override.
func (s *Store) RenameFeed(id, customName string) error {
	return s.updateFeed(id, func(feed *database.Feed) {
		feed.CustomName = customName
	})
}

func (s *Store) MoveFeed(id string, folderID *string) error {
	return s.updateFeed(id, func(feed *database.Feed) {
		feed.FolderID = folderID
	})
}

// UpdateFeedMetadata applies parsed feed-level metadata.
func (s *Store) UpdateFeedMetadata(id, name, homePageURL, iconURL string) error {
	return s.updateFeed(id, func(feed *database.Feed) {
		if name != "" {
			feed.Name = name
		}
		if homePageURL != "" {
			feed.HomePageURL = homePageURL
		}
		if iconURL != "" {
			feed.IconURL = iconURL
		}
	})
}

// UpdateFeedFetchState records conditional-fetch cache metadata.
func (s *Store) UpdateFeedFetchState(id, etag, lastModified string, checkedAt time.Time) error {
	return s.updateFeed(id, func(feed *database.Feed) {
		feed.ETag = etag
		feed.LastModified = lastModified
		feed.LastCheckedAt = &checkedAt
	})
}

func (s *Store) RemoveFeed(id string) error {
	s.mu.Lock()
	if _, ok := s.feeds[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("feed %s not found", id)
	}
	delete(s.feeds, id)
	s.mu.Unlock()

	if err := s.feedRepo.Delete(id); err != nil {
		return err
	}

	s.bus.Publish(events.FeedsChanged{})
	return nil
}

// SetFeedExternalID promotes a feed's local token to a remote-assigned ID.
// Promotion is one-way; demoting back to a local token is rejected.
func (s *Store) SetFeedExternalID(id, externalID string) error {
	s.mu.Lock()
	feed, ok := s.feeds[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("feed %s not found", id)
	}
	if !database.IsLocalID(feed.ExternalID) && database.IsLocalID(externalID) {
		s.mu.Unlock()
		return fmt.Errorf("feed %s already has remote ID %s", id, feed.ExternalID)
	}
	feed.ExternalID = externalID
	snapshot := *feed
	s.mu.Unlock()

	return s.feedRepo.Update(&snapshot)
}

func (s *Store) updateFeed(id string, mutate func(*database.Feed)) error {
	s.mu.Lock()
	feed, ok := s.feeds[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("feed %s not found", id)
	}
	mutate(feed)
	feed.UpdatedAt = time.Now()
	snapshot := *feed
	s.mu.Unlock()

	if err := s.feedRepo.Update(&snapshot); err != nil {
		return err
	}

	s.bus.Publish(events.FeedsChanged{})
	return nil
}

// --- Articles ---

// UpsertArticles applies a batch of articles to one feed and returns the IDs
// of newly created articles plus any articles the store pruned as a side
// effect (so the caller can propagate their deletion).
func (s *Store) UpsertArticles(feedID string, articles []database.Article) (newIDs []string, prunedIDs []string, err error) {
	newIDs, prunedIDs, err = s.articleRepo.UpsertBatch(feedID, articles)
	if err != nil {
		return nil, nil, err
	}

	s.bus.Publish(events.ArticlesChanged{
		FeedID:  feedID,
		New:     len(newIDs),
		Updated: len(articles) - len(newIDs),
		Deleted: len(prunedIDs),
	})
	return newIDs, prunedIDs, nil
}

// MarkArticles flips one status flag and returns the IDs whose value changed.
func (s *Store) MarkArticles(ids []string, key database.StatusKey, flag bool) ([]string, error) {
	changed, err := s.articleRepo.SetStatus(ids, key, flag)
	if err != nil {
		return nil, err
	}

	if len(changed) > 0 {
		s.bus.Publish(events.ArticleStatusesChanged{ArticleIDs: changed, Key: string(key), Flag: flag})
	}
	return changed, nil
}

func (s *Store) ArticlesByIDs(ids []string) ([]database.Article, error) {
	return s.articleRepo.GetByIDs(ids)
}

func (s *Store) ArticlesForFeed(feedID string, unreadOnly bool, limit int) ([]database.Article, error) {
	return s.articleRepo.GetByFeed(feedID, unreadOnly, limit)
}

func (s *Store) DeleteArticles(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.articleRepo.DeleteByIDs(ids); err != nil {
		return err
	}
	s.bus.Publish(events.ArticlesChanged{Deleted: len(ids)})
	return nil
}

func (s *Store) CleanupArticles(olderThan time.Time) (int64, error) {
	return s.articleRepo.Cleanup(olderThan)
}

func (s *Store) Stats() (feeds, folders int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.feeds), len(s.folders)
}
