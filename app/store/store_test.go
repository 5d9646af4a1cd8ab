package store

import (
	"errors"
	"testing"
	"time"

	"github.com/feedvault/feedvault/app/database"
	"github.com/feedvault/feedvault/app/events"
)

// In-memory repository mocks in the style of the database interfaces.

type mockFolderRepo struct {
	folders   map[string]database.Folder
	deleteErr error
}

func newMockFolderRepo() *mockFolderRepo {
	return &mockFolderRepo{folders: make(map[string]database.Folder)}
}

func (m *mockFolderRepo) GetAll() ([]database.Folder, error) {
	var all []database.Folder
	for _, f := range m.folders {
		all = append(all, f)
	}
	return all, nil
}

func (m *mockFolderRepo) Insert(folder *database.Folder) error {
	m.folders[folder.ID] = *folder
	return nil
}

func (m *mockFolderRepo) Update(folder *database.Folder) error {
	m.folders[folder.ID] = *folder
	return nil
}

func (m *mockFolderRepo) Delete(id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.folders, id)
	return nil
}

type mockFeedRepo struct {
	feeds map[string]database.Feed
}

func newMockFeedRepo() *mockFeedRepo {
	return &mockFeedRepo{feeds: make(map[string]database.Feed)}
}

func (m *mockFeedRepo) GetAll() ([]database.Feed, error) {
	var all []database.Feed
	for _, f := range m.feeds {
		all = append(all, f)
	}
	return all, nil
}

func (m *mockFeedRepo) Insert(feed *database.Feed) error {
	m.feeds[feed.ID] = *feed
	return nil
}

func (m *mockFeedRepo) Update(feed *database.Feed) error {
	m.feeds[feed.ID] = *feed
	return nil
}

func (m *mockFeedRepo) Delete(id string) error {
	delete(m.feeds, id)
	return nil
}

type mockArticleRepo struct {
	statuses map[string]map[database.StatusKey]bool
}

func newMockArticleRepo() *mockArticleRepo {
	return &mockArticleRepo{statuses: make(map[string]map[database.StatusKey]bool)}
}

func (m *mockArticleRepo) GetByIDs(ids []string) ([]database.Article, error) { return nil, nil }
func (m *mockArticleRepo) GetByFeed(feedID string, unreadOnly bool, limit int) ([]database.Article, error) {
	return nil, nil
}
func (m *mockArticleRepo) UpsertBatch(feedID string, articles []database.Article) ([]string, []string, error) {
	var ids []string
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	return ids, nil, nil
}
func (m *mockArticleRepo) DeleteByIDs(ids []string) error { return nil }
func (m *mockArticleRepo) SetStatus(ids []string, key database.StatusKey, flag bool) ([]string, error) {
	var changed []string
	for _, id := range ids {
		if m.statuses[id] == nil {
			m.statuses[id] = make(map[database.StatusKey]bool)
		}
		if m.statuses[id][key] != flag {
			m.statuses[id][key] = flag
			changed = append(changed, id)
		}
	}
	return changed, nil
}
func (m *mockArticleRepo) CountUnread() (int, error)                   { return 0, nil }
func (m *mockArticleRepo) CountAll() (int, error)                      { return 0, nil }
func (m *mockArticleRepo) Cleanup(olderThan time.Time) (int64, error)  { return 0, nil }

func newTestStore() (*Store, *events.Bus) {
	bus := events.NewBus()
	return NewStore(newMockFolderRepo(), newMockFeedRepo(), newMockArticleRepo(), bus), bus
}

func TestAddFeedGetsLocalExternalID(t *testing.T) {
	s, _ := newTestStore()

	feed, err := s.AddFeed("https://example.com/feed.xml", "Example", nil)
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}
	if !database.IsLocalID(feed.ExternalID) {
		t.Errorf("Expected local external ID, got %s", feed.ExternalID)
	}
}

func TestExternalIDPromotionIsOneWay(t *testing.T) {
	s, _ := newTestStore()

	feed, err := s.AddFeed("https://example.com/feed.xml", "Example", nil)
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}

	if err := s.SetFeedExternalID(feed.ID, "r-42"); err != nil {
		t.Fatalf("Promotion failed: %v", err)
	}

	if err := s.SetFeedExternalID(feed.ID, database.LocalIDPrefix+"again"); err == nil {
		t.Error("Expected demotion to local ID to be rejected")
	}

	promoted, _ := s.FeedByID(feed.ID)
	if promoted.ExternalID != "r-42" {
		t.Errorf("Expected external ID r-42, got %s", promoted.ExternalID)
	}
}

func TestAddFolderIsIdempotentByName(t *testing.T) {
	s, _ := newTestStore()

	first, err := s.AddFolder("Tech")
	if err != nil {
		t.Fatalf("AddFolder failed: %v", err)
	}
	second, err := s.AddFolder("Tech")
	if err != nil {
		t.Fatalf("AddFolder failed: %v", err)
	}
	if first.ID != second.ID {
		t.Error("Expected the same folder for the same name")
	}
}

func TestRemoveFolderDetachesFeeds(t *testing.T) {
	s, _ := newTestStore()

	folder, _ := s.AddFolder("Tech")
	feed, _ := s.AddFeed("https://example.com/feed.xml", "Example", &folder.ID)

	if err := s.RemoveFolder(folder.ID); err != nil {
		t.Fatalf("RemoveFolder failed: %v", err)
	}

	detached, ok := s.FeedByID(feed.ID)
	if !ok {
		t.Fatal("Feed should survive folder removal")
	}
	if detached.FolderID != nil {
		t.Error("Expected feed to be detached to top level")
	}
}

func TestRemoveFolderKeepsArenaOnRepositoryFailure(t *testing.T) {
	folderRepo := newMockFolderRepo()
	s := NewStore(folderRepo, newMockFeedRepo(), newMockArticleRepo(), events.NewBus())

	folder, _ := s.AddFolder("Tech")
	feed, _ := s.AddFeed("https://example.com/feed.xml", "Example", &folder.ID)

	folderRepo.deleteErr = errors.New("disk full")
	if err := s.RemoveFolder(folder.ID); err == nil {
		t.Fatal("Expected RemoveFolder to surface the repository error")
	}

	// A failed delete must leave memory and database agreeing: the folder
	// stays and its feed stays attached.
	if _, ok := s.FolderByID(folder.ID); !ok {
		t.Error("Expected folder to remain after a failed repository delete")
	}
	attached, _ := s.FeedByID(feed.ID)
	if attached.FolderID == nil || *attached.FolderID != folder.ID {
		t.Error("Expected feed to stay attached after a failed repository delete")
	}
}

func TestMarkArticlesPublishesEvent(t *testing.T) {
	s, bus := newTestStore()

	var got []events.Event
	bus.Subscribe(func(e events.Event) { got = append(got, e) })

	changed, err := s.MarkArticles([]string{"a1", "a2"}, database.StatusRead, true)
	if err != nil {
		t.Fatalf("MarkArticles failed: %v", err)
	}
	if len(changed) != 2 {
		t.Fatalf("Expected 2 changed, got %d", len(changed))
	}

	found := false
	for _, e := range got {
		if statuses, ok := e.(events.ArticleStatusesChanged); ok {
			found = true
			if statuses.Key != "read" || !statuses.Flag {
				t.Errorf("Unexpected event payload: %+v", statuses)
			}
		}
	}
	if !found {
		t.Error("Expected ArticleStatusesChanged event")
	}
}
