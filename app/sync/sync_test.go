package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/feedvault/feedvault/app/database"
	"github.com/feedvault/feedvault/app/events"
	"github.com/feedvault/feedvault/app/remote"
	"github.com/feedvault/feedvault/app/store"
)

// --- In-memory repository mocks ---

type mockFolderRepo struct{ folders map[string]database.Folder }

func (m *mockFolderRepo) GetAll() ([]database.Folder, error) { return nil, nil }
func (m *mockFolderRepo) Insert(f *database.Folder) error    { m.folders[f.ID] = *f; return nil }
func (m *mockFolderRepo) Update(f *database.Folder) error    { m.folders[f.ID] = *f; return nil }
func (m *mockFolderRepo) Delete(id string) error             { delete(m.folders, id); return nil }

type mockFeedRepo struct{ feeds map[string]database.Feed }

func (m *mockFeedRepo) GetAll() ([]database.Feed, error) { return nil, nil }
func (m *mockFeedRepo) Insert(f *database.Feed) error    { m.feeds[f.ID] = *f; return nil }
func (m *mockFeedRepo) Update(f *database.Feed) error    { m.feeds[f.ID] = *f; return nil }
func (m *mockFeedRepo) Delete(id string) error           { delete(m.feeds, id); return nil }

type mockArticleRepo struct {
	articles map[string]database.Article
	statuses map[string]map[database.StatusKey]bool
	deleted  []string
}

func newMockArticleRepo() *mockArticleRepo {
	return &mockArticleRepo{
		articles: make(map[string]database.Article),
		statuses: make(map[string]map[database.StatusKey]bool),
	}
}

func (m *mockArticleRepo) GetByIDs(ids []string) ([]database.Article, error) {
	var out []database.Article
	for _, id := range ids {
		if a, ok := m.articles[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}
func (m *mockArticleRepo) GetByFeed(feedID string, unreadOnly bool, limit int) ([]database.Article, error) {
	return nil, nil
}
func (m *mockArticleRepo) UpsertBatch(feedID string, articles []database.Article) ([]string, []string, error) {
	var newIDs []string
	for _, a := range articles {
		if _, ok := m.articles[a.ID]; !ok {
			newIDs = append(newIDs, a.ID)
		}
		m.articles[a.ID] = a
	}
	return newIDs, nil, nil
}
func (m *mockArticleRepo) DeleteByIDs(ids []string) error {
	for _, id := range ids {
		delete(m.articles, id)
	}
	m.deleted = append(m.deleted, ids...)
	return nil
}
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
func (m *mockArticleRepo) CountUnread() (int, error)                  { return 0, nil }
func (m *mockArticleRepo) CountAll() (int, error)                     { return 0, nil }
func (m *mockArticleRepo) Cleanup(olderThan time.Time) (int64, error) { return 0, nil }

type statusEntry struct {
	flag     bool
	selected bool
}

type mockStatusRepo struct {
	entries map[string]map[database.StatusKey]*statusEntry
	sent    []database.SyncStatus
}

func newMockStatusRepo() *mockStatusRepo {
	return &mockStatusRepo{entries: make(map[string]map[database.StatusKey]*statusEntry)}
}

func (m *mockStatusRepo) RecordStatusChange(articleID string, key database.StatusKey, flag bool) error {
	if m.entries[articleID] == nil {
		m.entries[articleID] = make(map[database.StatusKey]*statusEntry)
	}
	m.entries[articleID][key] = &statusEntry{flag: flag}
	return nil
}

func (m *mockStatusRepo) PendingCount() (int, error) {
	count := 0
	for _, keys := range m.entries {
		count += len(keys)
	}
	return count, nil
}

func (m *mockStatusRepo) PendingArticleIDs(key database.StatusKey) ([]string, error) {
	var ids []string
	for articleID, keys := range m.entries {
		if _, ok := keys[key]; ok {
			ids = append(ids, articleID)
		}
	}
	return ids, nil
}

func (m *mockStatusRepo) SelectBatchForSending(limit int) ([]database.SyncStatus, error) {
	var batch []database.SyncStatus
	for articleID, keys := range m.entries {
		for key, entry := range keys {
			if entry.selected || len(batch) >= limit {
				continue
			}
			entry.selected = true
			batch = append(batch, database.SyncStatus{ArticleID: articleID, Key: key, Flag: entry.flag, Selected: true})
		}
	}
	return batch, nil
}

func (m *mockStatusRepo) MarkSent(entries []database.SyncStatus) error {
	for _, e := range entries {
		// Rows that recoalesced mid-flight lost their claim; they stay.
		if entry, ok := m.entries[e.ArticleID][e.Key]; !ok || !entry.selected {
			continue
		}
		delete(m.entries[e.ArticleID], e.Key)
		if len(m.entries[e.ArticleID]) == 0 {
			delete(m.entries, e.ArticleID)
		}
	}
	m.sent = append(m.sent, entries...)
	return nil
}

func (m *mockStatusRepo) ResetUnsent(entries []database.SyncStatus) error {
	for _, e := range entries {
		if keys, ok := m.entries[e.ArticleID]; ok {
			if entry, ok := keys[e.Key]; ok {
				entry.selected = false
			}
		}
	}
	return nil
}

type mockOpsRepo struct {
	ops     []database.PendingOperation
	nextID  int
	dropped int
}

func newMockOpsRepo() *mockOpsRepo { return &mockOpsRepo{} }

func (m *mockOpsRepo) Enqueue(opType string, payload []byte) error {
	m.nextID++
	m.ops = append(m.ops, database.PendingOperation{
		ID:        string(rune('a' + m.nextID)),
		Type:      opType,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *mockOpsRepo) ClaimBatch(limit int) ([]database.PendingOperation, error) {
	var batch []database.PendingOperation
	for i := range m.ops {
		if m.ops[i].Processing || len(batch) >= limit {
			continue
		}
		m.ops[i].Processing = true
		batch = append(batch, m.ops[i])
	}
	return batch, nil
}

func (m *mockOpsRepo) Release(ids []string, succeeded bool) error {
	for _, id := range ids {
		for i := range m.ops {
			if m.ops[i].ID != id {
				continue
			}
			if succeeded {
				m.ops = append(m.ops[:i], m.ops[i+1:]...)
			} else {
				m.ops[i].Processing = false
			}
			break
		}
	}
	return nil
}

func (m *mockOpsRepo) Count() (int, error) { return len(m.ops), nil }

func (m *mockOpsRepo) byType(opType string) []database.PendingOperation {
	var out []database.PendingOperation
	for _, op := range m.ops {
		if op.Type == opType {
			out = append(out, op)
		}
	}
	return out
}

// fakeClient is a scriptable remote.Client.
type fakeClient struct {
	availableErr error
	accountID    string
	createErr    error

	nextRemoteID  int
	pushErr       error
	recordErrs    map[string]*remote.Error            // per-record errors by pushed ID
	kindErrs      map[remote.RecordKind]*remote.Error // per-record errors by kind
	pushed        []remote.Record

	deleteErrs map[string]error
	deleted    []string

	changes map[remote.Zone]*remote.ChangeSet
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		accountID:  "acct-1",
		recordErrs: make(map[string]*remote.Error),
		kindErrs:   make(map[remote.RecordKind]*remote.Error),
		deleteErrs: make(map[string]error),
		changes:    make(map[remote.Zone]*remote.ChangeSet),
	}
}

func (c *fakeClient) AccountAvailable(ctx context.Context) error { return c.availableErr }

func (c *fakeClient) CreateAccount(ctx context.Context, username string) (string, error) {
	if c.createErr != nil {
		return "", c.createErr
	}
	return c.accountID, nil
}

func (c *fakeClient) FetchChanges(ctx context.Context, zone remote.Zone, sinceToken string) (*remote.ChangeSet, error) {
	if cs, ok := c.changes[zone]; ok {
		return cs, nil
	}
	return &remote.ChangeSet{Token: "t-" + string(zone)}, nil
}

func (c *fakeClient) PushRecords(ctx context.Context, zone remote.Zone, records []remote.Record) ([]remote.PushResult, error) {
	if c.pushErr != nil {
		return nil, c.pushErr
	}
	results := make([]remote.PushResult, 0, len(records))
	for _, record := range records {
		c.pushed = append(c.pushed, record)
		result := remote.PushResult{ID: record.ID, RemoteID: record.ID}
		if recordErr, ok := c.recordErrs[record.ID]; ok {
			result.Err = recordErr
		} else if recordErr, ok := c.kindErrs[record.Kind]; ok {
			result.Err = recordErr
		} else if database.IsLocalID(record.ID) {
			c.nextRemoteID++
			result.RemoteID = "r-" + string(rune('0'+c.nextRemoteID))
		}
		results = append(results, result)
	}
	return results, nil
}

func (c *fakeClient) DeleteRecord(ctx context.Context, zone remote.Zone, id string) error {
	c.deleted = append(c.deleted, id)
	return c.deleteErrs[id]
}

func (c *fakeClient) Subscribe(ctx context.Context, zone remote.Zone) error { return nil }

// --- Test fixture ---

type fixture struct {
	store    *store.Store
	client   *fakeClient
	ops      *mockOpsRepo
	statuses *mockStatusRepo
	articles *mockArticleRepo
	meta     *store.MetadataFile
	provider *Provider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	articles := newMockArticleRepo()
	st := store.NewStore(
		&mockFolderRepo{folders: make(map[string]database.Folder)},
		&mockFeedRepo{feeds: make(map[string]database.Feed)},
		articles,
		events.NewBus(),
	)

	meta, err := store.LoadMetadata(filepath.Join(t.TempDir(), "sync.yml"))
	if err != nil {
		t.Fatalf("LoadMetadata failed: %v", err)
	}

	f := &fixture{
		store:    st,
		client:   newFakeClient(),
		ops:      newMockOpsRepo(),
		statuses: newMockStatusRepo(),
		articles: articles,
		meta:     meta,
	}
	f.provider = NewProvider(st, f.client, f.ops, f.statuses, meta, "tester", 100)
	return f
}

// goOnline promotes the account so remote attempts are made directly.
func (f *fixture) goOnline(t *testing.T) {
	t.Helper()
	if err := f.meta.SetAccountExternalID("acct-1"); err != nil {
		t.Fatalf("Account promotion failed: %v", err)
	}
}

func (f *fixture) goOffline() {
	f.client.availableErr = remote.NewError(remote.CodeUnavailable, "offline")
}

// --- Mutation pattern ---

func TestAddFeedOfflineQueuesCreate(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)
	f.goOffline()

	feed, result, err := f.provider.AddFeed(context.Background(), "https://example.com/feed.xml", "Example", "")
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}
	if result.Outcome != OutcomeAppliedAndQueued {
		t.Errorf("Expected queued outcome, got %v", result.Outcome)
	}
	if !database.IsLocalID(feed.ExternalID) {
		t.Errorf("Expected local external ID while offline, got %s", feed.ExternalID)
	}
	if len(f.ops.byType(OpCreateFeed)) != 1 {
		t.Errorf("Expected 1 queued createFeed, got %d", len(f.ops.byType(OpCreateFeed)))
	}
}

func TestAddFeedOnlinePromotesExternalID(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)

	feed, result, err := f.provider.AddFeed(context.Background(), "https://example.com/feed.xml", "Example", "")
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}
	if result.Outcome != OutcomeApplied {
		t.Errorf("Expected applied outcome, got %v", result.Outcome)
	}
	if database.IsLocalID(feed.ExternalID) {
		t.Errorf("Expected promoted external ID, got %s", feed.ExternalID)
	}
	if count, _ := f.ops.Count(); count != 0 {
		t.Errorf("Expected empty queue, got %d operations", count)
	}
}

func TestAddFeedRollbackRemovesAutoCreatedFolder(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)

	// The folder push succeeds and promotes; the feed record is rejected
	// permanently, rolling the whole mutation back.
	f.client.kindErrs[remote.KindFeed] = remote.NewError(remote.CodeBadRequest, "rejected")

	_, result, err := f.provider.AddFeed(context.Background(), "https://example.com/feed.xml", "Example", "Tech")
	if err == nil {
		t.Fatal("Expected AddFeed to surface the remote error")
	}
	if result.Outcome != OutcomeRolledBack {
		t.Errorf("Expected rollback outcome, got %v", result.Outcome)
	}

	if _, ok := f.store.FeedByURL("https://example.com/feed.xml"); ok {
		t.Error("Expected feed to be rolled back")
	}
	if _, ok := f.store.FolderByName("Tech"); ok {
		t.Error("Expected the folder created for this feed to be rolled back too")
	}
	// The folder had already been promoted, so its remote record goes too.
	if len(f.client.deleted) != 1 {
		t.Errorf("Expected 1 remote folder delete, got %v", f.client.deleted)
	}
}

func TestAddFeedRollbackKeepsPreexistingFolder(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)

	folder, _, err := f.provider.AddFolder(context.Background(), "Tech")
	if err != nil {
		t.Fatalf("AddFolder failed: %v", err)
	}

	f.client.kindErrs[remote.KindFeed] = remote.NewError(remote.CodeBadRequest, "rejected")

	if _, _, err := f.provider.AddFeed(context.Background(), "https://example.com/feed.xml", "Example", "Tech"); err == nil {
		t.Fatal("Expected AddFeed to surface the remote error")
	}

	if _, ok := f.store.FolderByID(folder.ID); !ok {
		t.Error("Expected a folder that predates the feed to survive the rollback")
	}
}

func TestRenameFeedRollsBackOnPermanentFailure(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)

	feed, _, err := f.provider.AddFeed(context.Background(), "https://example.com/feed.xml", "Example", "")
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}

	f.client.recordErrs[feed.ExternalID] = remote.NewError(remote.CodeBadRequest, "rejected")

	result, err := f.provider.RenameFeed(context.Background(), feed.ID, "New Name")
	if err == nil {
		t.Fatal("Expected rename to surface the remote error")
	}
	if result.Outcome != OutcomeRolledBack {
		t.Errorf("Expected rollback outcome, got %v", result.Outcome)
	}

	current, _ := f.store.FeedByID(feed.ID)
	if current.CustomName != "" {
		t.Errorf("Expected rename to be reverted, got custom name %q", current.CustomName)
	}
}

func TestDeleteFeedNeverRollsBack(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)

	feed, _, err := f.provider.AddFeed(context.Background(), "https://example.com/feed.xml", "Example", "")
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}

	f.client.deleteErrs[feed.ExternalID] = remote.NewError(remote.CodeBadRequest, "rejected")

	result, err := f.provider.DeleteFeed(context.Background(), feed.ID)
	if err != nil {
		t.Fatalf("Expected permanent delete failure to be swallowed, got %v", err)
	}
	if result.Outcome != OutcomeApplied {
		t.Errorf("Expected applied outcome, got %v", result.Outcome)
	}
	if _, ok := f.store.FeedByID(feed.ID); ok {
		t.Error("Expected feed to stay deleted locally")
	}
}

func TestDeleteFeedTreatsMissingRemoteRecordAsSuccess(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)

	feed, _, err := f.provider.AddFeed(context.Background(), "https://example.com/feed.xml", "Example", "")
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}

	f.client.deleteErrs[feed.ExternalID] = remote.NewError(remote.CodeNotFound, "already gone")

	result, err := f.provider.DeleteFeed(context.Background(), feed.ID)
	if err != nil {
		t.Fatalf("DeleteFeed failed: %v", err)
	}
	if result.Outcome != OutcomeApplied {
		t.Errorf("Expected applied outcome, got %v", result.Outcome)
	}
}

func TestDeleteFolderOfflineQueuesMemberRemovals(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)

	folder, _, err := f.provider.AddFolder(context.Background(), "Tech")
	if err != nil {
		t.Fatalf("AddFolder failed: %v", err)
	}
	if _, _, err := f.provider.AddFeed(context.Background(), "https://a.example/feed.xml", "A", "Tech"); err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}
	if _, _, err := f.provider.AddFeed(context.Background(), "https://b.example/feed.xml", "B", "Tech"); err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}

	f.goOffline()

	result, err := f.provider.DeleteFolder(context.Background(), folder.ID)
	if err != nil {
		t.Fatalf("DeleteFolder failed: %v", err)
	}
	if result.Outcome != OutcomeAppliedAndQueued {
		t.Errorf("Expected queued outcome, got %v", result.Outcome)
	}
	if got := len(f.ops.byType(OpDeleteFeed)); got != 2 {
		t.Errorf("Expected 2 queued feed deletions, got %d", got)
	}
	if got := len(f.ops.byType(OpDeleteFolder)); got != 1 {
		t.Errorf("Expected 1 queued folder deletion, got %d", got)
	}
	if _, ok := f.store.FolderByID(folder.ID); ok {
		t.Error("Expected folder to be removed locally")
	}
}

// --- Drain ---

func TestDrainPromotesLocalIDs(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)
	f.goOffline()

	feed, _, err := f.provider.AddFeed(context.Background(), "https://example.com/feed.xml", "Example", "")
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}
	if !database.IsLocalID(feed.ExternalID) {
		t.Fatalf("Expected local external ID before drain")
	}

	f.client.availableErr = nil

	if err := f.provider.ProcessPendingOperations(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	drained, _ := f.store.FeedByID(feed.ID)
	if database.IsLocalID(drained.ExternalID) {
		t.Errorf("Expected promoted external ID after drain, got %s", drained.ExternalID)
	}
	if count, _ := f.ops.Count(); count != 0 {
		t.Errorf("Expected drained queue, got %d operations", count)
	}
}

func TestDrainDropsMalformedOperations(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)

	if err := f.ops.Enqueue(OpCreateFeed, []byte("{not json")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := f.provider.ProcessPendingOperations(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if count, _ := f.ops.Count(); count != 0 {
		t.Errorf("Expected malformed operation to be dropped, queue has %d", count)
	}
}

func TestDrainRetainsOperationsOnRecoverableFailure(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)
	f.goOffline()

	if _, _, err := f.provider.AddFeed(context.Background(), "https://example.com/feed.xml", "Example", ""); err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}

	// Account answers but pushes fail recoverably.
	f.client.availableErr = nil
	f.client.pushErr = remote.NewError(remote.CodeThrottled, "slow down")

	if err := f.provider.ProcessPendingOperations(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	count, _ := f.ops.Count()
	if count != 1 {
		t.Fatalf("Expected operation retained for retry, queue has %d", count)
	}
	if f.ops.ops[0].Processing {
		t.Error("Expected retained operation to be reclaimable")
	}
}

func TestDrainSkipsVanishedEntities(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)
	f.goOffline()

	feed, _, err := f.provider.AddFeed(context.Background(), "https://example.com/feed.xml", "Example", "")
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}
	if err := f.store.RemoveFeed(feed.ID); err != nil {
		t.Fatalf("RemoveFeed failed: %v", err)
	}

	f.client.availableErr = nil

	if err := f.provider.ProcessPendingOperations(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if count, _ := f.ops.Count(); count != 0 {
		t.Errorf("Expected no-op success for vanished feed, queue has %d", count)
	}
	if len(f.client.pushed) != 0 {
		t.Errorf("Expected no pushes for vanished feed, got %d", len(f.client.pushed))
	}
}

func TestDrainProvisionsAccountAndPullsFresh(t *testing.T) {
	f := newFixture(t)

	if !database.IsLocalID(f.meta.AccountExternalID()) {
		t.Fatal("Expected fresh metadata to carry a local account token")
	}

	if err := f.provider.ProcessPendingOperations(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	if f.meta.AccountExternalID() != "acct-1" {
		t.Errorf("Expected provisioned account, got %s", f.meta.AccountExternalID())
	}
	if f.meta.Token(string(remote.ZoneArticles)) == "" {
		t.Error("Expected a fresh full pull to record zone tokens")
	}
}

// --- Status queue ---

func TestMarkArticlesQueuesStatusDelta(t *testing.T) {
	f := newFixture(t)

	seed := []database.Article{{ID: "a1", FeedID: "f1"}}
	if _, _, err := f.store.UpsertArticles("f1", seed); err != nil {
		t.Fatalf("UpsertArticles failed: %v", err)
	}

	changed, err := f.provider.MarkArticles(context.Background(), []string{"a1"}, database.StatusRead, true)
	if err != nil {
		t.Fatalf("MarkArticles failed: %v", err)
	}
	if len(changed) != 1 {
		t.Fatalf("Expected 1 changed article, got %d", len(changed))
	}

	pending, _ := f.statuses.PendingArticleIDs(database.StatusRead)
	if len(pending) != 1 || pending[0] != "a1" {
		t.Errorf("Expected a1 queued for read, got %v", pending)
	}
}

func TestMarkArticlesCrossingWatermarkTriggersFlush(t *testing.T) {
	f := newFixture(t)
	f.provider.watermark = 2

	var ids []string
	var seed []database.Article
	for _, id := range []string{"a1", "a2", "a3"} {
		ids = append(ids, id)
		seed = append(seed, database.Article{ID: id, FeedID: "f1"})
	}
	if _, _, err := f.store.UpsertArticles("f1", seed); err != nil {
		t.Fatalf("UpsertArticles failed: %v", err)
	}

	if _, err := f.provider.MarkArticles(context.Background(), ids, database.StatusRead, true); err != nil {
		t.Fatalf("MarkArticles failed: %v", err)
	}

	select {
	case <-f.provider.flushCh:
	default:
		t.Error("Expected out-of-band flush signal after crossing the watermark")
	}
}

func TestSendArticleStatusesCollapsesPerArticle(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)

	f.statuses.RecordStatusChange("a1", database.StatusRead, true)
	f.statuses.RecordStatusChange("a1", database.StatusStarred, true)
	f.statuses.RecordStatusChange("a2", database.StatusRead, false)

	if err := f.provider.SendArticleStatuses(context.Background()); err != nil {
		t.Fatalf("SendArticleStatuses failed: %v", err)
	}

	if count, _ := f.statuses.PendingCount(); count != 0 {
		t.Errorf("Expected empty status queue, got %d", count)
	}
	if len(f.client.pushed) != 2 {
		t.Fatalf("Expected 2 status records (one per article), got %d", len(f.client.pushed))
	}
	for _, record := range f.client.pushed {
		if record.Kind != remote.KindArticleStatus {
			t.Errorf("Expected status record, got %s", record.Kind)
		}
		if record.ID == "a1" && (record.Status.Read == nil || record.Status.Starred == nil) {
			t.Error("Expected a1 record to carry both read and starred flags")
		}
	}
}

func TestSendArticleStatusesResetsWhenOffline(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)
	f.goOffline()

	f.statuses.RecordStatusChange("a1", database.StatusRead, true)

	if err := f.provider.SendArticleStatuses(context.Background()); err != nil {
		t.Fatalf("SendArticleStatuses failed: %v", err)
	}

	if count, _ := f.statuses.PendingCount(); count != 1 {
		t.Errorf("Expected status to stay queued while offline, got %d", count)
	}
	for _, keys := range f.statuses.entries {
		for _, entry := range keys {
			if entry.selected {
				t.Error("Expected claimed entries to be released when offline")
			}
		}
	}
}

func TestSendArticleStatusesResetsRecoverableRecordFailures(t *testing.T) {
	f := newFixture(t)
	f.goOnline(t)

	f.statuses.RecordStatusChange("a1", database.StatusRead, true)
	f.statuses.RecordStatusChange("a2", database.StatusRead, true)
	f.client.recordErrs["a1"] = remote.NewError(remote.CodeThrottled, "slow down")

	if err := f.provider.SendArticleStatuses(context.Background()); err != nil {
		t.Fatalf("SendArticleStatuses failed: %v", err)
	}

	pending, _ := f.statuses.PendingArticleIDs(database.StatusRead)
	if len(pending) != 1 || pending[0] != "a1" {
		t.Errorf("Expected only a1 returned to the queue, got %v", pending)
	}
}
