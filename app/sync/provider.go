// Package sync implements the offline-first synchronization core: optimistic
// local mutation with durable pending queues, remote-delta reconciliation and
// promotion of local identifiers to remote-assigned ones.
package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/feedvault/feedvault/app/database"
	"github.com/feedvault/feedvault/app/remote"
	"github.com/feedvault/feedvault/app/store"
)

// Outcome tags the result of a structural mutation.
type Outcome int

const (
	// OutcomeApplied: applied locally and confirmed remotely (or nothing
	// remote was needed).
	OutcomeApplied Outcome = iota
	// OutcomeAppliedAndQueued: applied locally; the remote attempt was
	// skipped or failed recoverably and a pending operation was queued.
	OutcomeAppliedAndQueued
	// OutcomeRolledBack: the remote call failed non-recoverably and the
	// local change was reverted. The accompanying error is non-nil.
	OutcomeRolledBack
)

type MutationResult struct {
	Outcome Outcome
}

const (
	drainBatchSize  = 20
	statusBatchSize = 100
)

// Provider sequences "pull remote changes, reconcile, push local mutations,
// drain pending queues" and exposes the mutation API the rest of the
// application calls.
type Provider struct {
	store    *store.Store
	client   remote.Client
	ops      database.PendingOperationRepository
	statuses database.SyncStatusRepository
	meta     *store.MetadataFile

	articles   *ArticleZone
	containers *ContainerZone

	username  string
	watermark int
	flushCh   chan struct{}
}

func NewProvider(st *store.Store, client remote.Client,
	ops database.PendingOperationRepository, statuses database.SyncStatusRepository,
	meta *store.MetadataFile, username string, watermark int) *Provider {
	return &Provider{
		store:      st,
		client:     client,
		ops:        ops,
		statuses:   statuses,
		meta:       meta,
		articles:   NewArticleZone(st, statuses),
		containers: NewContainerZone(st),
		username:   username,
		watermark:  watermark,
		flushCh:    make(chan struct{}, 1),
	}
}

// Start runs the out-of-band status flush loop until ctx is cancelled.
func (p *Provider) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.flushCh:
				if err := p.SendArticleStatuses(ctx); err != nil {
					slog.Warn("Out-of-band status send failed", "error", err)
				}
			}
		}
	}()
}

// accountAvailable reports whether remote calls can be attempted right now.
func (p *Provider) accountAvailable(ctx context.Context) bool {
	if p.client == nil {
		return false
	}
	if database.IsLocalID(p.meta.AccountExternalID()) {
		return false
	}
	return p.client.AccountAvailable(ctx) == nil
}

// Subscribe registers for change notifications on both zones. Best-effort:
// failures are logged, polling covers the gap.
func (p *Provider) Subscribe(ctx context.Context) {
	if p.client == nil {
		return
	}
	for _, zone := range []remote.Zone{remote.ZoneContainers, remote.ZoneArticles} {
		if err := p.client.Subscribe(ctx, zone); err != nil {
			slog.Warn("Zone subscription failed", "zone", zone, "error", err)
		}
	}
}

// PullChanges fetches remote deltas for both zones, routes them through the
// zone delegates and advances the change tokens.
func (p *Provider) PullChanges(ctx context.Context) error {
	if p.client == nil {
		return nil
	}

	zones := []struct {
		zone  remote.Zone
		apply func(context.Context, *remote.ChangeSet) error
	}{
		{remote.ZoneContainers, p.containers.Apply},
		{remote.ZoneArticles, p.articles.Apply},
	}

	for _, z := range zones {
		changes, err := p.client.FetchChanges(ctx, z.zone, p.meta.Token(string(z.zone)))
		if err != nil {
			return fmt.Errorf("failed to fetch %s changes: %w", z.zone, err)
		}

		if err := z.apply(ctx, changes); err != nil {
			return fmt.Errorf("failed to apply %s changes: %w", z.zone, err)
		}

		if err := p.meta.SetToken(string(z.zone), changes.Token); err != nil {
			return err
		}
	}

	return nil
}

// --- Structural mutations (four-phase pattern) ---
//
// 1. apply locally (synchronous, optimistic)
// 2. account unavailable: queue a pending operation, report success
// 3. account available: attempt the remote call directly
// 4. on failure: recoverable queues and reports success; non-recoverable
//    rolls the local change back and surfaces the error. Destructive
//    removals never roll back: the data is already gone locally and
//    re-creating what the user just deleted would be worse than a stale
//    remote record.

// AddFeed creates a feed optimistically and promotes its identity remotely.
// folderName may be empty for a top-level feed; a missing folder is created.
func (p *Provider) AddFeed(ctx context.Context, url, name, folderName string) (database.Feed, MutationResult, error) {
	if url == "" {
		return database.Feed{}, MutationResult{}, fmt.Errorf("feed URL must not be empty")
	}

	var folderID *string
	var createdFolderID string
	if folderName != "" {
		_, existed := p.store.FolderByName(folderName)
		folder, _, err := p.AddFolder(ctx, folderName)
		if err != nil {
			return database.Feed{}, MutationResult{Outcome: OutcomeRolledBack}, err
		}
		if !existed {
			createdFolderID = folder.ID
		}
		folderID = &folder.ID
	}

	feed, err := p.store.AddFeed(url, name, folderID)
	if err != nil {
		return database.Feed{}, MutationResult{}, err
	}

	result, err := p.pushOrQueue(ctx, OpCreateFeed, feedOpPayload{FeedID: feed.ID},
		func(ctx context.Context) error {
			return p.pushFeed(ctx, feed.ID)
		},
		func() error {
			if err := p.store.RemoveFeed(feed.ID); err != nil {
				return err
			}
			// A folder created just for this feed goes with it. Its queued
			// create, if any, replays as a no-op once the folder is gone.
			if createdFolderID != "" {
				if _, err := p.DeleteFolder(ctx, createdFolderID); err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		return database.Feed{}, result, err
	}

	// Re-read: a direct push may have promoted the external ID.
	if current, ok := p.store.FeedByID(feed.ID); ok {
		feed = current
	}
	return feed, result, nil
}

// RenameFeed sets the user-edited name override.
func (p *Provider) RenameFeed(ctx context.Context, feedID, name string) (MutationResult, error) {
	feed, ok := p.store.FeedByID(feedID)
	if !ok {
		return MutationResult{}, fmt.Errorf("feed %s not found", feedID)
	}
	oldName := feed.CustomName

	if err := p.store.RenameFeed(feedID, name); err != nil {
		return MutationResult{}, err
	}

	if database.IsLocalID(feed.ExternalID) {
		// The queued create will carry the current name when it replays.
		return MutationResult{Outcome: OutcomeAppliedAndQueued}, nil
	}

	return p.pushOrQueue(ctx, OpRenameFeed, feedOpPayload{FeedID: feedID},
		func(ctx context.Context) error {
			return p.pushFeed(ctx, feedID)
		},
		func() error {
			return p.store.RenameFeed(feedID, oldName)
		})
}

// MoveFeed moves a feed into a folder, or to the top level when folderName
// is empty.
func (p *Provider) MoveFeed(ctx context.Context, feedID, folderName string) (MutationResult, error) {
	return p.moveFeed(ctx, feedID, folderName, OpMoveFeed)
}

// AddFeedToFolder attaches an existing feed to a folder. Same remote shape
// as a move; the distinct tag keeps replay intent readable in the queue.
func (p *Provider) AddFeedToFolder(ctx context.Context, feedID, folderName string) (MutationResult, error) {
	return p.moveFeed(ctx, feedID, folderName, OpAddFeedToFolder)
}

func (p *Provider) moveFeed(ctx context.Context, feedID, folderName, opType string) (MutationResult, error) {
	feed, ok := p.store.FeedByID(feedID)
	if !ok {
		return MutationResult{}, fmt.Errorf("feed %s not found", feedID)
	}
	oldFolderID := feed.FolderID

	var folderID *string
	if folderName != "" {
		folder, _, err := p.AddFolder(ctx, folderName)
		if err != nil {
			return MutationResult{Outcome: OutcomeRolledBack}, err
		}
		folderID = &folder.ID
	}

	if err := p.store.MoveFeed(feedID, folderID); err != nil {
		return MutationResult{}, err
	}

	if database.IsLocalID(feed.ExternalID) {
		return MutationResult{Outcome: OutcomeAppliedAndQueued}, nil
	}

	return p.pushOrQueue(ctx, opType, feedOpPayload{FeedID: feedID},
		func(ctx context.Context) error {
			return p.pushFeed(ctx, feedID)
		},
		func() error {
			return p.store.MoveFeed(feedID, oldFolderID)
		})
}

// DeleteFeed removes a feed locally at once; the remote counterpart removal
// is best-effort or queued. Never rolls back.
func (p *Provider) DeleteFeed(ctx context.Context, feedID string) (MutationResult, error) {
	feed, ok := p.store.FeedByID(feedID)
	if !ok {
		return MutationResult{}, fmt.Errorf("feed %s not found", feedID)
	}

	if err := p.store.RemoveFeed(feedID); err != nil {
		return MutationResult{}, err
	}

	if database.IsLocalID(feed.ExternalID) {
		// Never reached the remote store; nothing to delete there.
		return MutationResult{Outcome: OutcomeApplied}, nil
	}

	return p.pushOrQueue(ctx, OpDeleteFeed, deleteFeedPayload{ExternalID: feed.ExternalID},
		func(ctx context.Context) error {
			return p.deleteRemoteRecord(ctx, remote.ZoneContainers, feed.ExternalID)
		},
		nil)
}

// AddFolder creates a folder (idempotent by name) and promotes it remotely.
func (p *Provider) AddFolder(ctx context.Context, name string) (database.Folder, MutationResult, error) {
	if name == "" {
		return database.Folder{}, MutationResult{}, fmt.Errorf("folder name must not be empty")
	}

	if existing, ok := p.store.FolderByName(name); ok {
		return existing, MutationResult{Outcome: OutcomeApplied}, nil
	}

	folder, err := p.store.AddFolder(name)
	if err != nil {
		return database.Folder{}, MutationResult{}, err
	}

	result, err := p.pushOrQueue(ctx, OpCreateFolder, folderOpPayload{FolderID: folder.ID},
		func(ctx context.Context) error {
			return p.pushFolder(ctx, folder.ID)
		},
		func() error {
			return p.store.RemoveFolder(folder.ID)
		})
	if err != nil {
		return database.Folder{}, result, err
	}

	if current, ok := p.store.FolderByID(folder.ID); ok {
		folder = current
	}
	return folder, result, nil
}

func (p *Provider) RenameFolder(ctx context.Context, folderID, name string) (MutationResult, error) {
	folder, ok := p.store.FolderByID(folderID)
	if !ok {
		return MutationResult{}, fmt.Errorf("folder %s not found", folderID)
	}
	oldName := folder.Name

	if err := p.store.RenameFolder(folderID, name); err != nil {
		return MutationResult{}, err
	}

	if database.IsLocalID(folder.ExternalID) {
		return MutationResult{Outcome: OutcomeAppliedAndQueued}, nil
	}

	return p.pushOrQueue(ctx, OpRenameFolder, folderOpPayload{FolderID: folderID},
		func(ctx context.Context) error {
			return p.pushFolder(ctx, folderID)
		},
		func() error {
			return p.store.RenameFolder(folderID, oldName)
		})
}

// DeleteFolder removes a folder and its member feeds. Feed removals are
// issued individually so draining can replay them independently of the
// folder removal, leaving no orphaned remote feed records.
func (p *Provider) DeleteFolder(ctx context.Context, folderID string) (MutationResult, error) {
	folder, ok := p.store.FolderByID(folderID)
	if !ok {
		return MutationResult{}, fmt.Errorf("folder %s not found", folderID)
	}

	for _, feed := range p.store.FeedsInFolder(&folderID) {
		if _, err := p.DeleteFeed(ctx, feed.ID); err != nil {
			return MutationResult{}, err
		}
	}

	if err := p.store.RemoveFolder(folderID); err != nil {
		return MutationResult{}, err
	}

	if database.IsLocalID(folder.ExternalID) {
		return MutationResult{Outcome: OutcomeApplied}, nil
	}

	return p.pushOrQueue(ctx, OpDeleteFolder, deleteFolderPayload{ExternalID: folder.ExternalID},
		func(ctx context.Context) error {
			return p.deleteRemoteRecord(ctx, remote.ZoneContainers, folder.ExternalID)
		},
		nil)
}

// MarkArticles flips one status flag locally (instantaneous for the caller)
// and queues the delta for transmission. Crossing the pending watermark
// triggers an immediate out-of-band send.
func (p *Provider) MarkArticles(ctx context.Context, articleIDs []string, key database.StatusKey, flag bool) ([]string, error) {
	changed, err := p.store.MarkArticles(articleIDs, key, flag)
	if err != nil {
		return nil, err
	}

	for _, id := range changed {
		if err := p.statuses.RecordStatusChange(id, key, flag); err != nil {
			return changed, err
		}
	}

	count, err := p.statuses.PendingCount()
	if err != nil {
		return changed, err
	}
	if count > p.watermark {
		select {
		case p.flushCh <- struct{}{}:
		default:
		}
	}

	return changed, nil
}

// --- helpers ---

// pushOrQueue implements phases 2-4 of the mutation pattern. A nil rollback
// marks a destructive removal: non-recoverable remote errors are logged and
// swallowed instead of reverting local state.
func (p *Provider) pushOrQueue(ctx context.Context, opType string, payload interface{},
	attempt func(context.Context) error, rollback func() error) (MutationResult, error) {

	enqueue := func() (MutationResult, error) {
		data, err := encodePayload(payload)
		if err != nil {
			return MutationResult{}, err
		}
		if err := p.ops.Enqueue(opType, data); err != nil {
			return MutationResult{}, err
		}
		return MutationResult{Outcome: OutcomeAppliedAndQueued}, nil
	}

	if !p.accountAvailable(ctx) {
		return enqueue()
	}

	err := attempt(ctx)
	if err == nil {
		return MutationResult{Outcome: OutcomeApplied}, nil
	}

	if remote.IsRecoverable(err) {
		slog.Warn("Remote call failed, queueing for retry", "operation", opType, "error", err)
		return enqueue()
	}

	if rollback == nil {
		slog.Error("Remote removal failed permanently, keeping local deletion", "operation", opType, "error", err)
		return MutationResult{Outcome: OutcomeApplied}, nil
	}

	if rbErr := rollback(); rbErr != nil {
		slog.Error("Rollback failed", "operation", opType, "error", rbErr)
	}
	return MutationResult{Outcome: OutcomeRolledBack}, err
}

// pushFeed pushes a feed's current state and promotes its external ID on
// first success.
func (p *Provider) pushFeed(ctx context.Context, feedID string) error {
	feed, ok := p.store.FeedByID(feedID)
	if !ok {
		return nil
	}

	fields := &remote.FeedFields{
		URL:         feed.URL,
		Name:        feed.Name,
		EditedName:  feed.CustomName,
		HomePageURL: feed.HomePageURL,
	}
	if feed.FolderID != nil {
		if folder, ok := p.store.FolderByID(*feed.FolderID); ok && !database.IsLocalID(folder.ExternalID) {
			fields.FolderExternalID = folder.ExternalID
		}
	}

	record := remote.Record{Kind: remote.KindFeed, ID: feed.ExternalID, Feed: fields}
	results, err := p.client.PushRecords(ctx, remote.ZoneContainers, []remote.Record{record})
	if err != nil {
		return err
	}
	if len(results) != 1 {
		return remote.NewError(remote.CodeBadRequest, "push returned unexpected result count")
	}
	if results[0].Err != nil {
		return results[0].Err
	}

	if database.IsLocalID(feed.ExternalID) && results[0].RemoteID != "" {
		if err := p.store.SetFeedExternalID(feed.ID, results[0].RemoteID); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) pushFolder(ctx context.Context, folderID string) error {
	folder, ok := p.store.FolderByID(folderID)
	if !ok {
		return nil
	}

	record := remote.Record{
		Kind:   remote.KindFolder,
		ID:     folder.ExternalID,
		Folder: &remote.FolderFields{Name: folder.Name},
	}
	results, err := p.client.PushRecords(ctx, remote.ZoneContainers, []remote.Record{record})
	if err != nil {
		return err
	}
	if len(results) != 1 {
		return remote.NewError(remote.CodeBadRequest, "push returned unexpected result count")
	}
	if results[0].Err != nil {
		return results[0].Err
	}

	if database.IsLocalID(folder.ExternalID) && results[0].RemoteID != "" {
		if err := p.store.SetFolderExternalID(folder.ID, results[0].RemoteID); err != nil {
			return err
		}
	}
	return nil
}

// deleteRemoteRecord deletes idempotently: a record that is already gone
// counts as success.
func (p *Provider) deleteRemoteRecord(ctx context.Context, zone remote.Zone, externalID string) error {
	err := p.client.DeleteRecord(ctx, zone, externalID)
	if err != nil && remote.IsNotFound(err) {
		return nil
	}
	return err
}
