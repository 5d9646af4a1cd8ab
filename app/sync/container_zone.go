package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/feedvault/feedvault/app/database"
	"github.com/feedvault/feedvault/app/remote"
	"github.com/feedvault/feedvault/app/store"
)

// ContainerZone reconciles feed and folder records into the local store.
//
// Change batches arrive unordered: a feed record can reference a folder whose
// record lands later in the same batch, or in a later batch entirely. Feeds
// that reference an unknown folder are buffered until the folder materializes
// instead of being dropped or mis-filed at the top level.
type ContainerZone struct {
	store *store.Store

	// Buffered feed records keyed by the missing folder's external ID.
	pendingNew    map[string][]remote.Record // feeds to create once the folder exists
	pendingAttach map[string][]string        // local feed IDs to move once the folder exists
}

func NewContainerZone(st *store.Store) *ContainerZone {
	return &ContainerZone{
		store:         st,
		pendingNew:    make(map[string][]remote.Record),
		pendingAttach: make(map[string][]string),
	}
}

// Apply ingests one change set. Folders are applied before feeds so that
// same-batch folder references resolve without buffering.
func (z *ContainerZone) Apply(ctx context.Context, changes *remote.ChangeSet) error {
	var errs []error

	var feeds []remote.Record
	for _, record := range changes.Changed {
		switch record.Kind {
		case remote.KindFolder:
			if err := z.applyFolder(record); err != nil {
				errs = append(errs, err)
			}
		case remote.KindFeed:
			feeds = append(feeds, record)
		default:
			slog.Warn("Ignoring unexpected record kind in container zone", "kind", record.Kind, "id", record.ID)
		}
	}

	for _, record := range feeds {
		if err := z.applyFeed(record); err != nil {
			errs = append(errs, err)
		}
	}

	for _, key := range changes.Deleted {
		if err := z.applyDeletion(key); err != nil {
			errs = append(errs, err)
		}
	}

	for _, err := range errs {
		slog.Error("Container zone reconciliation error", "error", err)
	}
	if len(errs) > 0 {
		return errs[len(errs)-1]
	}
	return nil
}

// applyFolder creates or renames a folder, then drains any feeds that were
// buffered waiting for it.
func (z *ContainerZone) applyFolder(record remote.Record) error {
	name := record.Folder.Name

	if existing, ok := z.store.FolderByExternalID(record.ID); ok {
		if existing.Name != name {
			if err := z.store.RenameFolder(existing.ID, name); err != nil {
				return fmt.Errorf("failed to rename folder %s: %w", existing.ID, err)
			}
		}
		return z.drainBuffered(record.ID, existing.ID)
	}

	// A folder of the same name created locally while offline is the same
	// folder; promote its identity instead of duplicating it.
	if local, ok := z.store.FolderByName(name); ok && database.IsLocalID(local.ExternalID) {
		if err := z.store.SetFolderExternalID(local.ID, record.ID); err != nil {
			return fmt.Errorf("failed to promote folder %s: %w", local.ID, err)
		}
		return z.drainBuffered(record.ID, local.ID)
	}

	folder, err := z.store.AddFolder(name)
	if err != nil {
		return fmt.Errorf("failed to create folder %q: %w", name, err)
	}
	if err := z.store.SetFolderExternalID(folder.ID, record.ID); err != nil {
		return fmt.Errorf("failed to assign folder external ID: %w", err)
	}
	return z.drainBuffered(record.ID, folder.ID)
}

func (z *ContainerZone) applyFeed(record remote.Record) error {
	fields := record.Feed

	// Resolve the target folder, if any.
	var folderID *string
	if fields.FolderExternalID != "" {
		folder, ok := z.store.FolderByExternalID(fields.FolderExternalID)
		if !ok {
			z.bufferFeed(record)
			return nil
		}
		folderID = &folder.ID
	}

	if existing, ok := z.store.FeedByExternalID(record.ID); ok {
		return z.updateExistingFeed(existing, record, folderID)
	}

	// A feed of the same URL added locally while offline is the same feed.
	if local, ok := z.store.FeedByURL(fields.URL); ok && database.IsLocalID(local.ExternalID) {
		if err := z.store.SetFeedExternalID(local.ID, record.ID); err != nil {
			return fmt.Errorf("failed to promote feed %s: %w", local.ID, err)
		}
		return z.updateExistingFeed(local, record, folderID)
	}

	feed, err := z.store.AddFeed(fields.URL, fields.Name, folderID)
	if err != nil {
		return fmt.Errorf("failed to create feed %q: %w", fields.URL, err)
	}
	if err := z.store.SetFeedExternalID(feed.ID, record.ID); err != nil {
		return fmt.Errorf("failed to assign feed external ID: %w", err)
	}
	if fields.EditedName != "" {
		if err := z.store.RenameFeed(feed.ID, fields.EditedName); err != nil {
			return err
		}
	}
	return nil
}

func (z *ContainerZone) updateExistingFeed(existing database.Feed, record remote.Record, folderID *string) error {
	fields := record.Feed

	if err := z.store.UpdateFeedMetadata(existing.ID, fields.Name, fields.HomePageURL, ""); err != nil {
		return fmt.Errorf("failed to update feed %s: %w", existing.ID, err)
	}
	if existing.CustomName != fields.EditedName {
		if err := z.store.RenameFeed(existing.ID, fields.EditedName); err != nil {
			return err
		}
	}

	if !sameFolder(existing.FolderID, folderID) {
		if err := z.store.MoveFeed(existing.ID, folderID); err != nil {
			return fmt.Errorf("failed to move feed %s: %w", existing.ID, err)
		}
	}
	return nil
}

func (z *ContainerZone) applyDeletion(key remote.RecordKey) error {
	switch key.Kind {
	case remote.KindFeed:
		delete(z.pendingNew, key.ID)
		feed, ok := z.store.FeedByExternalID(key.ID)
		if !ok {
			return nil
		}
		if err := z.store.RemoveFeed(feed.ID); err != nil {
			return fmt.Errorf("failed to remove remotely deleted feed %s: %w", feed.ID, err)
		}
	case remote.KindFolder:
		delete(z.pendingNew, key.ID)
		delete(z.pendingAttach, key.ID)
		folder, ok := z.store.FolderByExternalID(key.ID)
		if !ok {
			return nil
		}
		if err := z.store.RemoveFolder(folder.ID); err != nil {
			return fmt.Errorf("failed to remove remotely deleted folder %s: %w", folder.ID, err)
		}
	}
	return nil
}

// bufferFeed parks a feed record whose folder has not arrived yet. A feed
// that already exists locally waits as an attach; an unknown feed waits as a
// full record.
func (z *ContainerZone) bufferFeed(record remote.Record) {
	folderExternalID := record.Feed.FolderExternalID

	if existing, ok := z.store.FeedByExternalID(record.ID); ok {
		z.pendingAttach[folderExternalID] = append(z.pendingAttach[folderExternalID], existing.ID)
		return
	}
	if local, ok := z.store.FeedByURL(record.Feed.URL); ok && database.IsLocalID(local.ExternalID) {
		if err := z.store.SetFeedExternalID(local.ID, record.ID); err == nil {
			z.pendingAttach[folderExternalID] = append(z.pendingAttach[folderExternalID], local.ID)
			return
		}
	}
	z.pendingNew[folderExternalID] = append(z.pendingNew[folderExternalID], record)
	slog.Debug("Buffered feed awaiting folder", "feed", record.ID, "folderExternalID", folderExternalID)
}

// drainBuffered replays feed records that were waiting for the given folder.
func (z *ContainerZone) drainBuffered(folderExternalID, folderID string) error {
	for _, feedID := range z.pendingAttach[folderExternalID] {
		if _, ok := z.store.FeedByID(feedID); !ok {
			continue
		}
		if err := z.store.MoveFeed(feedID, &folderID); err != nil {
			return fmt.Errorf("failed to attach buffered feed %s: %w", feedID, err)
		}
	}
	delete(z.pendingAttach, folderExternalID)

	buffered := z.pendingNew[folderExternalID]
	delete(z.pendingNew, folderExternalID)
	for _, record := range buffered {
		if err := z.applyFeed(record); err != nil {
			return err
		}
	}
	return nil
}

func sameFolder(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
