package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/feedvault/feedvault/app/database"
	"github.com/feedvault/feedvault/app/remote"
)

// ProcessPendingOperations replays the durable operation queue against the
// remote store. One call is one drain pass: it resolves the account, pulls
// fresh remote state when the account was just provisioned, then claims and
// replays batches until the queue is empty or progress stalls.
func (p *Provider) ProcessPendingOperations(ctx context.Context) error {
	if p.client == nil {
		return nil
	}

	if err := p.resolveAccount(ctx); err != nil {
		return err
	}

	for {
		batch, err := p.ops.ClaimBatch(drainBatchSize)
		if err != nil {
			return fmt.Errorf("failed to claim operation batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		var succeeded, dropped, retry []string
		for _, op := range batch {
			err := p.replayOperation(ctx, op)
			switch {
			case err == nil:
				succeeded = append(succeeded, op.ID)
			case errors.Is(err, errMalformedPayload) || !remote.IsRecoverable(err):
				// Permanent failures are dropped: retrying cannot help, and a
				// wedged head would starve everything behind it.
				slog.Error("Dropping unreplayable operation", "operation", op.Type, "id", op.ID, "error", err)
				dropped = append(dropped, op.ID)
			default:
				slog.Warn("Operation replay failed, will retry", "operation", op.Type, "id", op.ID, "error", err)
				retry = append(retry, op.ID)
			}
		}

		if err := p.ops.Release(append(succeeded, dropped...), true); err != nil {
			return err
		}
		if err := p.ops.Release(retry, false); err != nil {
			return err
		}

		// A pass that made no progress will not make any on the next claim
		// either; stop instead of spinning against an unavailable remote.
		if len(succeeded)+len(dropped) == 0 {
			return nil
		}
	}
}

// resolveAccount ensures the remote account exists and is usable. First
// successful provisioning forgets all change tokens and performs a full pull:
// everything local predates the account, so the remote view must be rebuilt
// from scratch before local operations replay on top of it.
func (p *Provider) resolveAccount(ctx context.Context) error {
	if !database.IsLocalID(p.meta.AccountExternalID()) {
		if err := p.client.AccountAvailable(ctx); err != nil {
			return fmt.Errorf("remote account unavailable: %w", err)
		}
		return nil
	}

	externalID, err := p.client.CreateAccount(ctx, p.username)
	if err != nil {
		return fmt.Errorf("failed to provision remote account: %w", err)
	}
	if err := p.meta.SetAccountExternalID(externalID); err != nil {
		return err
	}
	slog.Info("Remote account provisioned", "externalID", externalID)

	if err := p.meta.ClearTokens(); err != nil {
		return err
	}
	if err := p.PullChanges(ctx); err != nil {
		return fmt.Errorf("initial pull after account provisioning failed: %w", err)
	}
	return nil
}

// replayOperation re-executes one queued mutation. Replay resolves current
// state from the store by stable local ID: an entity edited after the
// operation was queued replays with its latest values, and an entity deleted
// in the meantime makes the operation a no-op success.
func (p *Provider) replayOperation(ctx context.Context, op database.PendingOperation) error {
	switch op.Type {
	case OpCreateFeed:
		return p.replayCreateFeed(ctx, op.Payload)
	case OpRenameFeed, OpMoveFeed, OpAddFeedToFolder:
		return p.replayPushFeed(ctx, op.Payload)
	case OpDeleteFeed:
		var payload deleteFeedPayload
		if err := decodePayload(op.Payload, &payload); err != nil {
			return err
		}
		return p.deleteRemoteRecord(ctx, remote.ZoneContainers, payload.ExternalID)
	case OpCreateFolder, OpRenameFolder:
		var payload folderOpPayload
		if err := decodePayload(op.Payload, &payload); err != nil {
			return err
		}
		if _, ok := p.store.FolderByID(payload.FolderID); !ok {
			return nil
		}
		return p.pushFolder(ctx, payload.FolderID)
	case OpDeleteFolder:
		var payload deleteFolderPayload
		if err := decodePayload(op.Payload, &payload); err != nil {
			return err
		}
		return p.deleteRemoteRecord(ctx, remote.ZoneContainers, payload.ExternalID)
	default:
		return fmt.Errorf("%w: unknown operation type %q", errMalformedPayload, op.Type)
	}
}

// replayCreateFeed pushes the feed and, if its folder has not been promoted
// yet, queues a follow-up attach so the membership lands once the folder has
// a remote ID.
func (p *Provider) replayCreateFeed(ctx context.Context, data []byte) error {
	var payload feedOpPayload
	if err := decodePayload(data, &payload); err != nil {
		return err
	}

	feed, ok := p.store.FeedByID(payload.FeedID)
	if !ok {
		return nil
	}

	if err := p.pushFeed(ctx, payload.FeedID); err != nil {
		return err
	}

	if feed.FolderID != nil {
		if folder, ok := p.store.FolderByID(*feed.FolderID); ok && database.IsLocalID(folder.ExternalID) {
			attach, err := encodePayload(feedOpPayload{FeedID: feed.ID})
			if err != nil {
				return err
			}
			if err := p.ops.Enqueue(OpAddFeedToFolder, attach); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Provider) replayPushFeed(ctx context.Context, data []byte) error {
	var payload feedOpPayload
	if err := decodePayload(data, &payload); err != nil {
		return err
	}
	if _, ok := p.store.FeedByID(payload.FeedID); !ok {
		return nil
	}
	return p.pushFeed(ctx, payload.FeedID)
}
