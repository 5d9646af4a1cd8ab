package sync

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Pending operation type tags. The payload for each tag carries stable
// identifiers only; replay re-resolves current state (names, external IDs)
// from the store at drain time.
const (
	OpCreateFeed      = "createFeed"
	OpDeleteFeed      = "deleteFeed"
	OpRenameFeed      = "renameFeed"
	OpMoveFeed        = "moveFeed"
	OpAddFeedToFolder = "addFeedToFolder"
	OpCreateFolder    = "createFolder"
	OpDeleteFolder    = "deleteFolder"
	OpRenameFolder    = "renameFolder"
)

// errMalformedPayload marks a queue payload that cannot be decoded. Such
// operations are permanent failures: dropped and logged, never retried.
var errMalformedPayload = errors.New("malformed operation payload")

type feedOpPayload struct {
	FeedID string `json:"feedID"`
}

type deleteFeedPayload struct {
	ExternalID string `json:"externalID"`
}

type folderOpPayload struct {
	FolderID string `json:"folderID"`
}

type deleteFolderPayload struct {
	ExternalID string `json:"externalID"`
}

func encodePayload(payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode operation payload: %w", err)
	}
	return data, nil
}

func decodePayload(data []byte, payload interface{}) error {
	if err := json.Unmarshal(data, payload); err != nil {
		return fmt.Errorf("%w: %v", errMalformedPayload, err)
	}
	return nil
}
