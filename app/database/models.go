package database

import (
	"time"
)

// LocalIDPrefix marks an external ID that has not yet been assigned by the
// remote record store. Promotion to a remote ID is one-way: once a feed,
// folder or account carries a remote ID it never reverts to a local token.
const LocalIDPrefix = "local-"

// IsLocalID reports whether an external ID is a local-only token.
func IsLocalID(externalID string) bool {
	return len(externalID) >= len(LocalIDPrefix) && externalID[:len(LocalIDPrefix)] == LocalIDPrefix
}

type Folder struct {
	ID         string
	Name       string
	ExternalID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Feed struct {
	ID            string
	FolderID      *string
	URL           string
	Name          string
	CustomName    string // user-edited override, empty means unset
	HomePageURL   string
	IconURL       string
	ExternalID    string
	ETag          string // conditional fetch cache metadata
	LastModified  string
	LastCheckedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DisplayName returns the user-edited name if set, the feed's own name otherwise.
func (f *Feed) DisplayName() string {
	if f.CustomName != "" {
		return f.CustomName
	}
	return f.Name
}

type Article struct {
	ID          string // derived from (feed, guid), globally unique per data store
	FeedID      string
	GUID        string
	Title       string
	ContentHTML string
	URL         string
	PublishedAt *time.Time
	ModifiedAt  *time.Time
	Read        bool
	Starred     bool
	New         bool
	CreatedAt   time.Time
}

// StatusKey identifies one per-article flag tracked by the sync status queue.
type StatusKey string

const (
	StatusRead    StatusKey = "read"
	StatusStarred StatusKey = "starred"
	StatusNew     StatusKey = "new"
	StatusDeleted StatusKey = "deleted"
)

// SyncStatus is a pending per-article status delta awaiting transmission to
// the remote store. At most one row exists per (article, key); newer local
// mutations overwrite older unsent ones.
type SyncStatus struct {
	ArticleID string
	Key       StatusKey
	Flag      bool
	Selected  bool // claimed by an in-flight send
	CreatedAt time.Time
}

// PendingOperation is a durably queued structural mutation awaiting replay
// against the remote store.
type PendingOperation struct {
	ID         string
	Type       string
	Payload    []byte
	Processing bool
	CreatedAt  time.Time
}
