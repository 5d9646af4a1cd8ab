package database

import (
	"time"
)

type FolderRepository interface {
	GetAll() ([]Folder, error)
	Insert(folder *Folder) error
	Update(folder *Folder) error
	Delete(id string) error
}

type FeedRepository interface {
	GetAll() ([]Feed, error)
	Insert(feed *Feed) error
	Update(feed *Feed) error
	Delete(id string) error
}

type ArticleRepository interface {
	GetByIDs(ids []string) ([]Article, error)
	GetByFeed(feedID string, unreadOnly bool, limit int) ([]Article, error)
	UpsertBatch(feedID string, articles []Article) (newIDs []string, prunedIDs []string, err error)
	DeleteByIDs(ids []string) error
	SetStatus(ids []string, key StatusKey, flag bool) (changedIDs []string, err error)
	CountUnread() (int, error)
	CountAll() (int, error)
	Cleanup(olderThan time.Time) (int64, error)
}

type SyncStatusRepository interface {
	RecordStatusChange(articleID string, key StatusKey, flag bool) error
	PendingCount() (int, error)
	PendingArticleIDs(key StatusKey) ([]string, error)
	SelectBatchForSending(limit int) ([]SyncStatus, error)
	MarkSent(entries []SyncStatus) error
	ResetUnsent(entries []SyncStatus) error
}

type PendingOperationRepository interface {
	Enqueue(opType string, payload []byte) error
	ClaimBatch(limit int) ([]PendingOperation, error)
	Release(ids []string, succeeded bool) error
	Count() (int, error)
}
