package remote

import (
	"encoding/json"
	"fmt"
	"time"
)

// Zone names a logical partition of the remote record store.
type Zone string

const (
	ZoneContainers Zone = "containers" // feeds and folders
	ZoneArticles   Zone = "articles"   // articles and article statuses
)

// RecordKind is the closed set of record kinds the remote store exchanges.
// Kinds are decoded once at the ingestion boundary; downstream code switches
// on the tag, never on raw strings from the wire.
type RecordKind string

const (
	KindFeed          RecordKind = "feed"
	KindFolder        RecordKind = "folder"
	KindArticle       RecordKind = "article"
	KindArticleStatus RecordKind = "articleStatus"
)

// Record is a tagged union: exactly one payload field is non-nil, matching
// Kind. ID is the record's external ID.
type Record struct {
	Kind    RecordKind
	ID      string
	Feed    *FeedFields
	Folder  *FolderFields
	Article *ArticleFields
	Status  *StatusFields
}

// RecordKey identifies a deleted record in a change batch.
type RecordKey struct {
	Kind RecordKind `json:"kind"`
	ID   string     `json:"id"`
}

type FeedFields struct {
	URL              string `json:"url"`
	Name             string `json:"name"`
	EditedName       string `json:"editedName,omitempty"`
	HomePageURL      string `json:"homePageURL,omitempty"`
	FolderExternalID string `json:"folderExternalID,omitempty"`
}

type FolderFields struct {
	Name string `json:"name"`
}

// ArticleFields carries article content. Content holds either plain UTF-8
// HTML or a gzip-compressed variant, per ContentEncoding.
type ArticleFields struct {
	FeedExternalID  string     `json:"feedExternalID"`
	GUID            string     `json:"guid"`
	Title           string     `json:"title,omitempty"`
	Content         []byte     `json:"content,omitempty"`
	ContentEncoding string     `json:"contentEncoding,omitempty"` // "" or "gzip"
	URL             string     `json:"url,omitempty"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	ModifiedAt      *time.Time `json:"modifiedAt,omitempty"`
}

// StatusFields carries per-article status flags. Reconciliation is
// last-writer-wins by field presence: a nil pointer means the sender did not
// touch that flag.
type StatusFields struct {
	ArticleID string `json:"articleID"`
	Read      *bool  `json:"read,omitempty"`
	Starred   *bool  `json:"starred,omitempty"`
	New       *bool  `json:"new,omitempty"`
	Deleted   *bool  `json:"deleted,omitempty"`
}

// ChangeSet is the result of an incremental pull: changed records, deleted
// record keys and the cursor to resume from next time.
type ChangeSet struct {
	Changed []Record
	Deleted []RecordKey
	Token   string
}

// PushResult reports the per-record outcome of a batched write.
type PushResult struct {
	ID       string // the ID the record was pushed with
	RemoteID string // the remote-assigned ID (may equal ID)
	Err      *Error
}

// wireRecord is the JSON framing of a record.
type wireRecord struct {
	Kind   RecordKind      `json:"kind"`
	ID     string          `json:"id"`
	Fields json.RawMessage `json:"fields"`
}

// DecodeRecord parses one wire record into the tagged union. Unknown kinds
// are a decode error: the closed set is part of the contract.
func DecodeRecord(data []byte) (Record, error) {
	var wire wireRecord
	if err := json.Unmarshal(data, &wire); err != nil {
		return Record{}, fmt.Errorf("failed to decode record envelope: %w", err)
	}

	record := Record{Kind: wire.Kind, ID: wire.ID}
	switch wire.Kind {
	case KindFeed:
		record.Feed = &FeedFields{}
		if err := json.Unmarshal(wire.Fields, record.Feed); err != nil {
			return Record{}, fmt.Errorf("failed to decode feed record %s: %w", wire.ID, err)
		}
	case KindFolder:
		record.Folder = &FolderFields{}
		if err := json.Unmarshal(wire.Fields, record.Folder); err != nil {
			return Record{}, fmt.Errorf("failed to decode folder record %s: %w", wire.ID, err)
		}
	case KindArticle:
		record.Article = &ArticleFields{}
		if err := json.Unmarshal(wire.Fields, record.Article); err != nil {
			return Record{}, fmt.Errorf("failed to decode article record %s: %w", wire.ID, err)
		}
	case KindArticleStatus:
		record.Status = &StatusFields{}
		if err := json.Unmarshal(wire.Fields, record.Status); err != nil {
			return Record{}, fmt.Errorf("failed to decode status record %s: %w", wire.ID, err)
		}
	default:
		return Record{}, fmt.Errorf("unknown record kind %q", wire.Kind)
	}

	return record, nil
}

// EncodeRecord serializes a record into its JSON framing.
func EncodeRecord(record Record) ([]byte, error) {
	var fields interface{}
	switch record.Kind {
	case KindFeed:
		fields = record.Feed
	case KindFolder:
		fields = record.Folder
	case KindArticle:
		fields = record.Article
	case KindArticleStatus:
		fields = record.Status
	default:
		return nil, fmt.Errorf("unknown record kind %q", record.Kind)
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record fields: %w", err)
	}

	return json.Marshal(wireRecord{Kind: record.Kind, ID: record.ID, Fields: fieldsJSON})
}
