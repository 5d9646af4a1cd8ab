package feed

import "time"

// Metadata is feed-level information extracted from a parsed document.
type Metadata struct {
	Title       string
	Link        string
	Description string
	IconURL     string
	Language    string
}

// Item is a normalized entry from a parsed feed document.
type Item struct {
	GUID        string
	Title       string
	Link        string
	Content     string
	PublishedAt *time.Time
	UpdatedAt   *time.Time
}

// FetchResult is the outcome of one conditional fetch.
type FetchResult struct {
	NotModified  bool
	Body         []byte
	ETag         string
	LastModified string
}
