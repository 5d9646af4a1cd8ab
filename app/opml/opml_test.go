package opml

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFlattensFoldersOneLevel(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>Subscriptions</title></head>
  <body>
    <outline text="Top Feed" type="rss" xmlUrl="https://top.example/feed.xml"/>
    <outline text="Tech">
      <outline text="Example" title="Example" type="rss" xmlUrl="https://example.com/feed.xml" htmlUrl="https://example.com" externalID="rf-1"/>
      <outline text="Nested">
        <outline text="Deep" type="rss" xmlUrl="https://deep.example/feed.xml"/>
      </outline>
    </outline>
    <outline text="Empty Folder"/>
  </body>
</opml>`

	entries, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}

	if entries[0].FolderName != "" || entries[0].URL != "https://top.example/feed.xml" {
		t.Errorf("Unexpected top-level entry: %+v", entries[0])
	}

	if entries[1].FolderName != "Tech" {
		t.Errorf("Expected folder Tech, got %q", entries[1].FolderName)
	}
	if entries[1].ExternalID != "rf-1" {
		t.Errorf("Expected external ID rf-1, got %q", entries[1].ExternalID)
	}

	// Deeper nesting collapses onto the top-level folder.
	if entries[2].FolderName != "Tech" {
		t.Errorf("Expected deep entry collapsed into Tech, got %q", entries[2].FolderName)
	}
}

func TestExportParseRoundTrip(t *testing.T) {
	topLevel := []FeedEntry{
		{Title: "Top Feed", URL: "https://top.example/feed.xml"},
	}
	folders := []Folder{
		{
			Name:       "Tech",
			ExternalID: "rd-1",
			Feeds: []FeedEntry{
				{Title: "Example", URL: "https://example.com/feed.xml", HomePage: "https://example.com", ExternalID: "rf-1"},
			},
		},
	}

	data, err := Export("Subscriptions", topLevel, folders)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	entries, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse of exported document failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries after round trip, got %d", len(entries))
	}

	byURL := make(map[string]FeedEntry)
	for _, entry := range entries {
		byURL[entry.URL] = entry
	}

	example := byURL["https://example.com/feed.xml"]
	if example.FolderName != "Tech" {
		t.Errorf("Expected Example in folder Tech, got %q", example.FolderName)
	}
	if example.ExternalID != "rf-1" {
		t.Errorf("Expected external ID to survive the round trip, got %q", example.ExternalID)
	}
	if example.HomePage != "https://example.com" {
		t.Errorf("Expected home page to survive the round trip, got %q", example.HomePage)
	}

	if byURL["https://top.example/feed.xml"].FolderName != "" {
		t.Error("Expected top-level feed to stay top-level")
	}
}
