package feed

import (
	"testing"
)

func TestParseRSSFeed(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <link>https://example.com</link>
    <description>An example blog</description>
    <item>
      <guid>https://example.com/post-1</guid>
      <title>First Post</title>
      <link>https://example.com/post-1</link>
      <description>Short summary</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title>No GUID Post</title>
      <link>https://example.com/post-2</link>
    </item>
  </channel>
</rss>`)

	metadata, items, err := NewParser().Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if metadata.Title != "Example Blog" {
		t.Errorf("Expected title 'Example Blog', got %q", metadata.Title)
	}
	if metadata.Link != "https://example.com" {
		t.Errorf("Expected link 'https://example.com', got %q", metadata.Link)
	}

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].GUID != "https://example.com/post-1" {
		t.Errorf("Unexpected GUID: %q", items[0].GUID)
	}
	if items[0].Content != "Short summary" {
		t.Errorf("Expected description fallback for content, got %q", items[0].Content)
	}
	if items[0].PublishedAt == nil {
		t.Error("Expected published date to be parsed")
	}

	// Missing GUID falls back to the link.
	if items[1].GUID != "https://example.com/post-2" {
		t.Errorf("Expected link fallback for GUID, got %q", items[1].GUID)
	}
}

func TestParseAtomFeed(t *testing.T) {
	data := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Example</title>
  <link href="https://atom.example"/>
  <entry>
    <id>urn:uuid:entry-1</id>
    <title>Atom Entry</title>
    <link href="https://atom.example/entry-1"/>
    <content type="html">&lt;p&gt;body&lt;/p&gt;</content>
    <updated>2006-01-02T15:04:05Z</updated>
  </entry>
</feed>`)

	metadata, items, err := NewParser().Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if metadata.Title != "Atom Example" {
		t.Errorf("Expected title 'Atom Example', got %q", metadata.Title)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].GUID != "urn:uuid:entry-1" {
		t.Errorf("Unexpected GUID: %q", items[0].GUID)
	}
	if items[0].Content != "<p>body</p>" {
		t.Errorf("Unexpected content: %q", items[0].Content)
	}
}

func TestParseInvalidData(t *testing.T) {
	if _, _, err := NewParser().Parse([]byte("not a feed")); err == nil {
		t.Error("Expected parse error for invalid data")
	}
}

func TestArticleIDIsStable(t *testing.T) {
	first := ArticleID("feed-1", "guid-1")
	second := ArticleID("feed-1", "guid-1")
	if first != second {
		t.Error("Expected identical inputs to derive identical IDs")
	}
	if ArticleID("feed-2", "guid-1") == first {
		t.Error("Expected different feeds to derive different IDs")
	}
}
