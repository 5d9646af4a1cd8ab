// Package opml imports and exports feed subscriptions as OPML documents.
// Folders map to one level of outline nesting; external IDs ride along as a
// custom attribute so a re-import can reattach remote identity.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

type Document struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

type Body struct {
	Outlines []Outline `xml:"outline"`
}

type Outline struct {
	Text       string    `xml:"text,attr"`
	Title      string    `xml:"title,attr,omitempty"`
	Type       string    `xml:"type,attr,omitempty"`
	XMLURL     string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL    string    `xml:"htmlUrl,attr,omitempty"`
	ExternalID string    `xml:"externalID,attr,omitempty"`
	Outlines   []Outline `xml:"outline,omitempty"`
}

// FeedEntry is one subscription flattened out of the outline tree.
type FeedEntry struct {
	FolderName string // empty for top-level feeds
	Title      string
	URL        string
	HomePage   string
	ExternalID string
}

// Parse reads an OPML document and flattens it into feed entries. Outlines
// nested deeper than one folder level collapse onto their top-level folder;
// outlines without an xmlUrl and without children are ignored.
func Parse(r io.Reader) ([]FeedEntry, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode OPML document: %w", err)
	}

	var entries []FeedEntry
	var walk func(outlines []Outline, folderName string)
	walk = func(outlines []Outline, folderName string) {
		for _, outline := range outlines {
			if outline.XMLURL != "" {
				title := outline.Title
				if title == "" {
					title = outline.Text
				}
				entries = append(entries, FeedEntry{
					FolderName: folderName,
					Title:      title,
					URL:        outline.XMLURL,
					HomePage:   outline.HTMLURL,
					ExternalID: outline.ExternalID,
				})
				continue
			}
			if len(outline.Outlines) == 0 {
				continue
			}
			name := outline.Text
			if name == "" {
				name = outline.Title
			}
			if folderName != "" {
				name = folderName
			}
			walk(outline.Outlines, name)
		}
	}
	walk(doc.Body.Outlines, "")

	return entries, nil
}

// Folder groups entries for export.
type Folder struct {
	Name       string
	ExternalID string
	Feeds      []FeedEntry
}

// Export renders top-level feeds and folders into an OPML 2.0 document.
func Export(title string, topLevel []FeedEntry, folders []Folder) ([]byte, error) {
	doc := Document{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: time.Now().Format(time.RFC1123Z),
		},
	}

	for _, entry := range topLevel {
		doc.Body.Outlines = append(doc.Body.Outlines, feedOutline(entry))
	}
	for _, folder := range folders {
		outline := Outline{
			Text:       folder.Name,
			Title:      folder.Name,
			ExternalID: folder.ExternalID,
		}
		for _, entry := range folder.Feeds {
			outline.Outlines = append(outline.Outlines, feedOutline(entry))
		}
		doc.Body.Outlines = append(doc.Body.Outlines, outline)
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode OPML document: %w", err)
	}

	return append([]byte(xml.Header), output...), nil
}

func feedOutline(entry FeedEntry) Outline {
	return Outline{
		Text:       entry.Title,
		Title:      entry.Title,
		Type:       "rss",
		XMLURL:     entry.URL,
		HTMLURL:    entry.HomePage,
		ExternalID: entry.ExternalID,
	}
}
