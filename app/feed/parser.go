// Package feed fetches and parses subscription documents and folds the
// results into the local article store.
package feed

import (
	"bytes"
	"cmp"
	"fmt"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Parse parses RSS/Atom/JSON feed data into metadata and normalized items.
// Items without any usable identity (no GUID and no link) are dropped.
func (p *Parser) Parse(data []byte) (*Metadata, []Item, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: parsed.Description,
		Language:    parsed.Language,
	}
	if parsed.Image != nil {
		metadata.IconURL = parsed.Image.URL
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		guid := cmp.Or(item.GUID, item.Link)
		if guid == "" {
			continue
		}

		normalized := Item{
			GUID:        guid,
			Title:       item.Title,
			Link:        item.Link,
			Content:     cmp.Or(item.Content, item.Description),
			PublishedAt: item.PublishedParsed,
			UpdatedAt:   item.UpdatedParsed,
		}
		items = append(items, normalized)
	}

	return metadata, items, nil
}
