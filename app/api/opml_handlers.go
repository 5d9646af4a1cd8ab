package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feedvault/feedvault/app/database"
	"github.com/feedvault/feedvault/app/opml"
)

// ExportOPML renders the current subscription list as an OPML document.
func (h *Handler) ExportOPML(c *gin.Context) {
	var topLevel []opml.FeedEntry
	for _, feed := range h.store.FeedsInFolder(nil) {
		topLevel = append(topLevel, feedEntry(feed))
	}

	var folders []opml.Folder
	for _, folder := range h.store.Folders() {
		exported := opml.Folder{Name: folder.Name}
		if !database.IsLocalID(folder.ExternalID) {
			exported.ExternalID = folder.ExternalID
		}
		for _, feed := range h.store.FeedsInFolder(&folder.ID) {
			exported.Feeds = append(exported.Feeds, feedEntry(feed))
		}
		folders = append(folders, exported)
	}

	data, err := opml.Export("FeedVault Subscriptions", topLevel, folders)
	if err != nil {
		slog.Error("OPML export failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "OPML export failed"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="subscriptions.opml"`)
	c.Data(http.StatusOK, "application/xml; charset=utf-8", data)
}

// ImportOPML subscribes to every feed in an uploaded OPML document. Each
// entry goes through the regular mutation path, so imports work offline and
// reach the remote store through the pending queue.
func (h *Handler) ImportOPML(c *gin.Context) {
	entries, err := opml.Parse(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added := 0
	skipped := 0
	for _, entry := range entries {
		if _, ok := h.store.FeedByURL(entry.URL); ok {
			skipped++
			continue
		}

		feed, _, err := h.provider.AddFeed(c.Request.Context(), entry.URL, entry.Title, entry.FolderName)
		if err != nil {
			slog.Warn("OPML import entry failed", "url", entry.URL, "error", err)
			skipped++
			continue
		}

		// Reattach remote identity carried in the document.
		if entry.ExternalID != "" && database.IsLocalID(feed.ExternalID) {
			if err := h.store.SetFeedExternalID(feed.ID, entry.ExternalID); err != nil {
				slog.Warn("Failed to reattach external ID", "feed", feed.ID, "error", err)
			}
		}
		added++
	}

	c.JSON(http.StatusOK, gin.H{"imported": added, "skipped": skipped, "total": len(entries)})
}

func feedEntry(feed database.Feed) opml.FeedEntry {
	entry := opml.FeedEntry{
		Title:    feed.DisplayName(),
		URL:      feed.URL,
		HomePage: feed.HomePageURL,
	}
	if !database.IsLocalID(feed.ExternalID) {
		entry.ExternalID = feed.ExternalID
	}
	return entry
}
