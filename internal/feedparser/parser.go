// Package feedparser normalizes RSS 2.0 and Atom 1.0 payloads into a common
// intermediate representation for the ingestion pipeline.
package feedparser

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// ParsedEntry is one candidate article from a feed document.
type ParsedEntry struct {
	Title     string
	Link      *string
	GUID      string
	Author    string
	Content   string // raw HTML
	Published *time.Time
	Updated   *time.Time
}

// Result is the outcome of parsing one feed document. Parse never panics and
// never returns a Go error; malformed documents yield Success=false with a
// descriptive message.
type Result struct {
	Success bool
	Title   string
	SiteURL string
	Entries []ParsedEntry
	Err     string
}

var absoluteURLPattern = regexp.MustCompile(`^https?://`)

// Parse reads an RSS 2.0 or Atom 1.0 document, auto-detecting the format by
// root element. feedURL is used only for diagnostics.
func Parse(body []byte, feedURL string) Result {
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return Result{Success: false, Err: fmt.Sprintf("parse %s: %v", feedURL, err)}
	}

	entries := make([]ParsedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entries = append(entries, normalizeItem(item))
	}

	return Result{
		Success: true,
		Title:   strings.TrimSpace(feed.Title),
		SiteURL: strings.TrimSpace(feed.Link),
		Entries: entries,
	}
}

func normalizeItem(item *gofeed.Item) ParsedEntry {
	guid := strings.TrimSpace(item.GUID)
	link := strings.TrimSpace(item.Link)
	if guid == "" {
		guid = fallbackGUID(item)
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}

	return ParsedEntry{
		Title:     strings.TrimSpace(item.Title),
		Link:      resolveLink(link, guid),
		GUID:      guid,
		Author:    authorOf(item),
		Content:   content,
		Published: item.PublishedParsed,
		Updated:   item.UpdatedParsed,
	}
}

// resolveLink prefers an explicit link element. With no link, the GUID is
// used only when it is itself an absolute URL; podcast feeds routinely carry
// opaque GUIDs (e.g. "Buzzsprout-12345") that must not become clickable
// links.
func resolveLink(link, guid string) *string {
	if link != "" {
		return &link
	}
	if absoluteURLPattern.MatchString(guid) {
		return &guid
	}
	return nil
}

// fallbackGUID synthesizes a stable identifier for items without one.
func fallbackGUID(item *gofeed.Item) string {
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

func authorOf(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return strings.TrimSpace(item.Author.Name)
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	return ""
}
