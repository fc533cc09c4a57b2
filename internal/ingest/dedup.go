// Package ingest decides what each parsed candidate entry means for storage:
// a brand-new article, an in-place update, or a no-op.
package ingest

import (
	"context"

	"skim/backend/internal/feedparser"
	"skim/backend/internal/filter"
	"skim/backend/internal/logger"
	"skim/backend/internal/model"
	"skim/backend/internal/repository"
)

// Outcome classifies one candidate entry.
type Outcome int

const (
	OutcomeNew Outcome = iota
	OutcomeUpdated
	OutcomeUnchanged
)

// Counts aggregates the outcomes of one feed payload.
type Counts struct {
	New       int
	Updated   int
	Unchanged int
}

// Deduplicator applies GUID and content-hash deduplication and fans new
// entries out to every subscriber of the producing feed's URL.
type Deduplicator struct {
	entries     repository.EntryRepository
	userEntries repository.UserEntryRepository
	feeds       repository.FeedRepository
	engine      *filter.Engine
}

func NewDeduplicator(
	entries repository.EntryRepository,
	userEntries repository.UserEntryRepository,
	feeds repository.FeedRepository,
	engine *filter.Engine,
) *Deduplicator {
	return &Deduplicator{
		entries:     entries,
		userEntries: userEntries,
		feeds:       feeds,
		engine:      engine,
	}
}

// IngestAll processes every candidate from one payload. A single entry's
// failure is logged and skipped; it never fails the whole feed cycle.
func (d *Deduplicator) IngestAll(ctx context.Context, feed model.Feed, candidates []feedparser.ParsedEntry) (Counts, error) {
	var counts Counts
	for _, candidate := range candidates {
		outcome, err := d.IngestEntry(ctx, feed, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return counts, ctx.Err()
			}
			logger.Warn("entry ingest failed",
				"module", "ingest", "action", "ingest", "resource", "entry", "result", "failed",
				"feed_id", feed.ID, "guid", candidate.GUID, "error", err)
			continue
		}
		switch outcome {
		case OutcomeNew:
			counts.New++
		case OutcomeUpdated:
			counts.Updated++
		default:
			counts.Unchanged++
		}
	}
	return counts, nil
}

// IngestEntry decides and applies the outcome for one candidate:
//
//	NEW       no entry with this GUID exists; create it plus one UserEntry per
//	          subscriber and run the filter engine on each new UserEntry
//	UPDATED   the GUID exists with a different content hash; rewrite in place
//	UNCHANGED the GUID exists with an equal hash; skip
func (d *Deduplicator) IngestEntry(ctx context.Context, feed model.Feed, candidate feedparser.ParsedEntry) (Outcome, error) {
	hash := ContentHash(candidate.Content)

	existing, err := d.entries.FindByGUID(ctx, candidate.GUID)
	if err != nil {
		return OutcomeUnchanged, err
	}

	if existing == nil {
		created, err := d.entries.Create(ctx, entryFromCandidate(candidate, hash))
		if err != nil {
			// A concurrent worker may have won the GUID uniqueness race;
			// fall back to the update path instead of failing the cycle.
			existing, findErr := d.entries.FindByGUID(ctx, candidate.GUID)
			if findErr != nil || existing == nil {
				return OutcomeUnchanged, err
			}
			return d.refreshExisting(ctx, feed, *existing, candidate, hash)
		}

		if err := d.entries.LinkFeed(ctx, feed.ID, created.ID); err != nil {
			return OutcomeNew, err
		}
		if err := d.fanOut(ctx, feed, created); err != nil {
			return OutcomeNew, err
		}
		return OutcomeNew, nil
	}

	return d.refreshExisting(ctx, feed, *existing, candidate, hash)
}

func (d *Deduplicator) refreshExisting(ctx context.Context, feed model.Feed, existing model.Entry, candidate feedparser.ParsedEntry, hash string) (Outcome, error) {
	// Keep the feed link fresh even for unchanged entries so that a second
	// feed carrying the same GUID shares the row.
	if err := d.entries.LinkFeed(ctx, feed.ID, existing.ID); err != nil {
		return OutcomeUnchanged, err
	}

	if existing.ContentHash == hash {
		return OutcomeUnchanged, nil
	}

	updated := entryFromCandidate(candidate, hash)
	updated.ID = existing.ID
	updated.GUID = existing.GUID
	if err := d.entries.UpdateContent(ctx, updated); err != nil {
		return OutcomeUnchanged, err
	}
	return OutcomeUpdated, nil
}

// fanOut creates one UserEntry per subscriber of the feed URL and runs the
// filter engine on each newly created row. Updated and unchanged entries do
// not re-trigger filters.
func (d *Deduplicator) fanOut(ctx context.Context, feed model.Feed, entry model.Entry) error {
	subscriptions, err := d.feeds.ListByURL(ctx, feed.URL)
	if err != nil {
		return err
	}

	for _, sub := range subscriptions {
		exists, err := d.userEntries.ExistsForUser(ctx, sub.UserID, entry.ID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		ue, err := d.userEntries.Create(ctx, model.UserEntry{
			UserID:  sub.UserID,
			EntryID: entry.ID,
			FeedID:  sub.ID,
		})
		if err != nil {
			return err
		}

		view := filter.ArticleView{
			UserID:      sub.UserID,
			UserEntryID: ue.ID,
			EntryID:     entry.ID,
			FeedID:      sub.ID,
			CategoryID:  sub.CategoryID,
			Title:       deref(entry.Title),
			Content:     deref(entry.Content),
			Link:        deref(entry.Link),
			Author:      deref(entry.Author),
			Published:   entry.PublishedAt,
			Updated:     entry.UpdatedAtSrc,
		}
		if err := d.engine.Execute(ctx, view); err != nil {
			logger.Warn("filter pass failed",
				"module", "ingest", "action", "filter", "resource", "user_entry", "result", "failed",
				"user_entry_id", ue.ID, "error", err)
		}
	}
	return nil
}

func entryFromCandidate(candidate feedparser.ParsedEntry, hash string) model.Entry {
	entry := model.Entry{
		GUID:         candidate.GUID,
		Link:         candidate.Link,
		ContentHash:  hash,
		PublishedAt:  candidate.Published,
		UpdatedAtSrc: candidate.Updated,
	}
	if candidate.Title != "" {
		title := candidate.Title
		entry.Title = &title
	}
	if candidate.Author != "" {
		author := candidate.Author
		entry.Author = &author
	}
	if candidate.Content != "" {
		content := candidate.Content
		entry.Content = &content
	}
	return entry
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
