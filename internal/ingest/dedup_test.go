package ingest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skim/backend/internal/feedparser"
	"skim/backend/internal/filter"
	"skim/backend/internal/ingest"
	"skim/backend/internal/model"
	"skim/backend/internal/repository"
	"skim/backend/internal/repository/testutil"
)

type dedupFixture struct {
	entries     repository.EntryRepository
	userEntries repository.UserEntryRepository
	feeds       repository.FeedRepository
	filters     repository.FilterRepository
	dedup       *ingest.Deduplicator

	userID int64
	feed   model.Feed
}

func newDedupFixture(t *testing.T) *dedupFixture {
	t.Helper()
	database := testutil.NewTestDB(t)

	fx := &dedupFixture{
		entries:     repository.NewEntryRepository(database),
		userEntries: repository.NewUserEntryRepository(database),
		feeds:       repository.NewFeedRepository(database),
		filters:     repository.NewFilterRepository(database),
	}
	tags := repository.NewTagRepository(database)
	engine := filter.NewEngine(fx.filters, fx.userEntries, fx.entries, tags)
	fx.dedup = ingest.NewDeduplicator(fx.entries, fx.userEntries, fx.feeds, engine)

	fx.userID = testutil.SeedUser(t, database, "reader")
	feedID := testutil.SeedFeed(t, database, model.Feed{UserID: fx.userID, Title: "Feed", URL: "https://example.com/feed.xml"})
	feed, err := fx.feeds.GetByID(context.Background(), feedID)
	require.NoError(t, err)
	fx.feed = feed

	return fx
}

func candidate(guid, title, content string) feedparser.ParsedEntry {
	link := "https://example.com/posts/" + guid
	published := time.Date(2025, 1, 13, 10, 0, 0, 0, time.UTC)
	return feedparser.ParsedEntry{
		Title:     title,
		Link:      &link,
		GUID:      guid,
		Content:   content,
		Published: &published,
	}
}

func (fx *dedupFixture) userEntryCount(t *testing.T) int {
	t.Helper()
	list, err := fx.userEntries.ListByUser(context.Background(), fx.userID, repository.UserEntryListFilter{})
	require.NoError(t, err)
	return len(list)
}

func TestIngest_NewEntry(t *testing.T) {
	fx := newDedupFixture(t)
	ctx := context.Background()

	counts, err := fx.dedup.IngestAll(ctx, fx.feed, []feedparser.ParsedEntry{
		candidate("urn:1", "First post", "<p>body</p>"),
	})
	require.NoError(t, err)
	require.Equal(t, ingest.Counts{New: 1}, counts)

	entry, err := fx.entries.FindByGUID(ctx, "urn:1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "First post", *entry.Title)
	require.NotEmpty(t, entry.ContentHash)

	require.Equal(t, 1, fx.userEntryCount(t))
}

// Replaying the same payload must be a pure no-op: no new rows, no updates.
func TestIngest_Idempotent(t *testing.T) {
	fx := newDedupFixture(t)
	ctx := context.Background()
	payload := []feedparser.ParsedEntry{
		candidate("urn:1", "First post", "<p>body</p>"),
		candidate("urn:2", "Second post", "<p>other</p>"),
	}

	first, err := fx.dedup.IngestAll(ctx, fx.feed, payload)
	require.NoError(t, err)
	require.Equal(t, ingest.Counts{New: 2}, first)

	second, err := fx.dedup.IngestAll(ctx, fx.feed, payload)
	require.NoError(t, err)
	require.Equal(t, ingest.Counts{Unchanged: 2}, second)

	require.Equal(t, 2, fx.userEntryCount(t))
}

func TestIngest_UpdateInPlace(t *testing.T) {
	fx := newDedupFixture(t)
	ctx := context.Background()

	_, err := fx.dedup.IngestAll(ctx, fx.feed, []feedparser.ParsedEntry{
		candidate("urn:1", "First post", "<p>original</p>"),
	})
	require.NoError(t, err)
	original, err := fx.entries.FindByGUID(ctx, "urn:1")
	require.NoError(t, err)

	counts, err := fx.dedup.IngestAll(ctx, fx.feed, []feedparser.ParsedEntry{
		candidate("urn:1", "First post (edited)", "<p>corrected</p>"),
	})
	require.NoError(t, err)
	require.Equal(t, ingest.Counts{Updated: 1}, counts)

	updated, err := fx.entries.FindByGUID(ctx, "urn:1")
	require.NoError(t, err)
	require.Equal(t, original.ID, updated.ID, "update must rewrite the same row")
	require.Equal(t, "First post (edited)", *updated.Title)
	require.NotEqual(t, original.ContentHash, updated.ContentHash)

	require.Equal(t, 1, fx.userEntryCount(t), "an update must not create another user entry")
}

// A re-render that only shuffles whitespace or markup around identical text
// must classify as unchanged.
func TestIngest_WhitespaceOnlyChangeIsUnchanged(t *testing.T) {
	fx := newDedupFixture(t)
	ctx := context.Background()

	_, err := fx.dedup.IngestAll(ctx, fx.feed, []feedparser.ParsedEntry{
		candidate("urn:1", "First post", "<p>Hello  world</p>"),
	})
	require.NoError(t, err)

	counts, err := fx.dedup.IngestAll(ctx, fx.feed, []feedparser.ParsedEntry{
		candidate("urn:1", "First post", "<div>Hello\nworld</div>"),
	})
	require.NoError(t, err)
	require.Equal(t, ingest.Counts{Unchanged: 1}, counts)
}

// Two users subscribed to the same URL share the entry row and each get their
// own user entry.
func TestIngest_FanOutTwoSubscribers(t *testing.T) {
	database := testutil.NewTestDB(t)
	entries := repository.NewEntryRepository(database)
	userEntries := repository.NewUserEntryRepository(database)
	feeds := repository.NewFeedRepository(database)
	filters := repository.NewFilterRepository(database)
	tags := repository.NewTagRepository(database)
	engine := filter.NewEngine(filters, userEntries, entries, tags)
	dedup := ingest.NewDeduplicator(entries, userEntries, feeds, engine)
	ctx := context.Background()

	alice := testutil.SeedUser(t, database, "alice")
	bob := testutil.SeedUser(t, database, "bob")
	const url = "https://example.com/feed.xml"
	aliceFeedID := testutil.SeedFeed(t, database, model.Feed{UserID: alice, Title: "Feed", URL: url})
	testutil.SeedFeed(t, database, model.Feed{UserID: bob, Title: "Feed", URL: url})

	aliceFeed, err := feeds.GetByID(ctx, aliceFeedID)
	require.NoError(t, err)

	counts, err := dedup.IngestAll(ctx, aliceFeed, []feedparser.ParsedEntry{
		candidate("urn:shared", "Shared post", "<p>body</p>"),
	})
	require.NoError(t, err)
	require.Equal(t, ingest.Counts{New: 1}, counts)

	entry, err := entries.FindByGUID(ctx, "urn:shared")
	require.NoError(t, err)

	for _, userID := range []int64{alice, bob} {
		exists, err := userEntries.ExistsForUser(ctx, userID, entry.ID)
		require.NoError(t, err)
		require.True(t, exists, "user %d should have a view of the shared entry", userID)
	}
}

// New entries trigger the filter engine; updates must not re-trigger it.
func TestIngest_FiltersRunOnNewOnly(t *testing.T) {
	fx := newDedupFixture(t)
	ctx := context.Background()

	_, err := fx.filters.Create(ctx, model.Filter{
		UserID:  fx.userID,
		Title:   "auto-read",
		Enabled: true,
		Rules:   []model.FilterRule{{Type: model.RuleTitle, Pattern: "first"}},
		Actions: []model.FilterAction{{Type: model.ActionMarkRead}},
	})
	require.NoError(t, err)

	_, err = fx.dedup.IngestAll(ctx, fx.feed, []feedparser.ParsedEntry{
		candidate("urn:1", "First post", "<p>body</p>"),
	})
	require.NoError(t, err)

	list, err := fx.userEntries.ListByUser(ctx, fx.userID, repository.UserEntryListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.True(t, list[0].Read, "filter should mark the new entry read")

	// Mark unread, then replay an updated payload; the filter must not re-run.
	require.NoError(t, fx.userEntries.UpdateRead(ctx, list[0].ID, false))
	_, err = fx.dedup.IngestAll(ctx, fx.feed, []feedparser.ParsedEntry{
		candidate("urn:1", "First post", "<p>edited body</p>"),
	})
	require.NoError(t, err)

	ue, err := fx.userEntries.GetByID(ctx, list[0].ID)
	require.NoError(t, err)
	require.False(t, ue.Read, "updates must not re-trigger filters")
}

// A delete filter destroys the user entry during ingest; replaying the feed
// must not resurrect it.
func TestIngest_DeletedEntryStaysDeleted(t *testing.T) {
	fx := newDedupFixture(t)
	ctx := context.Background()

	_, err := fx.filters.Create(ctx, model.Filter{
		UserID:  fx.userID,
		Title:   "purge",
		Enabled: true,
		Rules:   []model.FilterRule{{Type: model.RuleTitle, Pattern: "spam"}},
		Actions: []model.FilterAction{{Type: model.ActionDelete}},
	})
	require.NoError(t, err)

	payload := []feedparser.ParsedEntry{candidate("urn:spam", "Spam post", "<p>buy now</p>")}
	counts, err := fx.dedup.IngestAll(ctx, fx.feed, payload)
	require.NoError(t, err)
	require.Equal(t, ingest.Counts{New: 1}, counts)
	require.Equal(t, 0, fx.userEntryCount(t), "delete filter removes the user entry")

	counts, err = fx.dedup.IngestAll(ctx, fx.feed, payload)
	require.NoError(t, err)
	require.Equal(t, ingest.Counts{Unchanged: 1}, counts)
	require.Equal(t, 0, fx.userEntryCount(t), "unchanged replay must not fan out again")
}
