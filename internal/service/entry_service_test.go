package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"skim/backend/internal/model"
	"skim/backend/internal/repository"
	"skim/backend/internal/repository/testutil"
	"skim/backend/internal/service"
)

type entryListFixture struct {
	svc        service.EntryService
	userID     int64
	feedA      int64
	feedB      int64
	categoryID int64
}

func newEntryListFixture(t *testing.T) entryListFixture {
	t.Helper()
	database := testutil.NewTestDB(t)

	userID := testutil.SeedUser(t, database, "alice")
	categoryID := testutil.SeedCategory(t, database, userID, "tech")
	feedA := testutil.SeedFeed(t, database, model.Feed{
		UserID: userID, URL: "https://a.example.com/rss", CategoryID: &categoryID,
	})
	feedB := testutil.SeedFeed(t, database, model.Feed{
		UserID: userID, URL: "https://b.example.com/rss",
	})

	for i, title := range []string{"first", "second", "third"} {
		titleCopy := title
		entryID := testutil.SeedEntry(t, database, model.Entry{Title: &titleCopy})
		feedID := feedA
		if i == 2 {
			feedID = feedB
		}
		testutil.SeedUserEntry(t, database, userID, entryID, feedID)
	}

	svc := service.NewEntryService(
		repository.NewUserEntryRepository(database),
		repository.NewEntryRepository(database),
	)
	return entryListFixture{svc: svc, userID: userID, feedA: feedA, feedB: feedB, categoryID: categoryID}
}

func TestListEntries_All(t *testing.T) {
	fx := newEntryListFixture(t)

	items, err := fx.svc.ListForUser(context.Background(), fx.userID, service.EntryListOptions{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, item := range items {
		require.Equal(t, item.UserEntry.EntryID, item.Entry.ID)
	}
}

func TestListEntries_FeedScope(t *testing.T) {
	fx := newEntryListFixture(t)

	items, err := fx.svc.ListForUser(context.Background(), fx.userID, service.EntryListOptions{FeedID: &fx.feedB})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "third", *items[0].Entry.Title)
}

func TestListEntries_CategoryScope(t *testing.T) {
	fx := newEntryListFixture(t)

	items, err := fx.svc.ListForUser(context.Background(), fx.userID, service.EntryListOptions{CategoryID: &fx.categoryID})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		require.Equal(t, fx.feedA, item.UserEntry.FeedID)
	}
}

func TestListEntries_Paging(t *testing.T) {
	fx := newEntryListFixture(t)
	ctx := context.Background()

	page1, err := fx.svc.ListForUser(ctx, fx.userID, service.EntryListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)

	page2, err := fx.svc.ListForUser(ctx, fx.userID, service.EntryListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	require.NotContains(t, []int64{page1[0].UserEntry.ID, page1[1].UserEntry.ID}, page2[0].UserEntry.ID)
}

func TestListEntries_UnknownUserEmpty(t *testing.T) {
	fx := newEntryListFixture(t)

	items, err := fx.svc.ListForUser(context.Background(), fx.userID+1, service.EntryListOptions{})
	require.NoError(t, err)
	require.Empty(t, items)
}
