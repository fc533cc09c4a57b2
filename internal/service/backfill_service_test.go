package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"skim/backend/internal/filter"
	"skim/backend/internal/model"
	"skim/backend/internal/repository"
	"skim/backend/internal/repository/testutil"
	"skim/backend/internal/service"
)

type backfillFixture struct {
	filters     repository.FilterRepository
	userEntries repository.UserEntryRepository
	backfill    service.BackfillService

	userID int64
	feedID int64
}

func newBackfillFixture(t *testing.T) *backfillFixture {
	t.Helper()
	database := testutil.NewTestDB(t)

	feeds := repository.NewFeedRepository(database)
	entries := repository.NewEntryRepository(database)
	userEntries := repository.NewUserEntryRepository(database)
	filters := repository.NewFilterRepository(database)
	tags := repository.NewTagRepository(database)
	engine := filter.NewEngine(filters, userEntries, entries, tags)

	fx := &backfillFixture{
		filters:     filters,
		userEntries: userEntries,
		backfill:    service.NewBackfillService(filters, userEntries, entries, feeds, engine),
	}
	fx.userID = testutil.SeedUser(t, database, "reader")
	fx.feedID = testutil.SeedFeed(t, database, model.Feed{UserID: fx.userID, Title: "Feed", URL: "https://example.com/feed.xml"})

	titles := []string{"Kubernetes 1.32 released", "Weekend reading", "Kubernetes security advisory"}
	for i, title := range titles {
		titleCopy := title
		entryID := testutil.SeedEntry(t, database, model.Entry{
			GUID:        "urn:backfill:" + string(rune('a'+i)),
			Title:       &titleCopy,
			ContentHash: "h",
		})
		testutil.SeedUserEntry(t, database, fx.userID, entryID, fx.feedID)
	}
	return fx
}

func TestBackfillFilter(t *testing.T) {
	fx := newBackfillFixture(t)
	ctx := context.Background()

	created, err := fx.filters.Create(ctx, model.Filter{
		UserID:  fx.userID,
		Title:   "k8s auto-read",
		Enabled: true,
		Rules:   []model.FilterRule{{Type: model.RuleTitle, Pattern: "kubernetes"}},
		Actions: []model.FilterAction{{Type: model.ActionMarkRead}},
	})
	require.NoError(t, err)

	affected, err := fx.backfill.BackfillFilter(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 2, affected)

	list, err := fx.userEntries.ListByUser(ctx, fx.userID, repository.UserEntryListFilter{})
	require.NoError(t, err)
	read := 0
	for _, ue := range list {
		if ue.Read {
			read++
		}
	}
	require.Equal(t, 2, read, "exactly the matching entries are marked read")
}

func TestBackfillFilter_NotFound(t *testing.T) {
	fx := newBackfillFixture(t)

	_, err := fx.backfill.BackfillFilter(context.Background(), 424242)
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestBackfillUser_RunsAllEnabledFilters(t *testing.T) {
	fx := newBackfillFixture(t)
	ctx := context.Background()

	_, err := fx.filters.Create(ctx, model.Filter{
		UserID:  fx.userID,
		Title:   "k8s auto-read",
		Enabled: true,
		OrderID: 0,
		Rules:   []model.FilterRule{{Type: model.RuleTitle, Pattern: "kubernetes"}},
		Actions: []model.FilterAction{{Type: model.ActionMarkRead}},
	})
	require.NoError(t, err)
	_, err = fx.filters.Create(ctx, model.Filter{
		UserID:  fx.userID,
		Title:   "star weekend posts",
		Enabled: true,
		OrderID: 1,
		Rules:   []model.FilterRule{{Type: model.RuleTitle, Pattern: "weekend"}},
		Actions: []model.FilterAction{{Type: model.ActionStar}},
	})
	require.NoError(t, err)

	affected, err := fx.backfill.BackfillUser(ctx, fx.userID)
	require.NoError(t, err)
	require.Equal(t, 3, affected, "every entry matched at least one filter")
}

func TestBackfillUser_DisabledFilterExcluded(t *testing.T) {
	fx := newBackfillFixture(t)
	ctx := context.Background()

	_, err := fx.filters.Create(ctx, model.Filter{
		UserID:  fx.userID,
		Title:   "disabled",
		Enabled: false,
		Rules:   []model.FilterRule{{Type: model.RuleTitle, Pattern: "kubernetes"}},
		Actions: []model.FilterAction{{Type: model.ActionMarkRead}},
	})
	require.NoError(t, err)

	affected, err := fx.backfill.BackfillUser(ctx, fx.userID)
	require.NoError(t, err)
	require.Zero(t, affected)
}

// A delete action during backfill removes the user entry; the pass for that
// entry halts but other entries are still processed.
func TestBackfillFilter_Delete(t *testing.T) {
	fx := newBackfillFixture(t)
	ctx := context.Background()

	created, err := fx.filters.Create(ctx, model.Filter{
		UserID:  fx.userID,
		Title:   "purge k8s",
		Enabled: true,
		Rules:   []model.FilterRule{{Type: model.RuleTitle, Pattern: "kubernetes"}},
		Actions: []model.FilterAction{{Type: model.ActionDelete}},
	})
	require.NoError(t, err)

	affected, err := fx.backfill.BackfillFilter(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 2, affected)

	list, err := fx.userEntries.ListByUser(ctx, fx.userID, repository.UserEntryListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1, "the two matching entries are gone")
}
