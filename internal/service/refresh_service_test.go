package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skim/backend/internal/fetch"
	"skim/backend/internal/filter"
	"skim/backend/internal/ingest"
	"skim/backend/internal/model"
	"skim/backend/internal/poller"
	"skim/backend/internal/repository"
	"skim/backend/internal/repository/testutil"
	"skim/backend/internal/service"
)

const rssBody = `<?xml version="1.0"?>
<rss version="2.0"><channel>
  <title>Refresh Test Feed</title>
  <link>https://example.com</link>
  <item>
    <title>Breaking news</title>
    <link>https://example.com/news/1</link>
    <guid>urn:news:1</guid>
    <description>details</description>
  </item>
</channel></rss>`

type stubHTTP struct {
	statusCode int
	body       string
}

func (s *stubHTTP) Do(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: s.statusCode,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewBufferString(s.body)),
	}, nil
}

type serviceFixture struct {
	feeds   repository.FeedRepository
	pipe    *poller.Poller
	refresh service.RefreshService
	feedSvc service.FeedService
	userID  int64
	feedID  int64
}

func newServiceFixture(t *testing.T, httpClient fetch.HTTPClient) *serviceFixture {
	t.Helper()
	database := testutil.NewTestDB(t)

	feeds := repository.NewFeedRepository(database)
	entries := repository.NewEntryRepository(database)
	userEntries := repository.NewUserEntryRepository(database)
	filters := repository.NewFilterRepository(database)
	tags := repository.NewTagRepository(database)

	engine := filter.NewEngine(filters, userEntries, entries, tags)
	dedup := ingest.NewDeduplicator(entries, userEntries, feeds, engine)
	client := fetch.NewClient(httpClient, 0)
	throttle := fetch.NewThrottle(time.Millisecond, nil)
	adaptive := poller.NewAdaptive(entries)
	pipe := poller.New(feeds, client, throttle, dedup, adaptive, poller.Options{})

	fx := &serviceFixture{
		feeds:   feeds,
		pipe:    pipe,
		refresh: service.NewRefreshService(feeds, pipe),
		feedSvc: service.NewFeedService(feeds, pipe),
	}
	fx.userID = testutil.SeedUser(t, database, "reader")
	fx.feedID = testutil.SeedFeed(t, database, model.Feed{UserID: fx.userID, URL: "https://example.com/feed.xml"})
	return fx
}

func TestRefreshFeed_Success(t *testing.T) {
	fx := newServiceFixture(t, &stubHTTP{statusCode: 200, body: rssBody})

	counts, err := fx.refresh.RefreshFeed(context.Background(), fx.feedID)
	require.NoError(t, err)
	require.Equal(t, ingest.Counts{New: 1}, counts)
}

func TestRefreshFeed_NotFound(t *testing.T) {
	fx := newServiceFixture(t, &stubHTTP{statusCode: 200, body: rssBody})

	_, err := fx.refresh.RefreshFeed(context.Background(), 999999)
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestRefreshFeed_InFlightConflict(t *testing.T) {
	fx := newServiceFixture(t, &stubHTTP{statusCode: 200, body: rssBody})
	ctx := context.Background()

	require.NoError(t, fx.feeds.MarkUpdateStarted(ctx, fx.feedID, time.Now().UTC()))

	_, err := fx.refresh.RefreshFeed(ctx, fx.feedID)
	require.ErrorIs(t, err, service.ErrConflict)

	var inProgress *service.RefreshInProgressError
	require.ErrorAs(t, err, &inProgress)
}

// A stale in-flight mark no longer blocks a manual refresh.
func TestRefreshFeed_StaleGuardIgnored(t *testing.T) {
	fx := newServiceFixture(t, &stubHTTP{statusCode: 200, body: rssBody})
	ctx := context.Background()

	require.NoError(t, fx.feeds.MarkUpdateStarted(ctx, fx.feedID, time.Now().UTC().Add(-10*time.Minute)))

	counts, err := fx.refresh.RefreshFeed(ctx, fx.feedID)
	require.NoError(t, err)
	require.Equal(t, ingest.Counts{New: 1}, counts)
}

func TestRefreshFeed_Backoff(t *testing.T) {
	fx := newServiceFixture(t, &stubHTTP{statusCode: 200, body: rssBody})
	ctx := context.Background()

	feed, err := fx.feeds.GetByID(ctx, fx.feedID)
	require.NoError(t, err)
	retry := time.Now().UTC().Add(time.Hour)
	msg := "HTTP 500"
	feed.RetryAfter = &retry
	feed.LastError = &msg
	feed.ConsecutiveFailures = 2
	require.NoError(t, fx.feeds.UpdatePollState(ctx, feed))

	_, err = fx.refresh.RefreshFeed(ctx, fx.feedID)
	var backoff *service.BackoffError
	require.ErrorAs(t, err, &backoff)
	require.WithinDuration(t, retry, backoff.RetryAfter, time.Second)
	require.Equal(t, "HTTP 500", backoff.LastError)
}

func TestRefreshFeed_FetchFailureWrapped(t *testing.T) {
	fx := newServiceFixture(t, &stubHTTP{statusCode: 500, body: "boom"})

	_, err := fx.refresh.RefreshFeed(context.Background(), fx.feedID)
	require.ErrorIs(t, err, service.ErrFeedFetch)
}

func TestSubscribe(t *testing.T) {
	fx := newServiceFixture(t, &stubHTTP{statusCode: 200, body: rssBody})
	ctx := context.Background()

	feed, err := fx.feedSvc.Subscribe(ctx, service.SubscribeRequest{
		UserID: fx.userID,
		URL:    "https://example.com/other.xml",
	})
	require.NoError(t, err)
	require.Equal(t, "Refresh Test Feed", feed.Title, "initial fetch resolves the title")
	require.NotNil(t, feed.LastSuccessfulPollAt)
}

func TestSubscribe_DuplicateURL(t *testing.T) {
	fx := newServiceFixture(t, &stubHTTP{statusCode: 200, body: rssBody})
	ctx := context.Background()

	_, err := fx.feedSvc.Subscribe(ctx, service.SubscribeRequest{
		UserID: fx.userID,
		URL:    "https://example.com/feed.xml",
	})
	require.ErrorIs(t, err, service.ErrConflict)

	var conflict *service.FeedConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, fx.feedID, conflict.ExistingFeed.ID)
}

func TestSubscribe_InvalidURL(t *testing.T) {
	fx := newServiceFixture(t, &stubHTTP{statusCode: 200, body: rssBody})
	ctx := context.Background()

	for _, raw := range []string{"", "not a url", "ftp://example.com/feed.xml", "https://"} {
		_, err := fx.feedSvc.Subscribe(ctx, service.SubscribeRequest{UserID: fx.userID, URL: raw})
		require.Truef(t, errors.Is(err, service.ErrInvalid), "url %q: got %v", raw, err)
	}
}

// A failing initial fetch still creates the subscription; the error is
// recorded on the feed and retried on schedule.
func TestSubscribe_InitialFetchFailure(t *testing.T) {
	fx := newServiceFixture(t, &stubHTTP{statusCode: 500, body: "boom"})
	ctx := context.Background()

	feed, err := fx.feedSvc.Subscribe(ctx, service.SubscribeRequest{
		UserID: fx.userID,
		URL:    "https://example.com/broken.xml",
	})
	require.NoError(t, err)
	require.NotNil(t, feed.LastError)
	require.Equal(t, 1, feed.ConsecutiveFailures)
}
