package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"skim/backend/internal/ingest"
	"skim/backend/internal/logger"
	"skim/backend/internal/poller"
	"skim/backend/internal/repository"
)

// RefreshService is the manual "refresh this feed now" surface. It reuses
// the scheduled pipeline path and honors the same guards: a fetch already in
// flight is a conflict and a feed in backoff is rejected with a retry hint.
type RefreshService interface {
	RefreshFeed(ctx context.Context, feedID int64) (ingest.Counts, error)
}

type refreshService struct {
	feeds repository.FeedRepository
	pipe  *poller.Poller
}

func NewRefreshService(feeds repository.FeedRepository, pipe *poller.Poller) RefreshService {
	return &refreshService{feeds: feeds, pipe: pipe}
}

func (s *refreshService) RefreshFeed(ctx context.Context, feedID int64) (ingest.Counts, error) {
	feed, err := s.feeds.GetByID(ctx, feedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ingest.Counts{}, ErrNotFound
		}
		return ingest.Counts{}, err
	}

	now := time.Now().UTC()
	if feed.UpdateInFlight(now, poller.InProgressGuard) {
		return ingest.Counts{}, &RefreshInProgressError{StartedAt: *feed.LastUpdateStarted}
	}
	if feed.InBackoff(now) {
		backoffErr := &BackoffError{RetryAfter: *feed.RetryAfter}
		if feed.LastError != nil {
			backoffErr.LastError = *feed.LastError
		}
		return ingest.Counts{}, backoffErr
	}

	counts, err := s.pipe.ProcessFeed(ctx, feed)
	if err != nil {
		logger.Warn("manual refresh failed",
			"module", "service", "action", "refresh", "resource", "feed", "result", "failed",
			"feed_id", feedID, "error", err)
		return counts, fmt.Errorf("%w: %v", ErrFeedFetch, err)
	}

	logger.Info("manual refresh completed",
		"module", "service", "action", "refresh", "resource", "feed", "result", "ok",
		"feed_id", feedID, "new", counts.New, "updated", counts.Updated)
	return counts, nil
}
