package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"

	"skim/backend/internal/logger"
	"skim/backend/internal/model"
	"skim/backend/internal/poller"
	"skim/backend/internal/repository"
)

// SubscribeRequest creates one user's subscription to a feed URL.
type SubscribeRequest struct {
	UserID         int64
	URL            string
	Title          string
	CategoryID     *int64
	UpdateInterval int // minutes, 0 = automatic
}

type FeedService interface {
	// Subscribe creates the feed and runs an initial fetch through the
	// pipeline so the subscription is titled and populated immediately.
	Subscribe(ctx context.Context, req SubscribeRequest) (model.Feed, error)
	Get(ctx context.Context, id int64) (model.Feed, error)
	List(ctx context.Context, userID int64) ([]model.Feed, error)
	Update(ctx context.Context, feed model.Feed) (model.Feed, error)
	Delete(ctx context.Context, id int64) error
}

type feedService struct {
	feeds repository.FeedRepository
	pipe  *poller.Poller
}

func NewFeedService(feeds repository.FeedRepository, pipe *poller.Poller) FeedService {
	return &feedService{feeds: feeds, pipe: pipe}
}

func (s *feedService) Subscribe(ctx context.Context, req SubscribeRequest) (model.Feed, error) {
	feedURL := strings.TrimSpace(req.URL)
	if !isValidFeedURL(feedURL) {
		return model.Feed{}, ErrInvalid
	}

	existing, err := s.feeds.FindByUserAndURL(ctx, req.UserID, feedURL)
	if err != nil {
		return model.Feed{}, err
	}
	if existing != nil {
		return model.Feed{}, &FeedConflictError{ExistingFeed: *existing}
	}

	feed, err := s.feeds.Create(ctx, model.Feed{
		UserID:         req.UserID,
		CategoryID:     req.CategoryID,
		Title:          strings.TrimSpace(req.Title),
		URL:            feedURL,
		UpdateInterval: req.UpdateInterval,
	})
	if err != nil {
		return model.Feed{}, err
	}

	// First fetch runs the normal pipeline; a failure leaves the feed in
	// place with its error recorded, to be retried on schedule.
	if _, err := s.pipe.ProcessFeed(ctx, feed); err != nil {
		logger.Warn("initial feed fetch failed",
			"module", "service", "action", "subscribe", "resource", "feed", "result", "failed",
			"feed_id", feed.ID, "url", feedURL, "error", err)
	}

	created, err := s.feeds.GetByID(ctx, feed.ID)
	if err != nil {
		return model.Feed{}, err
	}
	logger.Info("feed subscribed",
		"module", "service", "action", "subscribe", "resource", "feed", "result", "ok",
		"feed_id", created.ID, "url", feedURL)
	return created, nil
}

func (s *feedService) Get(ctx context.Context, id int64) (model.Feed, error) {
	feed, err := s.feeds.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Feed{}, ErrNotFound
		}
		return model.Feed{}, err
	}
	return feed, nil
}

func (s *feedService) List(ctx context.Context, userID int64) ([]model.Feed, error) {
	return s.feeds.List(ctx, userID)
}

func (s *feedService) Update(ctx context.Context, feed model.Feed) (model.Feed, error) {
	if feed.UpdateInterval < 0 {
		return model.Feed{}, ErrInvalid
	}
	current, err := s.Get(ctx, feed.ID)
	if err != nil {
		return model.Feed{}, err
	}
	current.Title = feed.Title
	current.CategoryID = feed.CategoryID
	current.UpdateInterval = feed.UpdateInterval
	return s.feeds.Update(ctx, current)
}

func (s *feedService) Delete(ctx context.Context, id int64) error {
	err := s.feeds.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isValidFeedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
