package service

import (
	"errors"
	"fmt"
	"time"

	"skim/backend/internal/model"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
	ErrFeedFetch = errors.New("feed fetch failed")
)

// FeedConflictError is returned when a feed URL already exists for the user.
type FeedConflictError struct {
	ExistingFeed model.Feed
}

func (e *FeedConflictError) Error() string {
	return "feed already exists"
}

func (e *FeedConflictError) Is(target error) bool {
	return target == ErrConflict
}

// RefreshInProgressError is returned when a manual refresh is requested while
// a fetch is already in flight for the feed.
type RefreshInProgressError struct {
	StartedAt time.Time
}

func (e *RefreshInProgressError) Error() string {
	return "refresh already in progress"
}

func (e *RefreshInProgressError) Is(target error) bool {
	return target == ErrConflict
}

// BackoffError rejects a manual refresh while the feed is inside its retry
// window, carrying the retry hint and the last recorded failure.
type BackoffError struct {
	RetryAfter time.Time
	LastError  string
}

func (e *BackoffError) Error() string {
	if e.LastError != "" {
		return fmt.Sprintf("feed in backoff until %s: %s", e.RetryAfter.Format(time.RFC3339), e.LastError)
	}
	return fmt.Sprintf("feed in backoff until %s", e.RetryAfter.Format(time.RFC3339))
}
