package model

import "time"

type Feed struct {
	ID         int64
	UserID     int64
	CategoryID *int64
	Title      string
	URL        string
	SiteURL    *string

	// Conditional GET state from the last successful fetch.
	ETag         *string
	LastModified *string

	// Poll bookkeeping.
	LastError            *string
	LastPolledAt         *time.Time
	LastSuccessfulPollAt *time.Time
	LastUpdateStarted    *time.Time // in-flight guard, stale after 5 minutes
	LastNewEntryAt       *time.Time

	// Adaptive scheduling state.
	NextPollAt                *time.Time
	CalculatedIntervalSeconds *int64
	AvgPostsPerDay            *float64
	UpdateInterval            int // manual override in minutes, 0 = automatic

	// Failure state.
	ConsecutiveFailures int
	RetryAfter          *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InBackoff reports whether the feed is still inside its retry window.
func (f Feed) InBackoff(now time.Time) bool {
	return f.RetryAfter != nil && f.RetryAfter.After(now)
}

// UpdateInFlight reports whether a fetch appears to be running for the feed.
// A start timestamp older than the guard window is treated as a crashed or
// hung fetch and no longer blocks selection.
func (f Feed) UpdateInFlight(now time.Time, guard time.Duration) bool {
	return f.LastUpdateStarted != nil && now.Sub(*f.LastUpdateStarted) < guard
}
