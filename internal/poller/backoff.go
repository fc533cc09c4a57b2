package poller

import (
	"time"

	"skim/backend/internal/model"
)

// backoffTable is the escalating retry delay, indexed by failure count.
// Failures beyond the table stay at the final 24h step.
var backoffTable = []time.Duration{
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	4 * time.Hour,
	24 * time.Hour,
}

// maxSaneRetryAfter guards against absurd server-supplied Retry-After values.
const maxSaneRetryAfter = 48 * time.Hour

// ApplyBackoff records one more consecutive failure and sets the feed's
// retry window. A sane server-supplied Retry-After takes precedence over the
// table delay.
func ApplyBackoff(feed *model.Feed, serverRetryAfter *time.Time, now time.Time) {
	feed.ConsecutiveFailures++
	retry := now.Add(backoffDelay(feed.ConsecutiveFailures))
	if t := saneRetryAfter(serverRetryAfter, now); t != nil {
		retry = *t
	}
	feed.RetryAfter = &retry
}

// ApplyRateLimit sets the retry window for a rate-limited fetch without
// counting it as a failure; the server is slow, not broken.
func ApplyRateLimit(feed *model.Feed, serverRetryAfter *time.Time, now time.Time) {
	retry := now.Add(backoffDelay(feed.ConsecutiveFailures + 1))
	if t := saneRetryAfter(serverRetryAfter, now); t != nil {
		retry = *t
	}
	feed.RetryAfter = &retry
}

// ResetBackoff clears the failure state after a successful fetch.
func ResetBackoff(feed *model.Feed) {
	feed.ConsecutiveFailures = 0
	feed.RetryAfter = nil
}

func backoffDelay(consecutiveFailures int) time.Duration {
	idx := consecutiveFailures - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoffTable) {
		idx = len(backoffTable) - 1
	}
	return backoffTable[idx]
}

func saneRetryAfter(t *time.Time, now time.Time) *time.Time {
	if t == nil || !t.After(now) || t.Sub(now) >= maxSaneRetryAfter {
		return nil
	}
	return t
}
