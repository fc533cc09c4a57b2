package poller

import (
	"context"
	"time"

	"skim/backend/internal/model"
	"skim/backend/internal/repository"
)

const (
	// Poll twice as often as the feed posts on average.
	targetWindow = 12 * time.Hour

	minInterval     = 5 * time.Minute
	maxInterval     = 7 * 24 * time.Hour
	defaultInterval = 15 * time.Minute

	postsWindowDays = 30
	minPostsPerDay  = 0.01 // floor for silent feeds, yields the max interval
)

// Adaptive computes each feed's next poll time from its observed posting
// frequency, bounded on both ends.
type Adaptive struct {
	entries repository.EntryRepository
}

func NewAdaptive(entries repository.EntryRepository) *Adaptive {
	return &Adaptive{entries: entries}
}

// UpdatePollingStats recomputes the feed's scheduling state after a
// successful poll that ingested newEntries new articles.
func (a *Adaptive) UpdatePollingStats(ctx context.Context, feed *model.Feed, newEntries int, now time.Time) error {
	if newEntries > 0 || feed.AvgPostsPerDay == nil {
		if newEntries > 0 {
			t := now
			feed.LastNewEntryAt = &t
		}
		cutoff := now.AddDate(0, 0, -postsWindowDays)
		count, err := a.entries.CountPublishedSince(ctx, feed.ID, cutoff)
		if err != nil {
			return err
		}
		avg := float64(count) / postsWindowDays
		if avg < minPostsPerDay {
			avg = minPostsPerDay
		}
		feed.AvgPostsPerDay = &avg
	}

	if feed.AvgPostsPerDay != nil {
		seconds := int64(CalculateInterval(*feed.AvgPostsPerDay).Seconds())
		feed.CalculatedIntervalSeconds = &seconds
	}

	next := now.Add(EffectiveInterval(*feed))
	feed.NextPollAt = &next
	return nil
}

// CalculateInterval converts an average posting rate into a poll interval:
// half the average gap between posts, clamped to [5 minutes, 7 days].
func CalculateInterval(avgPostsPerDay float64) time.Duration {
	if avgPostsPerDay <= minPostsPerDay {
		return maxInterval
	}
	ideal := time.Duration(float64(targetWindow) / avgPostsPerDay)
	if ideal < minInterval {
		return minInterval
	}
	if ideal > maxInterval {
		return maxInterval
	}
	return ideal
}

// EffectiveInterval prefers a positive manual override (minutes) over the
// calculated interval, falling back to a 15-minute default for brand-new
// feeds with no calculated interval yet.
func EffectiveInterval(feed model.Feed) time.Duration {
	if feed.UpdateInterval > 0 {
		return time.Duration(feed.UpdateInterval) * time.Minute
	}
	if feed.CalculatedIntervalSeconds != nil && *feed.CalculatedIntervalSeconds > 0 {
		return time.Duration(*feed.CalculatedIntervalSeconds) * time.Second
	}
	return defaultInterval
}
