// Package poller drives the feed polling pipeline: due-feed selection,
// conditional fetch, parse, dedup, filter and reschedule.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"skim/backend/internal/feedparser"
	"skim/backend/internal/fetch"
	"skim/backend/internal/ingest"
	"skim/backend/internal/logger"
	"skim/backend/internal/model"
	"skim/backend/internal/repository"
)

// InProgressGuard is how long a started fetch blocks re-selection of its
// feed. A start timestamp older than this is treated as a crashed or hung
// worker and the feed becomes eligible again.
const InProgressGuard = 5 * time.Minute

// Options tunes the poll loop.
type Options struct {
	Tick        time.Duration // due-feed selection cadence
	Workers     int           // concurrent fetch workers
	WorkerDelay time.Duration // politeness delay after each fetch, per worker
}

// Poller owns the top-level polling loop.
type Poller struct {
	feeds    repository.FeedRepository
	client   *fetch.Client
	throttle *fetch.Throttle
	dedup    *ingest.Deduplicator
	adaptive *Adaptive
	opts     Options

	stopCh     chan struct{}
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc // cancels the in-flight cycle
	mu         sync.Mutex         // protects cancelFunc
}

func New(
	feeds repository.FeedRepository,
	client *fetch.Client,
	throttle *fetch.Throttle,
	dedup *ingest.Deduplicator,
	adaptive *Adaptive,
	opts Options,
) *Poller {
	if opts.Tick <= 0 {
		opts.Tick = time.Minute
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	return &Poller{
		feeds:    feeds,
		client:   client,
		throttle: throttle,
		dedup:    dedup,
		adaptive: adaptive,
		opts:     opts,
		stopCh:   make(chan struct{}),
	}
}

func (p *Poller) Start() {
	p.wg.Add(1)
	go p.run()
	logger.Info("poller started", "module", "poller", "action", "poll", "resource", "feed", "result", "ok",
		"tick_ms", p.opts.Tick.Milliseconds(), "workers", p.opts.Workers)
}

func (p *Poller) Stop() {
	p.mu.Lock()
	if p.cancelFunc != nil {
		p.cancelFunc()
	}
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
	logger.Info("poller stopped", "module", "poller", "action", "poll", "resource", "feed", "result", "ok")
}

func (p *Poller) run() {
	defer p.wg.Done()

	// Run immediately on start.
	p.cycle()

	ticker := time.NewTicker(p.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.cycle()
		case <-p.stopCh:
			return
		}
	}
}

func (p *Poller) cycle() {
	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.cancelFunc = cancel
	p.mu.Unlock()

	defer func() {
		cancel()
		p.mu.Lock()
		p.cancelFunc = nil
		p.mu.Unlock()
	}()

	if err := p.RunCycle(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Warn("poll cycle cancelled", "module", "poller", "action", "poll", "resource", "feed", "result", "cancelled")
			return
		}
		logger.Error("poll cycle failed", "module", "poller", "action", "poll", "resource", "feed", "result", "failed", "error", err)
	}
}

// RunCycle selects due feeds and processes them concurrently up to the
// worker limit. One feed's failure never aborts the others; only the due
// selection itself can fail the cycle.
func (p *Poller) RunCycle(ctx context.Context) error {
	now := time.Now().UTC()
	due, err := p.feeds.ListDue(ctx, now, InProgressGuard)
	if err != nil {
		return fmt.Errorf("select due feeds: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	logger.Debug("due feeds selected", "module", "poller", "action", "poll", "resource", "feed", "result", "ok", "count", len(due))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for _, feed := range due {
		feed := feed
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if _, err := p.ProcessFeed(ctx, feed); err != nil {
				logger.Warn("feed poll failed",
					"module", "poller", "action", "poll", "resource", "feed", "result", "failed",
					"feed_id", feed.ID, "url", feed.URL, "error", err)
			}
			if p.opts.WorkerDelay > 0 {
				select {
				case <-time.After(p.opts.WorkerDelay):
				case <-ctx.Done():
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// ProcessFeed runs the full pipeline for one feed: throttle, fetch, parse,
// dedup, filter, reschedule. The manual-refresh surface goes through this
// exact path. The returned error describes a feed-level failure that has
// already been recorded on the feed row.
func (p *Poller) ProcessFeed(ctx context.Context, feed model.Feed) (ingest.Counts, error) {
	now := time.Now().UTC()
	if err := p.feeds.MarkUpdateStarted(ctx, feed.ID, now); err != nil {
		return ingest.Counts{}, fmt.Errorf("mark update started: %w", err)
	}

	if err := p.throttle.Wait(ctx, feed.URL); err != nil {
		// Cancelled while waiting; release the guard without recording a failure.
		feed.LastPolledAt = &now
		_ = p.feeds.UpdatePollState(ctx, feed)
		return ingest.Counts{}, err
	}

	result := p.client.Fetch(ctx, feed.URL, deref(feed.ETag), deref(feed.LastModified))
	now = time.Now().UTC()
	feed.LastPolledAt = &now

	switch result.Status {
	case fetch.StatusNotModified:
		return ingest.Counts{}, p.finishSuccess(ctx, &feed, ingest.Counts{}, "", "", now)

	case fetch.StatusRateLimited:
		ApplyRateLimit(&feed, result.RetryAfter, now)
		msg := result.ErrorMessage
		feed.LastError = &msg
		if err := p.feeds.UpdatePollState(ctx, feed); err != nil {
			return ingest.Counts{}, err
		}
		logger.Info("feed rate limited",
			"module", "poller", "action", "poll", "resource", "feed", "result", "rate_limited",
			"feed_id", feed.ID, "http_status", result.HTTPStatus)
		return ingest.Counts{}, fmt.Errorf("rate limited: %s", result.ErrorMessage)

	case fetch.StatusError:
		return ingest.Counts{}, p.finishFailure(ctx, &feed, result.ErrorMessage, now)
	}

	parsed := feedparser.Parse(result.Body, feed.URL)
	if !parsed.Success {
		return ingest.Counts{}, p.finishFailure(ctx, &feed, parsed.Err, now)
	}

	// Freshly subscribed feeds get their title and site link from the document.
	if feed.Title == "" && parsed.Title != "" {
		feed.Title = parsed.Title
	}
	if feed.SiteURL == nil && parsed.SiteURL != "" {
		siteURL := parsed.SiteURL
		feed.SiteURL = &siteURL
	}

	counts, err := p.dedup.IngestAll(ctx, feed, parsed.Entries)
	if err != nil {
		return counts, p.finishFailure(ctx, &feed, err.Error(), now)
	}

	if err := p.finishSuccess(ctx, &feed, counts, result.ETag, result.LastModified, time.Now().UTC()); err != nil {
		return counts, err
	}

	if counts.New > 0 || counts.Updated > 0 {
		logger.Info("feed polled",
			"module", "poller", "action", "poll", "resource", "feed", "result", "ok",
			"feed_id", feed.ID, "new", counts.New, "updated", counts.Updated, "unchanged", counts.Unchanged)
	}
	return counts, nil
}

func (p *Poller) finishSuccess(ctx context.Context, feed *model.Feed, counts ingest.Counts, etag, lastModified string, now time.Time) error {
	ResetBackoff(feed)
	feed.LastError = nil
	feed.LastSuccessfulPollAt = &now
	if etag != "" {
		feed.ETag = &etag
	}
	if lastModified != "" {
		feed.LastModified = &lastModified
	}
	if err := p.adaptive.UpdatePollingStats(ctx, feed, counts.New, now); err != nil {
		return fmt.Errorf("update polling stats: %w", err)
	}
	if err := p.feeds.UpdatePollState(ctx, *feed); err != nil {
		return fmt.Errorf("persist poll state: %w", err)
	}
	return nil
}

// finishFailure records the error, escalates backoff and releases the
// in-flight guard. The next_poll_at schedule is left alone; the retry window
// alone governs when the feed is retried.
func (p *Poller) finishFailure(ctx context.Context, feed *model.Feed, message string, now time.Time) error {
	ApplyBackoff(feed, nil, now)
	feed.LastError = &message
	if err := p.feeds.UpdatePollState(ctx, *feed); err != nil {
		return err
	}
	return fmt.Errorf("feed poll: %s", message)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
