package fetch

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SpacingSource supplies a per-host minimum request spacing override in
// seconds. Zero means no override.
type SpacingSource interface {
	IntervalSeconds(ctx context.Context, host string) int
}

// Throttle enforces a minimum spacing between requests to the same origin
// host across concurrent poll workers. One limiter per host; the limiter's
// reservation model covers both waiting and recording the request time.
type Throttle struct {
	defaultSpacing time.Duration
	source         SpacingSource

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewThrottle creates a Throttle with the given default spacing. source may
// be nil when no per-host overrides are configured.
func NewThrottle(defaultSpacing time.Duration, source SpacingSource) *Throttle {
	if defaultSpacing <= 0 {
		defaultSpacing = 2 * time.Second
	}
	return &Throttle{
		defaultSpacing: defaultSpacing,
		source:         source,
		limiters:       make(map[string]*rate.Limiter),
	}
}

// Wait blocks until enough time has elapsed since the last request to the
// URL's host, or the context is cancelled. Unparseable URLs pass through
// unthrottled; the fetch itself will report the error.
func (t *Throttle) Wait(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)
	if host == "" {
		return nil
	}
	return t.limiterFor(ctx, host).Wait(ctx)
}

func (t *Throttle) limiterFor(ctx context.Context, host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limiter, ok := t.limiters[host]; ok {
		return limiter
	}

	spacing := t.defaultSpacing
	if t.source != nil {
		if seconds := t.source.IntervalSeconds(ctx, host); seconds > 0 {
			spacing = time.Duration(seconds) * time.Second
		}
	}

	limiter := rate.NewLimiter(rate.Every(spacing), 1)
	t.limiters[host] = limiter
	return limiter
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
