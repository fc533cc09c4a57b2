// Package fetch performs conditional HTTP fetches of feed documents and
// enforces per-host request spacing.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"skim/backend/internal/config"
)

// Status classifies the outcome of a fetch.
type Status string

const (
	StatusOK          Status = "ok"
	StatusNotModified Status = "not_modified"
	StatusRateLimited Status = "rate_limited"
	StatusError       Status = "error"
)

// maxBodySize caps feed payloads at 5 MiB.
const maxBodySize = 5 * 1024 * 1024

// Result is the outcome of one fetch. Fetch never returns a Go error across
// this boundary; failures are reported as StatusError with a message so one
// feed's failure cannot abort another feed's cycle.
type Result struct {
	Status       Status
	Body         []byte
	ETag         string
	LastModified string
	RetryAfter   *time.Time
	HTTPStatus   int
	ErrorMessage string
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches feed documents with conditional GET semantics.
type Client struct {
	client    HTTPClient
	userAgent string
}

// NewClient creates a Client. A nil httpClient gets a default with the given
// timeout; a hung fetch must not hold a worker slot indefinitely.
func NewClient(httpClient HTTPClient, timeout time.Duration) *Client {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		client:    httpClient,
		userAgent: config.UserAgent,
	}
}

// Fetch performs a conditional GET against url. When etag or lastModified are
// non-empty they are sent as If-None-Match / If-Modified-Since.
func (c *Client) Fetch(ctx context.Context, url, etag, lastModified string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Status: StatusError, ErrorMessage: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{Status: StatusError, ErrorMessage: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return Result{Status: StatusNotModified, HTTPStatus: resp.StatusCode}

	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusServiceUnavailable && resp.Header.Get("Retry-After") != "":
		return Result{
			Status:       StatusRateLimited,
			HTTPStatus:   resp.StatusCode,
			RetryAfter:   parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			ErrorMessage: fmt.Sprintf("HTTP %d", resp.StatusCode),
		}

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Result{
			Status:       StatusError,
			HTTPStatus:   resp.StatusCode,
			ErrorMessage: fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Result{
			Status:       StatusError,
			HTTPStatus:   resp.StatusCode,
			ErrorMessage: fmt.Sprintf("read body: %v", err),
		}
	}

	return Result{
		Status:       StatusOK,
		Body:         body,
		ETag:         strings.TrimSpace(resp.Header.Get("ETag")),
		LastModified: strings.TrimSpace(resp.Header.Get("Last-Modified")),
		HTTPStatus:   resp.StatusCode,
	}
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string, now time.Time) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return nil
		}
		t := now.Add(time.Duration(seconds) * time.Second)
		return &t
	}
	if t, err := http.ParseTime(value); err == nil {
		return &t
	}
	return nil
}
