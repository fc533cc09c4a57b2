package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"skim/backend/internal/model"
	"skim/backend/internal/snowflake"
)

const feedColumns = `id, user_id, category_id, title, url, site_url, etag, last_modified,
	last_error, last_polled_at, last_successful_poll_at, last_update_started, last_new_entry_at,
	next_poll_at, calculated_interval_seconds, avg_posts_per_day, update_interval,
	consecutive_failures, retry_after, created_at, updated_at`

type FeedRepository interface {
	Create(ctx context.Context, feed model.Feed) (model.Feed, error)
	GetByID(ctx context.Context, id int64) (model.Feed, error)
	FindByUserAndURL(ctx context.Context, userID int64, url string) (*model.Feed, error)
	List(ctx context.Context, userID int64) ([]model.Feed, error)
	// ListByURL returns every subscription to the given URL across all users.
	ListByURL(ctx context.Context, url string) ([]model.Feed, error)
	// ListDue returns feeds eligible for polling at now: schedule elapsed (or
	// never polled), not in backoff, and no fetch in flight within the guard
	// window.
	ListDue(ctx context.Context, now time.Time, guard time.Duration) ([]model.Feed, error)
	// MarkUpdateStarted sets the in-flight guard timestamp.
	MarkUpdateStarted(ctx context.Context, id int64, now time.Time) error
	// UpdatePollState persists every field a poll cycle mutates and clears the
	// in-flight guard.
	UpdatePollState(ctx context.Context, feed model.Feed) error
	Update(ctx context.Context, feed model.Feed) (model.Feed, error)
	Delete(ctx context.Context, id int64) error
}

type feedRepository struct {
	db dbtx
}

func NewFeedRepository(db dbtx) FeedRepository {
	return &feedRepository{db: db}
}

func (r *feedRepository) Create(ctx context.Context, feed model.Feed) (model.Feed, error) {
	feed.ID = snowflake.NextID()
	now := time.Now().UTC()
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO feeds (id, user_id, category_id, title, url, site_url, etag, last_modified,
		   update_interval, consecutive_failures, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		feed.ID,
		feed.UserID,
		nullableInt64(feed.CategoryID),
		feed.Title,
		feed.URL,
		nullableString(feed.SiteURL),
		nullableString(feed.ETag),
		nullableString(feed.LastModified),
		feed.UpdateInterval,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return model.Feed{}, fmt.Errorf("create feed: %w", err)
	}
	feed.CreatedAt = now
	feed.UpdatedAt = now
	return feed, nil
}

func (r *feedRepository) GetByID(ctx context.Context, id int64) (model.Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)
	return scanFeedRow(row)
}

func (r *feedRepository) FindByUserAndURL(ctx context.Context, userID int64, url string) (*model.Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE user_id = ? AND url = ?`, userID, url)
	feed, err := scanFeedRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find feed: %w", err)
	}
	return &feed, nil
}

func (r *feedRepository) List(ctx context.Context, userID int64) ([]model.Feed, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE user_id = ? ORDER BY title`, userID)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	defer rows.Close()
	return collectFeeds(rows)
}

func (r *feedRepository) ListByURL(ctx context.Context, url string) ([]model.Feed, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE url = ?`, url)
	if err != nil {
		return nil, fmt.Errorf("list feeds by url: %w", err)
	}
	defer rows.Close()
	return collectFeeds(rows)
}

func (r *feedRepository) ListDue(ctx context.Context, now time.Time, guard time.Duration) ([]model.Feed, error) {
	nowStr := formatTime(now)
	staleStart := formatTime(now.Add(-guard))
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+feedColumns+` FROM feeds
		 WHERE (retry_after IS NULL OR retry_after <= ?)
		   AND (last_update_started IS NULL OR last_update_started <= ?)
		   AND (
		     (next_poll_at IS NOT NULL AND next_poll_at <= ?)
		     OR (next_poll_at IS NULL AND (
		       last_polled_at IS NULL
		       OR datetime(last_polled_at, '+' ||
		            (CASE WHEN update_interval > 0 THEN update_interval ELSE 15 END) || ' minutes') <= datetime(?)
		     ))
		   )
		 ORDER BY next_poll_at`,
		nowStr, staleStart, nowStr, nowStr,
	)
	if err != nil {
		return nil, fmt.Errorf("list due feeds: %w", err)
	}
	defer rows.Close()
	return collectFeeds(rows)
}

func (r *feedRepository) MarkUpdateStarted(ctx context.Context, id int64, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET last_update_started = ? WHERE id = ?`,
		formatTime(now), id,
	)
	return err
}

func (r *feedRepository) UpdatePollState(ctx context.Context, feed model.Feed) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET
		   title = ?, site_url = ?, etag = ?, last_modified = ?, last_error = ?,
		   last_polled_at = ?, last_successful_poll_at = ?, last_update_started = NULL,
		   last_new_entry_at = ?, next_poll_at = ?, calculated_interval_seconds = ?,
		   avg_posts_per_day = ?, consecutive_failures = ?, retry_after = ?, updated_at = ?
		 WHERE id = ?`,
		feed.Title,
		nullableString(feed.SiteURL),
		nullableString(feed.ETag),
		nullableString(feed.LastModified),
		nullableString(feed.LastError),
		nullableTime(feed.LastPolledAt),
		nullableTime(feed.LastSuccessfulPollAt),
		nullableTime(feed.LastNewEntryAt),
		nullableTime(feed.NextPollAt),
		nullableInt64(feed.CalculatedIntervalSeconds),
		nullableFloat64(feed.AvgPostsPerDay),
		feed.ConsecutiveFailures,
		nullableTime(feed.RetryAfter),
		formatTime(time.Now()),
		feed.ID,
	)
	if err != nil {
		return fmt.Errorf("update poll state: %w", err)
	}
	return nil
}

func (r *feedRepository) Update(ctx context.Context, feed model.Feed) (model.Feed, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`UPDATE feeds SET category_id = ?, title = ?, url = ?, site_url = ?, update_interval = ?, updated_at = ?
		 WHERE id = ?`,
		nullableInt64(feed.CategoryID),
		feed.Title,
		feed.URL,
		nullableString(feed.SiteURL),
		feed.UpdateInterval,
		formatTime(now),
		feed.ID,
	)
	if err != nil {
		return model.Feed{}, fmt.Errorf("update feed: %w", err)
	}
	feed.UpdatedAt = now
	return feed, nil
}

func (r *feedRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeed(s rowScanner) (model.Feed, error) {
	var f model.Feed
	var categoryID, calcInterval sql.NullInt64
	var siteURL, etag, lastModified, lastError sql.NullString
	var lastPolled, lastSuccess, lastStarted, lastNewEntry, nextPoll, retryAfter sql.NullString
	var avgPosts sql.NullFloat64
	var createdAt, updatedAt string

	err := s.Scan(
		&f.ID, &f.UserID, &categoryID, &f.Title, &f.URL, &siteURL, &etag, &lastModified,
		&lastError, &lastPolled, &lastSuccess, &lastStarted, &lastNewEntry,
		&nextPoll, &calcInterval, &avgPosts, &f.UpdateInterval,
		&f.ConsecutiveFailures, &retryAfter, &createdAt, &updatedAt,
	)
	if err != nil {
		return model.Feed{}, err
	}

	if categoryID.Valid {
		f.CategoryID = &categoryID.Int64
	}
	if siteURL.Valid {
		f.SiteURL = &siteURL.String
	}
	if etag.Valid {
		f.ETag = &etag.String
	}
	if lastModified.Valid {
		f.LastModified = &lastModified.String
	}
	if lastError.Valid {
		f.LastError = &lastError.String
	}
	f.LastPolledAt = parseTimePtr(lastPolled)
	f.LastSuccessfulPollAt = parseTimePtr(lastSuccess)
	f.LastUpdateStarted = parseTimePtr(lastStarted)
	f.LastNewEntryAt = parseTimePtr(lastNewEntry)
	f.NextPollAt = parseTimePtr(nextPoll)
	if calcInterval.Valid {
		f.CalculatedIntervalSeconds = &calcInterval.Int64
	}
	if avgPosts.Valid {
		f.AvgPostsPerDay = &avgPosts.Float64
	}
	f.RetryAfter = parseTimePtr(retryAfter)
	f.CreatedAt, _ = parseTime(createdAt)
	f.UpdatedAt, _ = parseTime(updatedAt)

	return f, nil
}

func scanFeedRow(row *sql.Row) (model.Feed, error) {
	return scanFeed(row)
}

func collectFeeds(rows *sql.Rows) ([]model.Feed, error) {
	var feeds []model.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feeds: %w", err)
	}
	return feeds, nil
}
