// Package testutil provides a migrated on-disk test database and row seeding
// helpers for repository and pipeline tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skim/backend/internal/db"
	"skim/backend/internal/model"
	"skim/backend/internal/snowflake"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

func init() {
	// Repositories generate IDs through the package-level node.
	if err := snowflake.Init(1); err != nil {
		panic(err)
	}
}

// NewTestDB opens a fresh migrated database in the test's temp directory.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

// SeedUser inserts a user row and returns its ID.
func SeedUser(t *testing.T, database *sql.DB, username string) int64 {
	t.Helper()
	id := snowflake.NextID()
	_, err := database.Exec(
		`INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)`,
		id, username, now(),
	)
	require.NoError(t, err)
	return id
}

// SeedCategory inserts a category row and returns its ID.
func SeedCategory(t *testing.T, database *sql.DB, userID int64, name string) int64 {
	t.Helper()
	id := snowflake.NextID()
	_, err := database.Exec(
		`INSERT INTO categories (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		id, userID, name, now(),
	)
	require.NoError(t, err)
	return id
}

// SeedFeed inserts a feed row with sane defaults and returns its ID.
func SeedFeed(t *testing.T, database *sql.DB, feed model.Feed) int64 {
	t.Helper()
	id := snowflake.NextID()
	_, err := database.Exec(
		`INSERT INTO feeds (id, user_id, category_id, title, url, update_interval, consecutive_failures, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, feed.UserID, feed.CategoryID, feed.Title, feed.URL,
		feed.UpdateInterval, feed.ConsecutiveFailures, now(), now(),
	)
	require.NoError(t, err)
	return id
}

// SeedEntry inserts an entry row and returns its ID.
func SeedEntry(t *testing.T, database *sql.DB, entry model.Entry) int64 {
	t.Helper()
	id := snowflake.NextID()
	guid := entry.GUID
	if guid == "" {
		guid = "urn:test:" + time.Now().Format("150405.000000000")
	}
	_, err := database.Exec(
		`INSERT INTO entries (id, guid, link, title, author, content, content_hash, published_at, date_entered)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, guid, entry.Link, entry.Title, entry.Author, entry.Content,
		entry.ContentHash, formatTimePtr(entry.PublishedAt), now(),
	)
	require.NoError(t, err)
	return id
}

// SeedUserEntry inserts a user entry row and returns its ID.
func SeedUserEntry(t *testing.T, database *sql.DB, userID, entryID, feedID int64) int64 {
	t.Helper()
	id := snowflake.NextID()
	_, err := database.Exec(
		`INSERT INTO user_entries (id, user_id, entry_id, feed_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, entryID, feedID, now(),
	)
	require.NoError(t, err)
	return id
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
