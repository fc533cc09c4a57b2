package db

import (
	"database/sql"
	"fmt"
)

// Base schema - uses Snowflake IDs (no AUTOINCREMENT)
const baseSchema = `
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
  id INTEGER PRIMARY KEY,
  user_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  created_at TEXT NOT NULL,
  FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_categories_user_id ON categories(user_id);

CREATE TABLE IF NOT EXISTS feeds (
  id INTEGER PRIMARY KEY,
  user_id INTEGER NOT NULL,
  category_id INTEGER,
  title TEXT NOT NULL,
  url TEXT NOT NULL,
  site_url TEXT,
  etag TEXT,
  last_modified TEXT,
  last_error TEXT,
  last_polled_at TEXT,
  last_successful_poll_at TEXT,
  last_update_started TEXT,
  last_new_entry_at TEXT,
  next_poll_at TEXT,
  calculated_interval_seconds INTEGER,
  avg_posts_per_day REAL,
  update_interval INTEGER NOT NULL DEFAULT 0,
  consecutive_failures INTEGER NOT NULL DEFAULT 0,
  retry_after TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
  FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE SET NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_feeds_user_url ON feeds(user_id, url);
CREATE INDEX IF NOT EXISTS idx_feeds_next_poll_at ON feeds(next_poll_at);
CREATE INDEX IF NOT EXISTS idx_feeds_url ON feeds(url);

CREATE TABLE IF NOT EXISTS entries (
  id INTEGER PRIMARY KEY,
  guid TEXT NOT NULL UNIQUE,
  link TEXT,
  title TEXT,
  author TEXT,
  content TEXT,
  content_hash TEXT NOT NULL,
  published_at TEXT,
  updated_at_src TEXT,
  date_entered TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_published_at ON entries(published_at);

CREATE TABLE IF NOT EXISTS feed_entries (
  feed_id INTEGER NOT NULL,
  entry_id INTEGER NOT NULL,
  PRIMARY KEY (feed_id, entry_id),
  FOREIGN KEY (feed_id) REFERENCES feeds(id) ON DELETE CASCADE,
  FOREIGN KEY (entry_id) REFERENCES entries(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS user_entries (
  id INTEGER PRIMARY KEY,
  user_id INTEGER NOT NULL,
  entry_id INTEGER NOT NULL,
  feed_id INTEGER NOT NULL,
  read INTEGER NOT NULL DEFAULT 0,
  starred INTEGER NOT NULL DEFAULT 0,
  published INTEGER NOT NULL DEFAULT 0,
  score INTEGER NOT NULL DEFAULT 0,
  note TEXT,
  created_at TEXT NOT NULL,
  FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
  FOREIGN KEY (entry_id) REFERENCES entries(id) ON DELETE CASCADE,
  FOREIGN KEY (feed_id) REFERENCES feeds(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_user_entries_user_entry ON user_entries(user_id, entry_id);
CREATE INDEX IF NOT EXISTS idx_user_entries_feed_id ON user_entries(feed_id);

CREATE TABLE IF NOT EXISTS tags (
  id INTEGER PRIMARY KEY,
  user_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  fg_color TEXT NOT NULL DEFAULT '#ffffff',
  bg_color TEXT NOT NULL DEFAULT '#3a87ad',
  created_at TEXT NOT NULL,
  FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_user_name ON tags(user_id, name);

CREATE TABLE IF NOT EXISTS entry_tags (
  entry_id INTEGER NOT NULL,
  tag_id INTEGER NOT NULL,
  PRIMARY KEY (entry_id, tag_id),
  FOREIGN KEY (entry_id) REFERENCES entries(id) ON DELETE CASCADE,
  FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS filters (
  id INTEGER PRIMARY KEY,
  user_id INTEGER NOT NULL,
  title TEXT NOT NULL,
  enabled INTEGER NOT NULL DEFAULT 1,
  match_any_rule INTEGER NOT NULL DEFAULT 0,
  inverse INTEGER NOT NULL DEFAULT 0,
  order_id INTEGER NOT NULL DEFAULT 0,
  last_triggered TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_filters_user_id ON filters(user_id);

CREATE TABLE IF NOT EXISTS filter_rules (
  id INTEGER PRIMARY KEY,
  filter_id INTEGER NOT NULL,
  filter_type TEXT NOT NULL,
  pattern TEXT NOT NULL,
  inverse INTEGER NOT NULL DEFAULT 0,
  feed_id INTEGER,
  category_id INTEGER,
  FOREIGN KEY (filter_id) REFERENCES filters(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_filter_rules_filter_id ON filter_rules(filter_id);

CREATE TABLE IF NOT EXISTS filter_actions (
  id INTEGER PRIMARY KEY,
  filter_id INTEGER NOT NULL,
  action_type TEXT NOT NULL,
  action_param TEXT NOT NULL DEFAULT '',
  order_id INTEGER NOT NULL DEFAULT 0,
  FOREIGN KEY (filter_id) REFERENCES filters(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_filter_actions_filter_id ON filter_actions(filter_id);

CREATE TABLE IF NOT EXISTS domain_rate_limits (
  id INTEGER PRIMARY KEY,
  host TEXT NOT NULL UNIQUE,
  interval_seconds INTEGER NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`

func Migrate(db *sql.DB) error {
	if _, err := db.Exec(baseSchema); err != nil {
		return fmt.Errorf("migrate base schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func runMigrations(db *sql.DB) error {
	// Migration 1: Add note column to user_entries if not exists (pre-1.0 schema)
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info('user_entries') WHERE name = 'note'
	`).Scan(&count)
	if err != nil {
		return fmt.Errorf("check note column: %w", err)
	}
	if count == 0 {
		if _, err := db.Exec(`ALTER TABLE user_entries ADD COLUMN note TEXT`); err != nil {
			return fmt.Errorf("add note column: %w", err)
		}
	}

	// Migration 2: Indexes used by the due-feed selection and unread listing
	// (safe to run even if they exist).
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_feeds_retry_after ON feeds(retry_after)`); err != nil {
		return fmt.Errorf("create idx_feeds_retry_after: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_user_entries_user_read ON user_entries(user_id, read)`); err != nil {
		return fmt.Errorf("create idx_user_entries_user_read: %w", err)
	}

	return nil
}
