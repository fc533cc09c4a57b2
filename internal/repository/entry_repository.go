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

const entryColumns = `id, guid, link, title, author, content, content_hash, published_at, updated_at_src, date_entered`

type EntryRepository interface {
	Create(ctx context.Context, entry model.Entry) (model.Entry, error)
	GetByID(ctx context.Context, id int64) (model.Entry, error)
	FindByGUID(ctx context.Context, guid string) (*model.Entry, error)
	// UpdateContent rewrites an existing entry in place when the same GUID
	// reappears with different content.
	UpdateContent(ctx context.Context, entry model.Entry) error
	// LinkFeed records that the feed produced the entry. Idempotent.
	LinkFeed(ctx context.Context, feedID, entryID int64) error
	// CountPublishedSince counts the feed's entries published after the cutoff,
	// the input to the adaptive posts-per-day estimate.
	CountPublishedSince(ctx context.Context, feedID int64, cutoff time.Time) (int, error)
	// TagNames returns the names of tags currently linked to the entry.
	TagNames(ctx context.Context, entryID int64) ([]string, error)
}

type entryRepository struct {
	db dbtx
}

func NewEntryRepository(db dbtx) EntryRepository {
	return &entryRepository{db: db}
}

func (r *entryRepository) Create(ctx context.Context, entry model.Entry) (model.Entry, error) {
	entry.ID = snowflake.NextID()
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entries (id, guid, link, title, author, content, content_hash, published_at, updated_at_src, date_entered)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.GUID,
		nullableString(entry.Link),
		nullableString(entry.Title),
		nullableString(entry.Author),
		nullableString(entry.Content),
		entry.ContentHash,
		nullableTime(entry.PublishedAt),
		nullableTime(entry.UpdatedAtSrc),
		formatTime(now),
	)
	if err != nil {
		return model.Entry{}, fmt.Errorf("create entry: %w", err)
	}
	entry.DateEntered = now
	return entry, nil
}

func (r *entryRepository) GetByID(ctx context.Context, id int64) (model.Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	return scanEntry(row)
}

func (r *entryRepository) FindByGUID(ctx context.Context, guid string) (*model.Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE guid = ?`, guid)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find entry: %w", err)
	}
	return &entry, nil
}

func (r *entryRepository) UpdateContent(ctx context.Context, entry model.Entry) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE entries SET link = ?, title = ?, author = ?, content = ?, content_hash = ?, published_at = ?, updated_at_src = ?
		 WHERE id = ?`,
		nullableString(entry.Link),
		nullableString(entry.Title),
		nullableString(entry.Author),
		nullableString(entry.Content),
		entry.ContentHash,
		nullableTime(entry.PublishedAt),
		nullableTime(entry.UpdatedAtSrc),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update entry content: %w", err)
	}
	return nil
}

func (r *entryRepository) LinkFeed(ctx context.Context, feedID, entryID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feed_entries (feed_id, entry_id) VALUES (?, ?)
		 ON CONFLICT(feed_id, entry_id) DO NOTHING`,
		feedID, entryID,
	)
	if err != nil {
		return fmt.Errorf("link feed entry: %w", err)
	}
	return nil
}

func (r *entryRepository) CountPublishedSince(ctx context.Context, feedID int64, cutoff time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries e
		 INNER JOIN feed_entries fe ON fe.entry_id = e.id
		 WHERE fe.feed_id = ? AND e.published_at IS NOT NULL AND e.published_at >= ?`,
		feedID, formatTime(cutoff),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count published entries: %w", err)
	}
	return count, nil
}

func (r *entryRepository) TagNames(ctx context.Context, entryID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.name FROM tags t
		 INNER JOIN entry_tags et ON et.tag_id = t.id
		 WHERE et.entry_id = ? ORDER BY t.name`,
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entry tags: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func scanEntry(s rowScanner) (model.Entry, error) {
	var e model.Entry
	var link, title, author, content sql.NullString
	var publishedAt, updatedAtSrc sql.NullString
	var dateEntered string

	err := s.Scan(
		&e.ID, &e.GUID, &link, &title, &author, &content, &e.ContentHash,
		&publishedAt, &updatedAtSrc, &dateEntered,
	)
	if err != nil {
		return model.Entry{}, err
	}

	if link.Valid {
		e.Link = &link.String
	}
	if title.Valid {
		e.Title = &title.String
	}
	if author.Valid {
		e.Author = &author.String
	}
	if content.Valid {
		e.Content = &content.String
	}
	e.PublishedAt = parseTimePtr(publishedAt)
	e.UpdatedAtSrc = parseTimePtr(updatedAtSrc)
	e.DateEntered, _ = parseTime(dateEntered)

	return e, nil
}
