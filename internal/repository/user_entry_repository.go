package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"skim/backend/internal/model"
	"skim/backend/internal/snowflake"
)

const userEntryColumns = `id, user_id, entry_id, feed_id, read, starred, published, score, note, created_at`

// UserEntryListFilter narrows a backfill or listing query.
type UserEntryListFilter struct {
	FeedID     *int64
	CategoryID *int64
	Limit      int
	Offset     int
}

type UserEntryRepository interface {
	Create(ctx context.Context, ue model.UserEntry) (model.UserEntry, error)
	GetByID(ctx context.Context, id int64) (model.UserEntry, error)
	// ExistsForUser reports whether the user already has a view of the entry,
	// regardless of which feed produced it.
	ExistsForUser(ctx context.Context, userID, entryID int64) (bool, error)
	ListByUser(ctx context.Context, userID int64, filter UserEntryListFilter) ([]model.UserEntry, error)
	UpdateRead(ctx context.Context, id int64, read bool) error
	UpdateStarred(ctx context.Context, id int64, starred bool) error
	UpdatePublished(ctx context.Context, id int64, published bool) error
	// AddScore applies a signed delta to the entry's score.
	AddScore(ctx context.Context, id int64, delta int) error
	Delete(ctx context.Context, id int64) error
}

type userEntryRepository struct {
	db dbtx
}

func NewUserEntryRepository(db dbtx) UserEntryRepository {
	return &userEntryRepository{db: db}
}

func (r *userEntryRepository) Create(ctx context.Context, ue model.UserEntry) (model.UserEntry, error) {
	ue.ID = snowflake.NextID()
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_entries (id, user_id, entry_id, feed_id, read, starred, published, score, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ue.ID,
		ue.UserID,
		ue.EntryID,
		ue.FeedID,
		boolToInt(ue.Read),
		boolToInt(ue.Starred),
		boolToInt(ue.Published),
		ue.Score,
		nullableString(ue.Note),
		formatTime(now),
	)
	if err != nil {
		return model.UserEntry{}, fmt.Errorf("create user entry: %w", err)
	}
	ue.CreatedAt = now
	return ue, nil
}

func (r *userEntryRepository) GetByID(ctx context.Context, id int64) (model.UserEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userEntryColumns+` FROM user_entries WHERE id = ?`, id)
	return scanUserEntry(row)
}

func (r *userEntryRepository) ExistsForUser(ctx context.Context, userID, entryID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM user_entries WHERE user_id = ? AND entry_id = ?`,
		userID, entryID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user entry: %w", err)
	}
	return true, nil
}

func (r *userEntryRepository) ListByUser(ctx context.Context, userID int64, filter UserEntryListFilter) ([]model.UserEntry, error) {
	query := `SELECT ue.id, ue.user_id, ue.entry_id, ue.feed_id, ue.read, ue.starred, ue.published, ue.score, ue.note, ue.created_at
	          FROM user_entries ue`
	args := []interface{}{}
	conditions := []string{"ue.user_id = ?"}
	args = append(args, userID)

	if filter.CategoryID != nil {
		query += " INNER JOIN feeds f ON ue.feed_id = f.id"
		conditions = append(conditions, "f.category_id = ?")
		args = append(args, *filter.CategoryID)
	}
	if filter.FeedID != nil {
		conditions = append(conditions, "ue.feed_id = ?")
		args = append(args, *filter.FeedID)
	}

	query += " WHERE " + strings.Join(conditions, " AND ")
	query += " ORDER BY ue.created_at DESC, ue.id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list user entries: %w", err)
	}
	defer rows.Close()

	var entries []model.UserEntry
	for rows.Next() {
		ue, err := scanUserEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ue)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *userEntryRepository) UpdateRead(ctx context.Context, id int64, read bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE user_entries SET read = ? WHERE id = ?`, boolToInt(read), id)
	return err
}

func (r *userEntryRepository) UpdateStarred(ctx context.Context, id int64, starred bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE user_entries SET starred = ? WHERE id = ?`, boolToInt(starred), id)
	return err
}

func (r *userEntryRepository) UpdatePublished(ctx context.Context, id int64, published bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE user_entries SET published = ? WHERE id = ?`, boolToInt(published), id)
	return err
}

func (r *userEntryRepository) AddScore(ctx context.Context, id int64, delta int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE user_entries SET score = score + ? WHERE id = ?`, delta, id)
	return err
}

func (r *userEntryRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_entries WHERE id = ?`, id)
	return err
}

func scanUserEntry(s rowScanner) (model.UserEntry, error) {
	var ue model.UserEntry
	var readInt, starredInt, publishedInt int
	var note sql.NullString
	var createdAt string

	err := s.Scan(
		&ue.ID, &ue.UserID, &ue.EntryID, &ue.FeedID,
		&readInt, &starredInt, &publishedInt, &ue.Score, &note, &createdAt,
	)
	if err != nil {
		return model.UserEntry{}, err
	}

	ue.Read = readInt == 1
	ue.Starred = starredInt == 1
	ue.Published = publishedInt == 1
	if note.Valid {
		ue.Note = &note.String
	}
	ue.CreatedAt, _ = parseTime(createdAt)

	return ue, nil
}
