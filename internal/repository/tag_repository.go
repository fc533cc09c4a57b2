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

type TagRepository interface {
	Create(ctx context.Context, tag model.Tag) (model.Tag, error)
	GetByID(ctx context.Context, id int64) (model.Tag, error)
	FindByName(ctx context.Context, userID int64, name string) (*model.Tag, error)
	// LinkEntry attaches the tag to the entry. Idempotent.
	LinkEntry(ctx context.Context, entryID, tagID int64) error
	UnlinkEntry(ctx context.Context, entryID, tagID int64) error
	IsLinked(ctx context.Context, entryID, tagID int64) (bool, error)
}

type tagRepository struct {
	db dbtx
}

func NewTagRepository(db dbtx) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) Create(ctx context.Context, tag model.Tag) (model.Tag, error) {
	tag.ID = snowflake.NextID()
	now := time.Now().UTC()
	if tag.FgColor == "" {
		tag.FgColor = model.DefaultTagFgColor
	}
	if tag.BgColor == "" {
		tag.BgColor = model.DefaultTagBgColor
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tags (id, user_id, name, fg_color, bg_color, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tag.ID, tag.UserID, tag.Name, tag.FgColor, tag.BgColor, formatTime(now),
	)
	if err != nil {
		return model.Tag{}, fmt.Errorf("create tag: %w", err)
	}
	tag.CreatedAt = now
	return tag, nil
}

func (r *tagRepository) GetByID(ctx context.Context, id int64) (model.Tag, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, fg_color, bg_color, created_at FROM tags WHERE id = ?`, id)
	return scanTag(row)
}

func (r *tagRepository) FindByName(ctx context.Context, userID int64, name string) (*model.Tag, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, fg_color, bg_color, created_at FROM tags WHERE user_id = ? AND name = ?`,
		userID, name)
	tag, err := scanTag(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find tag: %w", err)
	}
	return &tag, nil
}

func (r *tagRepository) LinkEntry(ctx context.Context, entryID, tagID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entry_tags (entry_id, tag_id) VALUES (?, ?)
		 ON CONFLICT(entry_id, tag_id) DO NOTHING`,
		entryID, tagID,
	)
	if err != nil {
		return fmt.Errorf("link entry tag: %w", err)
	}
	return nil
}

func (r *tagRepository) UnlinkEntry(ctx context.Context, entryID, tagID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM entry_tags WHERE entry_id = ? AND tag_id = ?`,
		entryID, tagID,
	)
	return err
}

func (r *tagRepository) IsLinked(ctx context.Context, entryID, tagID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM entry_tags WHERE entry_id = ? AND tag_id = ?`,
		entryID, tagID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanTag(s rowScanner) (model.Tag, error) {
	var t model.Tag
	var createdAt string
	if err := s.Scan(&t.ID, &t.UserID, &t.Name, &t.FgColor, &t.BgColor, &createdAt); err != nil {
		return model.Tag{}, err
	}
	t.CreatedAt, _ = parseTime(createdAt)
	return t, nil
}
