package repository

import (
	"context"
	"fmt"
	"time"

	"skim/backend/internal/model"
	"skim/backend/internal/snowflake"
)

type CategoryRepository interface {
	Create(ctx context.Context, category model.Category) (model.Category, error)
	GetByID(ctx context.Context, id int64) (model.Category, error)
	List(ctx context.Context, userID int64) ([]model.Category, error)
}

type categoryRepository struct {
	db dbtx
}

func NewCategoryRepository(db dbtx) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, category model.Category) (model.Category, error) {
	category.ID = snowflake.NextID()
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		category.ID, category.UserID, category.Name, formatTime(now),
	)
	if err != nil {
		return model.Category{}, fmt.Errorf("create category: %w", err)
	}
	category.CreatedAt = now
	return category, nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id int64) (model.Category, error) {
	var c model.Category
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.UserID, &c.Name, &createdAt)
	if err != nil {
		return model.Category{}, err
	}
	c.CreatedAt, _ = parseTime(createdAt)
	return c, nil
}

func (r *categoryRepository) List(ctx context.Context, userID int64) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, created_at FROM categories WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		var createdAt string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = parseTime(createdAt)
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}
