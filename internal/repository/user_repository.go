package repository

import (
	"context"
	"fmt"
	"time"

	"skim/backend/internal/model"
	"skim/backend/internal/snowflake"
)

type UserRepository interface {
	Create(ctx context.Context, user model.User) (model.User, error)
	GetByID(ctx context.Context, id int64) (model.User, error)
}

type userRepository struct {
	db dbtx
}

func NewUserRepository(db dbtx) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	user.ID = snowflake.NextID()
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)`,
		user.ID, user.Username, formatTime(now),
	)
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	user.CreatedAt = now
	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Username, &createdAt)
	if err != nil {
		return model.User{}, err
	}
	u.CreatedAt, _ = parseTime(createdAt)
	return u, nil
}
