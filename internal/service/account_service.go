package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"skim/backend/internal/logger"
	"skim/backend/internal/model"
	"skim/backend/internal/repository"
)

// AccountService manages the users and categories that anchor feed, filter
// and tag ownership. Authentication lives outside this service.
type AccountService interface {
	CreateUser(ctx context.Context, username string) (model.User, error)
	GetUser(ctx context.Context, id int64) (model.User, error)
	CreateCategory(ctx context.Context, userID int64, name string) (model.Category, error)
	ListCategories(ctx context.Context, userID int64) ([]model.Category, error)
}

type accountService struct {
	users      repository.UserRepository
	categories repository.CategoryRepository
}

func NewAccountService(users repository.UserRepository, categories repository.CategoryRepository) AccountService {
	return &accountService{users: users, categories: categories}
}

func (s *accountService) CreateUser(ctx context.Context, username string) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return model.User{}, ErrInvalid
	}
	user, err := s.users.Create(ctx, model.User{Username: username})
	if err != nil {
		// users.username is unique.
		if strings.Contains(err.Error(), "UNIQUE") {
			return model.User{}, ErrConflict
		}
		return model.User{}, err
	}
	logger.Info("user created",
		"module", "service", "action", "create", "resource", "user", "result", "ok",
		"user_id", user.ID, "username", username)
	return user, nil
}

func (s *accountService) GetUser(ctx context.Context, id int64) (model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func (s *accountService) CreateCategory(ctx context.Context, userID int64, name string) (model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, ErrInvalid
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return model.Category{}, err
	}
	return s.categories.Create(ctx, model.Category{UserID: userID, Name: name})
}

func (s *accountService) ListCategories(ctx context.Context, userID int64) ([]model.Category, error) {
	return s.categories.List(ctx, userID)
}
