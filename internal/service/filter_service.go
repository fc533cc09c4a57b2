package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"skim/backend/internal/logger"
	"skim/backend/internal/model"
	"skim/backend/internal/repository"
)

type FilterService interface {
	Create(ctx context.Context, filter model.Filter) (model.Filter, error)
	Get(ctx context.Context, id int64) (model.Filter, error)
	List(ctx context.Context, userID int64) ([]model.Filter, error)
	Delete(ctx context.Context, id int64) error
}

type filterService struct {
	filters repository.FilterRepository
}

func NewFilterService(filters repository.FilterRepository) FilterService {
	return &filterService{filters: filters}
}

var validRuleTypes = map[model.FilterRuleType]bool{
	model.RuleTitle:   true,
	model.RuleContent: true,
	model.RuleBoth:    true,
	model.RuleLink:    true,
	model.RuleDate:    true,
	model.RuleAuthor:  true,
	model.RuleTag:     true,
}

var validActionTypes = map[model.FilterActionType]bool{
	model.ActionMarkRead:  true,
	model.ActionDelete:    true,
	model.ActionStar:      true,
	model.ActionPublish:   true,
	model.ActionScore:     true,
	model.ActionTag:       true,
	model.ActionLabel:     true,
	model.ActionStop:      true,
	model.ActionIgnoreTag: true,
	model.ActionPlugin:    true,
}

func (s *filterService) Create(ctx context.Context, filter model.Filter) (model.Filter, error) {
	if strings.TrimSpace(filter.Title) == "" {
		return model.Filter{}, ErrInvalid
	}
	for _, rule := range filter.Rules {
		if !validRuleTypes[rule.Type] || strings.TrimSpace(rule.Pattern) == "" {
			return model.Filter{}, ErrInvalid
		}
	}
	for _, action := range filter.Actions {
		if !validActionTypes[action.Type] {
			return model.Filter{}, ErrInvalid
		}
		if action.Type == model.ActionScore {
			if _, err := strconv.Atoi(strings.TrimSpace(action.Param)); err != nil {
				return model.Filter{}, ErrInvalid
			}
		}
	}

	created, err := s.filters.Create(ctx, filter)
	if err != nil {
		logger.Error("filter create failed",
			"module", "service", "action", "create", "resource", "filter", "result", "failed",
			"user_id", filter.UserID, "error", err)
		return model.Filter{}, err
	}
	logger.Info("filter created",
		"module", "service", "action", "create", "resource", "filter", "result", "ok",
		"filter_id", created.ID, "rules", len(created.Rules), "actions", len(created.Actions))
	return created, nil
}

func (s *filterService) Get(ctx context.Context, id int64) (model.Filter, error) {
	filter, err := s.filters.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Filter{}, ErrNotFound
		}
		return model.Filter{}, err
	}
	return filter, nil
}

func (s *filterService) List(ctx context.Context, userID int64) ([]model.Filter, error) {
	return s.filters.ListByUser(ctx, userID)
}

func (s *filterService) Delete(ctx context.Context, id int64) error {
	err := s.filters.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
