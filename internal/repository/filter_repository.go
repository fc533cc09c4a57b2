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

type FilterRepository interface {
	// Create persists a filter with its rules and actions in one transaction
	// scope (caller supplies the dbtx).
	Create(ctx context.Context, filter model.Filter) (model.Filter, error)
	GetByID(ctx context.Context, id int64) (model.Filter, error)
	// ListEnabledByUser returns the user's enabled filters in evaluation order,
	// with rules and actions loaded.
	ListEnabledByUser(ctx context.Context, userID int64) ([]model.Filter, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Filter, error)
	UpdateLastTriggered(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

type filterRepository struct {
	db dbtx
}

func NewFilterRepository(db dbtx) FilterRepository {
	return &filterRepository{db: db}
}

func (r *filterRepository) Create(ctx context.Context, filter model.Filter) (model.Filter, error) {
	filter.ID = snowflake.NextID()
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO filters (id, user_id, title, enabled, match_any_rule, inverse, order_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		filter.ID,
		filter.UserID,
		filter.Title,
		boolToInt(filter.Enabled),
		boolToInt(filter.MatchAnyRule),
		boolToInt(filter.Inverse),
		filter.OrderID,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return model.Filter{}, fmt.Errorf("create filter: %w", err)
	}

	for i := range filter.Rules {
		rule := &filter.Rules[i]
		rule.ID = snowflake.NextID()
		rule.FilterID = filter.ID
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO filter_rules (id, filter_id, filter_type, pattern, inverse, feed_id, category_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rule.ID, rule.FilterID, string(rule.Type), rule.Pattern,
			boolToInt(rule.Inverse), nullableInt64(rule.FeedID), nullableInt64(rule.CategoryID),
		)
		if err != nil {
			return model.Filter{}, fmt.Errorf("create filter rule: %w", err)
		}
	}

	for i := range filter.Actions {
		action := &filter.Actions[i]
		action.ID = snowflake.NextID()
		action.FilterID = filter.ID
		if action.OrderID == 0 {
			action.OrderID = i
		}
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO filter_actions (id, filter_id, action_type, action_param, order_id)
			 VALUES (?, ?, ?, ?, ?)`,
			action.ID, action.FilterID, string(action.Type), action.Param, action.OrderID,
		)
		if err != nil {
			return model.Filter{}, fmt.Errorf("create filter action: %w", err)
		}
	}

	filter.CreatedAt = now
	filter.UpdatedAt = now
	return filter, nil
}

func (r *filterRepository) GetByID(ctx context.Context, id int64) (model.Filter, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, enabled, match_any_rule, inverse, order_id, last_triggered, created_at, updated_at
		 FROM filters WHERE id = ?`, id)
	filter, err := scanFilter(row)
	if err != nil {
		return model.Filter{}, err
	}
	if err := r.loadChildren(ctx, &filter); err != nil {
		return model.Filter{}, err
	}
	return filter, nil
}

func (r *filterRepository) ListEnabledByUser(ctx context.Context, userID int64) ([]model.Filter, error) {
	return r.listByUser(ctx, userID, true)
}

func (r *filterRepository) ListByUser(ctx context.Context, userID int64) ([]model.Filter, error) {
	return r.listByUser(ctx, userID, false)
}

func (r *filterRepository) listByUser(ctx context.Context, userID int64, enabledOnly bool) ([]model.Filter, error) {
	query := `SELECT id, user_id, title, enabled, match_any_rule, inverse, order_id, last_triggered, created_at, updated_at
	          FROM filters WHERE user_id = ?`
	if enabledOnly {
		query += ` AND enabled = 1`
	}
	query += ` ORDER BY order_id, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list filters: %w", err)
	}
	defer rows.Close()

	var filters []model.Filter
	for rows.Next() {
		filter, err := scanFilter(rows)
		if err != nil {
			return nil, err
		}
		filters = append(filters, filter)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range filters {
		if err := r.loadChildren(ctx, &filters[i]); err != nil {
			return nil, err
		}
	}
	return filters, nil
}

func (r *filterRepository) loadChildren(ctx context.Context, filter *model.Filter) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, filter_id, filter_type, pattern, inverse, feed_id, category_id
		 FROM filter_rules WHERE filter_id = ? ORDER BY id`, filter.ID)
	if err != nil {
		return fmt.Errorf("list filter rules: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rule model.FilterRule
		var ruleType string
		var feedID, categoryID sql.NullInt64
		if err := rows.Scan(&rule.ID, &rule.FilterID, &ruleType, &rule.Pattern, &rule.Inverse, &feedID, &categoryID); err != nil {
			return err
		}
		rule.Type = model.FilterRuleType(ruleType)
		if feedID.Valid {
			rule.FeedID = &feedID.Int64
		}
		if categoryID.Valid {
			rule.CategoryID = &categoryID.Int64
		}
		filter.Rules = append(filter.Rules, rule)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	actionRows, err := r.db.QueryContext(ctx,
		`SELECT id, filter_id, action_type, action_param, order_id
		 FROM filter_actions WHERE filter_id = ? ORDER BY order_id, id`, filter.ID)
	if err != nil {
		return fmt.Errorf("list filter actions: %w", err)
	}
	defer actionRows.Close()
	for actionRows.Next() {
		var action model.FilterAction
		var actionType string
		if err := actionRows.Scan(&action.ID, &action.FilterID, &actionType, &action.Param, &action.OrderID); err != nil {
			return err
		}
		action.Type = model.FilterActionType(actionType)
		filter.Actions = append(filter.Actions, action)
	}
	return actionRows.Err()
}

func (r *filterRepository) UpdateLastTriggered(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE filters SET last_triggered = ? WHERE id = ?`,
		formatTime(at), id,
	)
	return err
}

func (r *filterRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM filters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete filter: %w", err)
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

func scanFilter(s rowScanner) (model.Filter, error) {
	var f model.Filter
	var enabledInt, matchAnyInt, inverseInt int
	var lastTriggered sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(
		&f.ID, &f.UserID, &f.Title, &enabledInt, &matchAnyInt, &inverseInt,
		&f.OrderID, &lastTriggered, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Filter{}, err
		}
		return model.Filter{}, fmt.Errorf("scan filter: %w", err)
	}

	f.Enabled = enabledInt == 1
	f.MatchAnyRule = matchAnyInt == 1
	f.Inverse = inverseInt == 1
	f.LastTriggered = parseTimePtr(lastTriggered)
	f.CreatedAt, _ = parseTime(createdAt)
	f.UpdatedAt, _ = parseTime(updatedAt)

	return f, nil
}
