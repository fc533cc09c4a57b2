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

type DomainRateLimitRepository interface {
	Create(ctx context.Context, host string, intervalSeconds int) (model.DomainRateLimit, error)
	GetByHost(ctx context.Context, host string) (*model.DomainRateLimit, error)
	Update(ctx context.Context, host string, intervalSeconds int) error
	Delete(ctx context.Context, host string) error
	List(ctx context.Context) ([]model.DomainRateLimit, error)
}

type domainRateLimitRepository struct {
	db dbtx
}

func NewDomainRateLimitRepository(db dbtx) DomainRateLimitRepository {
	return &domainRateLimitRepository{db: db}
}

func (r *domainRateLimitRepository) Create(ctx context.Context, host string, intervalSeconds int) (model.DomainRateLimit, error) {
	limit := model.DomainRateLimit{
		ID:              snowflake.NextID(),
		Host:            host,
		IntervalSeconds: intervalSeconds,
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO domain_rate_limits (id, host, interval_seconds, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		limit.ID, limit.Host, limit.IntervalSeconds, formatTime(now), formatTime(now),
	)
	if err != nil {
		return model.DomainRateLimit{}, fmt.Errorf("create domain rate limit: %w", err)
	}
	limit.CreatedAt = now
	limit.UpdatedAt = now
	return limit, nil
}

func (r *domainRateLimitRepository) GetByHost(ctx context.Context, host string) (*model.DomainRateLimit, error) {
	var limit model.DomainRateLimit
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, host, interval_seconds, created_at, updated_at FROM domain_rate_limits WHERE host = ?`,
		host,
	).Scan(&limit.ID, &limit.Host, &limit.IntervalSeconds, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get domain rate limit: %w", err)
	}
	limit.CreatedAt, _ = parseTime(createdAt)
	limit.UpdatedAt, _ = parseTime(updatedAt)
	return &limit, nil
}

func (r *domainRateLimitRepository) Update(ctx context.Context, host string, intervalSeconds int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE domain_rate_limits SET interval_seconds = ?, updated_at = ? WHERE host = ?`,
		intervalSeconds, formatTime(time.Now()), host,
	)
	return err
}

func (r *domainRateLimitRepository) Delete(ctx context.Context, host string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM domain_rate_limits WHERE host = ?`, host)
	return err
}

func (r *domainRateLimitRepository) List(ctx context.Context) ([]model.DomainRateLimit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, host, interval_seconds, created_at, updated_at FROM domain_rate_limits ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("list domain rate limits: %w", err)
	}
	defer rows.Close()

	var limits []model.DomainRateLimit
	for rows.Next() {
		var limit model.DomainRateLimit
		var createdAt, updatedAt string
		if err := rows.Scan(&limit.ID, &limit.Host, &limit.IntervalSeconds, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		limit.CreatedAt, _ = parseTime(createdAt)
		limit.UpdatedAt, _ = parseTime(updatedAt)
		limits = append(limits, limit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return limits, nil
}
