package service

import (
	"context"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"skim/backend/internal/logger"
	"skim/backend/internal/model"
	"skim/backend/internal/repository"
)

// DomainRateLimitDTO represents a domain rate limit for API responses.
type DomainRateLimitDTO struct {
	ID              string    `json:"id"`
	Host            string    `json:"host"`
	IntervalSeconds int       `json:"intervalSeconds"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// RFC 1123 compliant domain regex that requires at least one dot.
var domainPattern = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// isValidHost checks if the host is a valid IP, localhost, or a domain with at least one dot.
func isValidHost(host string) bool {
	host = strings.TrimSpace(host)
	if host == "" || len(host) > 253 {
		return false
	}
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return true
	}
	return domainPattern.MatchString(host)
}

// DomainRateLimitService manages per-host minimum request spacing. It also
// satisfies fetch.SpacingSource, feeding the poll workers' domain throttle.
type DomainRateLimitService interface {
	// IntervalSeconds returns the configured spacing for a host in seconds.
	// Returns 0 if not configured (default spacing applies).
	IntervalSeconds(ctx context.Context, host string) int
	// SetInterval creates or updates the spacing for a host.
	SetInterval(ctx context.Context, host string, seconds int) error
	// DeleteInterval removes the spacing configuration for a host.
	DeleteInterval(ctx context.Context, host string) error
	// List returns all configured domain rate limits.
	List(ctx context.Context) ([]DomainRateLimitDTO, error)
}

type domainRateLimitService struct {
	repo repository.DomainRateLimitRepository
}

func NewDomainRateLimitService(repo repository.DomainRateLimitRepository) DomainRateLimitService {
	return &domainRateLimitService{repo: repo}
}

func (s *domainRateLimitService) IntervalSeconds(ctx context.Context, host string) int {
	limit, err := s.repo.GetByHost(ctx, host)
	if err == nil && limit != nil {
		return limit.IntervalSeconds
	}
	return 0
}

func (s *domainRateLimitService) SetInterval(ctx context.Context, host string, seconds int) error {
	if !isValidHost(host) {
		return ErrInvalid
	}
	if seconds < 0 {
		seconds = 0
	}

	existing, err := s.repo.GetByHost(ctx, host)
	if err != nil {
		return err
	}

	if existing != nil {
		if err := s.repo.Update(ctx, host, seconds); err != nil {
			logger.Error("domain rate limit update failed", "module", "service", "action", "update", "resource", "domain_rate_limit", "result", "failed", "host", host, "error", err)
			return err
		}
		logger.Info("domain rate limit updated", "module", "service", "action", "update", "resource", "domain_rate_limit", "result", "ok", "host", host, "interval_seconds", seconds)
		return nil
	}
	if _, err := s.repo.Create(ctx, host, seconds); err != nil {
		logger.Error("domain rate limit create failed", "module", "service", "action", "create", "resource", "domain_rate_limit", "result", "failed", "host", host, "error", err)
		return err
	}
	logger.Info("domain rate limit created", "module", "service", "action", "create", "resource", "domain_rate_limit", "result", "ok", "host", host, "interval_seconds", seconds)
	return nil
}

func (s *domainRateLimitService) DeleteInterval(ctx context.Context, host string) error {
	if err := s.repo.Delete(ctx, host); err != nil {
		logger.Error("domain rate limit delete failed", "module", "service", "action", "delete", "resource", "domain_rate_limit", "result", "failed", "host", host, "error", err)
		return err
	}
	logger.Info("domain rate limit deleted", "module", "service", "action", "delete", "resource", "domain_rate_limit", "result", "ok", "host", host)
	return nil
}

func (s *domainRateLimitService) List(ctx context.Context) ([]DomainRateLimitDTO, error) {
	limits, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	dtos := make([]DomainRateLimitDTO, len(limits))
	for i, limit := range limits {
		dtos[i] = rateLimitToDTO(limit)
	}
	return dtos, nil
}

func rateLimitToDTO(m model.DomainRateLimit) DomainRateLimitDTO {
	return DomainRateLimitDTO{
		ID:              strconv.FormatInt(m.ID, 10),
		Host:            m.Host,
		IntervalSeconds: m.IntervalSeconds,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
