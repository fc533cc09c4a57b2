package model

import "time"

// DomainRateLimit overrides the default minimum spacing between requests to
// one origin host.
type DomainRateLimit struct {
	ID              int64
	Host            string
	IntervalSeconds int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
