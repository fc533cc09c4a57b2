package model

import "time"

// User rows anchor ownership of feeds, filters and tags. Account management
// lives outside this service.
type User struct {
	ID        int64
	Username  string
	CreatedAt time.Time
}

type Category struct {
	ID        int64
	UserID    int64
	Name      string
	CreatedAt time.Time
}
