package model

import "time"

const (
	DefaultTagFgColor = "#ffffff"
	DefaultTagBgColor = "#3a87ad"
)

type Tag struct {
	ID        int64
	UserID    int64
	Name      string
	FgColor   string
	BgColor   string
	CreatedAt time.Time
}
