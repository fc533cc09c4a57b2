package model

import "time"

// Entry is a deduplicated article shared by every subscriber of the feeds
// that produced it. GUID is unique system-wide.
type Entry struct {
	ID           int64
	GUID         string
	Link         *string
	Title        *string
	Author       *string
	Content      *string
	ContentHash  string
	PublishedAt  *time.Time
	UpdatedAtSrc *time.Time // the feed-supplied updated timestamp
	DateEntered  time.Time
}

// UserEntry is one user's view of an Entry via the Feed it arrived through.
type UserEntry struct {
	ID        int64
	UserID    int64
	EntryID   int64
	FeedID    int64
	Read      bool
	Starred   bool
	Published bool
	Score     int
	Note      *string
	CreatedAt time.Time
}
