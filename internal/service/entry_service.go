package service

import (
	"context"

	"skim/backend/internal/model"
	"skim/backend/internal/repository"
)

const (
	defaultEntryPageSize = 50
	maxEntryPageSize     = 200
)

// EntryListOptions narrows a user's entry listing.
type EntryListOptions struct {
	FeedID     *int64
	CategoryID *int64
	Limit      int
	Offset     int
}

// EntryListItem pairs a user's view of an article with the shared article row.
type EntryListItem struct {
	UserEntry model.UserEntry
	Entry     model.Entry
}

type EntryService interface {
	ListForUser(ctx context.Context, userID int64, opts EntryListOptions) ([]EntryListItem, error)
}

type entryService struct {
	userEntries repository.UserEntryRepository
	entries     repository.EntryRepository
}

func NewEntryService(userEntries repository.UserEntryRepository, entries repository.EntryRepository) EntryService {
	return &entryService{userEntries: userEntries, entries: entries}
}

func (s *entryService) ListForUser(ctx context.Context, userID int64, opts EntryListOptions) ([]EntryListItem, error) {
	if opts.Limit <= 0 || opts.Limit > maxEntryPageSize {
		opts.Limit = defaultEntryPageSize
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	userEntries, err := s.userEntries.ListByUser(ctx, userID, repository.UserEntryListFilter{
		FeedID:     opts.FeedID,
		CategoryID: opts.CategoryID,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	})
	if err != nil {
		return nil, err
	}

	items := make([]EntryListItem, 0, len(userEntries))
	for _, ue := range userEntries {
		entry, err := s.entries.GetByID(ctx, ue.EntryID)
		if err != nil {
			return nil, err
		}
		items = append(items, EntryListItem{UserEntry: ue, Entry: entry})
	}
	return items, nil
}
