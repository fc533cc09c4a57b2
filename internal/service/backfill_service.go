package service

import (
	"context"
	"database/sql"
	"errors"

	"skim/backend/internal/filter"
	"skim/backend/internal/logger"
	"skim/backend/internal/model"
	"skim/backend/internal/repository"
)

// BackfillService re-runs filter matching against historical user entries,
// outside the ingestion pipeline. It shares the engine's matching function,
// so feed and category scoping resolve exactly as they do at ingestion time.
type BackfillService interface {
	// BackfillFilter applies one filter to all of its owner's user entries
	// and returns the number of entries it matched.
	BackfillFilter(ctx context.Context, filterID int64) (int, error)
	// BackfillUser applies all of the user's enabled filters, in order, and
	// returns the number of entries at least one filter matched.
	BackfillUser(ctx context.Context, userID int64) (int, error)
}

type backfillService struct {
	filters     repository.FilterRepository
	userEntries repository.UserEntryRepository
	entries     repository.EntryRepository
	feeds       repository.FeedRepository
	engine      *filter.Engine
}

func NewBackfillService(
	filters repository.FilterRepository,
	userEntries repository.UserEntryRepository,
	entries repository.EntryRepository,
	feeds repository.FeedRepository,
	engine *filter.Engine,
) BackfillService {
	return &backfillService{
		filters:     filters,
		userEntries: userEntries,
		entries:     entries,
		feeds:       feeds,
		engine:      engine,
	}
}

func (s *backfillService) BackfillFilter(ctx context.Context, filterID int64) (int, error) {
	f, err := s.filters.GetByID(ctx, filterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	affected, err := s.run(ctx, f.UserID, []model.Filter{f})
	if err != nil {
		return affected, err
	}
	logger.Info("filter backfill completed",
		"module", "service", "action", "backfill", "resource", "filter", "result", "ok",
		"filter_id", filterID, "affected", affected)
	return affected, nil
}

func (s *backfillService) BackfillUser(ctx context.Context, userID int64) (int, error) {
	filters, err := s.filters.ListEnabledByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	affected, err := s.run(ctx, userID, filters)
	if err != nil {
		return affected, err
	}
	logger.Info("user filter backfill completed",
		"module", "service", "action", "backfill", "resource", "filter", "result", "ok",
		"user_id", userID, "filters", len(filters), "affected", affected)
	return affected, nil
}

func (s *backfillService) run(ctx context.Context, userID int64, filters []model.Filter) (int, error) {
	if len(filters) == 0 {
		return 0, nil
	}

	userEntries, err := s.userEntries.ListByUser(ctx, userID, repository.UserEntryListFilter{})
	if err != nil {
		return 0, err
	}

	// Feed rows are loaded once per backfill; scoping reads the feed's
	// category off this cache.
	feedsByID := make(map[int64]model.Feed)

	affected := 0
	for _, ue := range userEntries {
		if ctx.Err() != nil {
			return affected, ctx.Err()
		}

		view, err := s.viewFor(ctx, ue, feedsByID)
		if err != nil {
			logger.Warn("backfill view build failed",
				"module", "service", "action", "backfill", "resource", "user_entry", "result", "failed",
				"user_entry_id", ue.ID, "error", err)
			continue
		}

		matched := false
		for _, f := range filters {
			res, err := s.engine.Apply(ctx, f, view)
			if err != nil {
				return affected, err
			}
			if res.Matched {
				matched = true
			}
			if res.Stopped || res.Deleted {
				break
			}
		}
		if matched {
			affected++
		}
	}
	return affected, nil
}

func (s *backfillService) viewFor(ctx context.Context, ue model.UserEntry, feedsByID map[int64]model.Feed) (filter.ArticleView, error) {
	entry, err := s.entries.GetByID(ctx, ue.EntryID)
	if err != nil {
		return filter.ArticleView{}, err
	}

	feed, ok := feedsByID[ue.FeedID]
	if !ok {
		feed, err = s.feeds.GetByID(ctx, ue.FeedID)
		if err != nil {
			return filter.ArticleView{}, err
		}
		feedsByID[ue.FeedID] = feed
	}

	tags, err := s.entries.TagNames(ctx, entry.ID)
	if err != nil {
		return filter.ArticleView{}, err
	}

	return filter.ArticleView{
		UserID:      ue.UserID,
		UserEntryID: ue.ID,
		EntryID:     entry.ID,
		FeedID:      feed.ID,
		CategoryID:  feed.CategoryID,
		Title:       strOf(entry.Title),
		Content:     strOf(entry.Content),
		Link:        strOf(entry.Link),
		Author:      strOf(entry.Author),
		Tags:        tags,
		Published:   entry.PublishedAt,
		Updated:     entry.UpdatedAtSrc,
	}, nil
}

func strOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
