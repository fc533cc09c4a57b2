// Package filter implements the rule-based filter-action engine that runs
// against candidate articles, both at ingestion time and on backfill.
package filter

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"skim/backend/internal/logger"
	"skim/backend/internal/model"
	"skim/backend/internal/repository"
)

// ArticleView is the typed view of a candidate article that rules match
// against. One view is built per (user entry, entry, feed) triple and shared
// by ingestion and backfill so scope resolution cannot drift between the two.
type ArticleView struct {
	UserID      int64
	UserEntryID int64
	EntryID     int64
	FeedID      int64
	CategoryID  *int64

	Title     string
	Content   string
	Link      string
	Author    string
	Tags      []string
	Published *time.Time
	Updated   *time.Time
}

// Date resolves the article's date as published falling back to updated.
func (a ArticleView) Date() *time.Time {
	if a.Published != nil {
		return a.Published
	}
	return a.Updated
}

// Engine evaluates a user's ordered, enabled filters against articles and
// applies their actions.
type Engine struct {
	filters     repository.FilterRepository
	userEntries repository.UserEntryRepository
	entries     repository.EntryRepository
	tags        repository.TagRepository
}

func NewEngine(
	filters repository.FilterRepository,
	userEntries repository.UserEntryRepository,
	entries repository.EntryRepository,
	tags repository.TagRepository,
) *Engine {
	return &Engine{
		filters:     filters,
		userEntries: userEntries,
		entries:     entries,
		tags:        tags,
	}
}

// control describes how a filter pass proceeds after an action.
type control int

const (
	controlContinue control = iota
	controlStop             // stop action: halt the pass, entry intact
	controlDeleted          // delete action: user entry destroyed, halt everything
)

// ApplyResult reports what one filter did to one article.
type ApplyResult struct {
	Matched bool
	Stopped bool // a stop action ended the filter pass
	Deleted bool // a delete action destroyed the user entry
}

// Execute runs every enabled filter belonging to the view's owner in
// ascending order until all have run or a stop/delete action ends the pass.
func (e *Engine) Execute(ctx context.Context, view ArticleView) error {
	filters, err := e.filters.ListEnabledByUser(ctx, view.UserID)
	if err != nil {
		return err
	}

	for _, f := range filters {
		res, err := e.Apply(ctx, f, view)
		if err != nil {
			return err
		}
		if res.Stopped || res.Deleted {
			return nil
		}
	}
	return nil
}

// Apply evaluates one filter against the article and, when it matches,
// executes its actions in stored order. Shared by ingestion (via Execute)
// and the backfill surface so both resolve scope identically.
func (e *Engine) Apply(ctx context.Context, f model.Filter, view ArticleView) (ApplyResult, error) {
	// Earlier filters may have tagged the entry during this pass; tag rules
	// must see the current state.
	if hasTagRule(f) {
		names, err := e.entries.TagNames(ctx, view.EntryID)
		if err != nil {
			return ApplyResult{}, err
		}
		view.Tags = names
	}

	if !Match(f, view) {
		return ApplyResult{}, nil
	}

	ctl, err := e.runActions(ctx, f, view)
	if err != nil {
		return ApplyResult{Matched: true}, err
	}
	if err := e.filters.UpdateLastTriggered(ctx, f.ID, time.Now().UTC()); err != nil {
		logger.Warn("filter last_triggered update failed",
			"module", "filter", "action", "execute", "resource", "filter", "result", "failed",
			"filter_id", f.ID, "error", err)
	}
	return ApplyResult{
		Matched: true,
		Stopped: ctl == controlStop,
		Deleted: ctl == controlDeleted,
	}, nil
}

func hasTagRule(f model.Filter) bool {
	for _, rule := range f.Rules {
		if rule.Type == model.RuleTag {
			return true
		}
	}
	return false
}

// Match reports whether the filter matches the article. A filter with zero
// rules never matches.
func Match(f model.Filter, a ArticleView) bool {
	if len(f.Rules) == 0 {
		return false
	}

	var combined bool
	if f.MatchAnyRule {
		combined = false
		for _, rule := range f.Rules {
			if matchRule(rule, a) {
				combined = true
				break
			}
		}
	} else {
		combined = true
		for _, rule := range f.Rules {
			if !matchRule(rule, a) {
				combined = false
				break
			}
		}
	}

	if f.Inverse {
		combined = !combined
	}
	return combined
}

// matchRule evaluates one rule. Feed and category scoping are hard gates:
// a scoped rule never matches an article from another feed or category, and
// the gate is not subject to the rule's own inverse flag.
func matchRule(rule model.FilterRule, a ArticleView) bool {
	if rule.FeedID != nil && *rule.FeedID != a.FeedID {
		return false
	}
	if rule.CategoryID != nil && (a.CategoryID == nil || *rule.CategoryID != *a.CategoryID) {
		return false
	}

	matched := evalRule(rule, a)
	if rule.Inverse {
		matched = !matched
	}
	return matched
}

func evalRule(rule model.FilterRule, a ArticleView) bool {
	switch rule.Type {
	case model.RuleTitle:
		return matchPattern(rule.Pattern, a.Title)
	case model.RuleContent:
		return matchPattern(rule.Pattern, a.Content)
	case model.RuleBoth:
		return matchPattern(rule.Pattern, a.Title) || matchPattern(rule.Pattern, a.Content)
	case model.RuleLink:
		return matchPattern(rule.Pattern, a.Link)
	case model.RuleAuthor:
		return matchPattern(rule.Pattern, a.Author)
	case model.RuleTag:
		for _, name := range a.Tags {
			if matchPattern(rule.Pattern, name) {
				return true
			}
		}
		return false
	case model.RuleDate:
		return matchDate(rule.Pattern, a.Date(), time.Now().UTC())
	default:
		return false
	}
}

// matchPattern runs a case-insensitive regex match. A malformed pattern is
// treated as non-matching, never raised.
func matchPattern(pattern, text string) bool {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// runActions executes the filter's actions in stored order. delete destroys
// the user entry and ends the whole pass; stop ends the pass with the entry
// intact and earlier actions applied.
func (e *Engine) runActions(ctx context.Context, f model.Filter, view ArticleView) (control, error) {
	for _, action := range f.Actions {
		ctl, err := e.applyAction(ctx, action, view)
		if err != nil {
			return controlContinue, err
		}
		if ctl != controlContinue {
			return ctl, nil
		}
	}
	return controlContinue, nil
}

func (e *Engine) applyAction(ctx context.Context, action model.FilterAction, view ArticleView) (control, error) {
	switch action.Type {
	case model.ActionMarkRead:
		return controlContinue, e.userEntries.UpdateRead(ctx, view.UserEntryID, true)

	case model.ActionDelete:
		if err := e.userEntries.Delete(ctx, view.UserEntryID); err != nil {
			return controlContinue, err
		}
		return controlDeleted, nil

	case model.ActionStar:
		return controlContinue, e.userEntries.UpdateStarred(ctx, view.UserEntryID, true)

	case model.ActionPublish:
		return controlContinue, e.userEntries.UpdatePublished(ctx, view.UserEntryID, true)

	case model.ActionScore:
		delta, err := strconv.Atoi(strings.TrimSpace(action.Param))
		if err != nil {
			logger.Warn("filter score action has non-numeric param",
				"module", "filter", "action", "score", "resource", "user_entry", "result", "skipped",
				"filter_id", action.FilterID, "param", action.Param)
			return controlContinue, nil
		}
		return controlContinue, e.userEntries.AddScore(ctx, view.UserEntryID, delta)

	case model.ActionTag:
		return controlContinue, e.applyTag(ctx, view, action.Param)

	case model.ActionLabel:
		return controlContinue, e.applyLabel(ctx, view, action.Param)

	case model.ActionIgnoreTag:
		return controlContinue, e.removeTag(ctx, view, action.Param)

	case model.ActionStop:
		return controlStop, nil

	case model.ActionPlugin:
		// Plugin execution is not supported; stored actions are accepted as
		// no-ops so imported filter sets keep working.
		return controlContinue, nil

	default:
		return controlContinue, nil
	}
}

// applyTag normalizes the name and find-or-creates the user's tag, then links
// it to the entry if not already linked.
func (e *Engine) applyTag(ctx context.Context, view ArticleView, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}

	tag, err := e.tags.FindByName(ctx, view.UserID, name)
	if err != nil {
		return err
	}
	if tag == nil {
		created, err := e.tags.Create(ctx, model.Tag{UserID: view.UserID, Name: name})
		if err != nil {
			return err
		}
		tag = &created
	}
	return e.tags.LinkEntry(ctx, view.EntryID, tag.ID)
}

// applyLabel links an existing tag by id; unlike tag it never creates one.
func (e *Engine) applyLabel(ctx context.Context, view ArticleView, param string) error {
	tagID, err := strconv.ParseInt(strings.TrimSpace(param), 10, 64)
	if err != nil {
		return nil
	}
	tag, err := e.tags.GetByID(ctx, tagID)
	if err != nil {
		return nil // unknown label id is a no-op
	}
	if tag.UserID != view.UserID {
		return nil
	}
	return e.tags.LinkEntry(ctx, view.EntryID, tag.ID)
}

func (e *Engine) removeTag(ctx context.Context, view ArticleView, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	tag, err := e.tags.FindByName(ctx, view.UserID, name)
	if err != nil {
		return err
	}
	if tag == nil {
		return nil
	}
	return e.tags.UnlinkEntry(ctx, view.EntryID, tag.ID)
}
