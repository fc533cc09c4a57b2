package model

import "time"

// FilterRuleType selects which article field a rule matches against.
type FilterRuleType string

const (
	RuleTitle   FilterRuleType = "title"
	RuleContent FilterRuleType = "content"
	RuleBoth    FilterRuleType = "both"
	RuleLink    FilterRuleType = "link"
	RuleDate    FilterRuleType = "date"
	RuleAuthor  FilterRuleType = "author"
	RuleTag     FilterRuleType = "tag"
)

// FilterActionType identifies the effect executed when a filter matches.
type FilterActionType string

const (
	ActionMarkRead  FilterActionType = "mark_read"
	ActionDelete    FilterActionType = "delete"
	ActionStar      FilterActionType = "star"
	ActionPublish   FilterActionType = "publish"
	ActionScore     FilterActionType = "score"
	ActionTag       FilterActionType = "tag"
	ActionLabel     FilterActionType = "label"
	ActionStop      FilterActionType = "stop"
	ActionIgnoreTag FilterActionType = "ignore_tag"
	ActionPlugin    FilterActionType = "plugin"
)

// Filter is an ordered, user-owned automation rule set.
type Filter struct {
	ID            int64
	UserID        int64
	Title         string
	Enabled       bool
	MatchAnyRule  bool // OR across rules instead of AND
	Inverse       bool // negate the combined rule result
	OrderID       int
	LastTriggered *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Rules   []FilterRule
	Actions []FilterAction
}

// FilterRule is one condition within a Filter. Pattern is a case-insensitive
// regular expression except for date rules, which use a small DSL.
type FilterRule struct {
	ID         int64
	FilterID   int64
	Type       FilterRuleType
	Pattern    string
	Inverse    bool
	FeedID     *int64 // restrict the rule to entries from this feed
	CategoryID *int64 // restrict the rule to entries from feeds in this category
}

// FilterAction is one effect executed when its Filter matches.
type FilterAction struct {
	ID       int64
	FilterID int64
	Type     FilterActionType
	Param    string
	OrderID  int
}
