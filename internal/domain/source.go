package domain

import (
	"time"
)

// Source adapter types.
const (
	AdapterMarketplace    = "marketplace_api"
	AdapterInternalGrader = "internal_grader"
	AdapterManual         = "manual"
)

// Source is a configured external listing provider with its own rate
// limit, enablement, and failure history.
type Source struct {
	ID                 string     `db:"id" json:"id"`
	Name               string     `db:"name" json:"name"`
	AdapterType        string     `db:"adapter_type" json:"adapter_type"`
	Enabled            bool       `db:"enabled" json:"enabled"`
	RateLimitPerMinute int        `db:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	ReputationWeight   float64    `db:"reputation_weight" json:"reputation_weight"`
	FailureStreak      int        `db:"failure_streak" json:"failure_streak"`
	LastSuccessAt      *time.Time `db:"last_success_at" json:"last_success_at,omitempty"`
	LastFailureAt      *time.Time `db:"last_failure_at" json:"last_failure_at,omitempty"`
	PausedUntil        *time.Time `db:"paused_until" json:"paused_until,omitempty"`
	Config             JSONBMap   `db:"config" json:"config,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Available reports whether the source may be collected from at the given
// time: enabled, and any pause window has elapsed.
func (s *Source) Available(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if s.PausedUntil != nil && s.PausedUntil.After(now) {
		return false
	}
	return true
}

// PauseRemaining returns how much of the pause window is left at the
// given time, or zero if the source is not paused.
func (s *Source) PauseRemaining(now time.Time) time.Duration {
	if s.PausedUntil == nil || !s.PausedUntil.After(now) {
		return 0
	}
	return s.PausedUntil.Sub(now)
}

// SourceRule is a per-source collection rule, e.g. an exclude keyword.
type SourceRule struct {
	ID        string    `db:"id" json:"id"`
	SourceID  string    `db:"source_id" json:"source_id"`
	RuleType  string    `db:"rule_type" json:"rule_type"`
	RuleValue string    `db:"rule_value" json:"rule_value"`
	Active    bool      `db:"active" json:"active"`
	Priority  int       `db:"priority" json:"priority"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RuleTypeExcludeKeywords marks a rule whose value is a keyword that
// disqualifies listings.
const RuleTypeExcludeKeywords = "exclude_keywords"
