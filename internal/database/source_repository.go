package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mintmarkhq/mintmark/internal/domain"
)

// SourceRepository handles database operations for price sources.
type SourceRepository struct {
	db *sqlx.DB
}

// NewSourceRepository creates a new source repository.
func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// GetByID retrieves a source by its ID, or nil when no such source
// exists.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	var source domain.Source
	query := `
		SELECT id, name, adapter_type, enabled, rate_limit_per_minute, reputation_weight,
			failure_streak, last_success_at, last_failure_at, paused_until, config,
			created_at, updated_at
		FROM sources
		WHERE id = $1
	`

	err := r.db.GetContext(ctx, &source, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return &source, nil
}

// ReportSuccess records a successful collection against the source. The
// failure streak is reset and any active pause is cleared.
func (r *SourceRepository) ReportSuccess(ctx context.Context, id string) error {
	query := `
		UPDATE sources
		SET failure_streak = 0,
			paused_until = NULL,
			last_success_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
	`

	result, execErr := r.db.ExecContext(ctx, query, id)
	return requireRowAffected(result, execErr, fmt.Errorf("source not found: %s", id))
}

// ReportFailure atomically increments the source's failure streak and
// returns the new streak value. The increment happens in SQL so
// concurrent workers never lose counts.
func (r *SourceRepository) ReportFailure(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE sources
		SET failure_streak = failure_streak + 1,
			last_failure_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
		RETURNING failure_streak
	`

	var streak int
	err := r.db.GetContext(ctx, &streak, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("source not found: %s", id)
		}
		return 0, fmt.Errorf("failed to report source failure: %w", err)
	}

	return streak, nil
}

// Pause suspends the source until now + cooldown. Paused sources are
// skipped by collectors until the pause elapses.
func (r *SourceRepository) Pause(ctx context.Context, id string, cooldown time.Duration) error {
	query := `
		UPDATE sources
		SET paused_until = NOW() + $1 * INTERVAL '1 second',
			updated_at = NOW()
		WHERE id = $2
	`

	result, execErr := r.db.ExecContext(ctx, query, cooldown.Seconds(), id)
	return requireRowAffected(result, execErr, fmt.Errorf("source not found: %s", id))
}

// Disable turns the source off entirely, for unrecoverable conditions
// such as invalid credentials. Re-enabling requires operator action.
func (r *SourceRepository) Disable(ctx context.Context, id string) error {
	query := `UPDATE sources SET enabled = false, updated_at = NOW() WHERE id = $1`

	result, execErr := r.db.ExecContext(ctx, query, id)
	return requireRowAffected(result, execErr, fmt.Errorf("source not found: %s", id))
}

// GetRules retrieves the active filtering rules for a source, ordered
// by priority.
func (r *SourceRepository) GetRules(ctx context.Context, sourceID string) ([]*domain.SourceRule, error) {
	query := `
		SELECT id, source_id, rule_type, rule_value, active, priority, created_at
		FROM source_rules
		WHERE source_id = $1 AND active = true
		ORDER BY priority ASC, created_at ASC
	`

	var rules []*domain.SourceRule
	err := r.db.SelectContext(ctx, &rules, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get source rules: %w", err)
	}

	if rules == nil {
		rules = []*domain.SourceRule{}
	}

	return rules, nil
}
