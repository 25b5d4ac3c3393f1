package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mintmarkhq/mintmark/internal/domain"
)

// ValuationRepository handles database operations for valuations.
type ValuationRepository struct {
	db *sqlx.DB
}

// NewValuationRepository creates a new valuation repository.
func NewValuationRepository(db *sqlx.DB) *ValuationRepository {
	return &ValuationRepository{db: db}
}

// Upsert writes the valuation for an intake, replacing any previous one.
// An intake has at most one valuation row.
func (r *ValuationRepository) Upsert(ctx context.Context, v *domain.Valuation) error {
	query := `
		INSERT INTO valuations (
			id, intake_id, price_cents_p10, price_cents_p20, price_cents_p40,
			price_cents_median, price_cents_p60, price_cents_p80, price_cents_p90,
			price_cents_mean, confidence_score, explanation, comp_count,
			comp_sources_count, sold_count, ask_count, metadata, created_at, updated_at
		) VALUES (
			:id, :intake_id, :price_cents_p10, :price_cents_p20, :price_cents_p40,
			:price_cents_median, :price_cents_p60, :price_cents_p80, :price_cents_p90,
			:price_cents_mean, :confidence_score, :explanation, :comp_count,
			:comp_sources_count, :sold_count, :ask_count, :metadata, NOW(), NOW()
		)
		ON CONFLICT (intake_id) DO UPDATE SET
			price_cents_p10 = EXCLUDED.price_cents_p10,
			price_cents_p20 = EXCLUDED.price_cents_p20,
			price_cents_p40 = EXCLUDED.price_cents_p40,
			price_cents_median = EXCLUDED.price_cents_median,
			price_cents_p60 = EXCLUDED.price_cents_p60,
			price_cents_p80 = EXCLUDED.price_cents_p80,
			price_cents_p90 = EXCLUDED.price_cents_p90,
			price_cents_mean = EXCLUDED.price_cents_mean,
			confidence_score = EXCLUDED.confidence_score,
			explanation = EXCLUDED.explanation,
			comp_count = EXCLUDED.comp_count,
			comp_sources_count = EXCLUDED.comp_sources_count,
			sold_count = EXCLUDED.sold_count,
			ask_count = EXCLUDED.ask_count,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
	`

	_, err := r.db.NamedExecContext(ctx, query, v)
	if err != nil {
		return fmt.Errorf("failed to upsert valuation: %w", err)
	}

	return nil
}

// GetByIntake retrieves the valuation for an intake, or nil when none exists.
func (r *ValuationRepository) GetByIntake(ctx context.Context, intakeID string) (*domain.Valuation, error) {
	var v domain.Valuation
	query := `
		SELECT id, intake_id, price_cents_p10, price_cents_p20, price_cents_p40,
			price_cents_median, price_cents_p60, price_cents_p80, price_cents_p90,
			price_cents_mean, confidence_score, explanation, comp_count,
			comp_sources_count, sold_count, ask_count, metadata, created_at, updated_at
		FROM valuations
		WHERE intake_id = $1
	`

	err := r.db.GetContext(ctx, &v, query, intakeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get valuation: %w", err)
	}

	return &v, nil
}
