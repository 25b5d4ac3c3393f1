package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mintmarkhq/mintmark/internal/domain"
)

// PricePointRepository handles database operations for price points.
type PricePointRepository struct {
	db *sqlx.DB
}

// NewPricePointRepository creates a new price point repository.
func NewPricePointRepository(db *sqlx.DB) *PricePointRepository {
	return &PricePointRepository{db: db}
}

// Upsert inserts a price point, or refreshes the existing row on a
// duplicate (intake_id, source_id, dedupe_key). The stored row is only
// replaced when the new observation matches the coin at least as well
// as the existing one.
func (r *PricePointRepository) Upsert(ctx context.Context, p *domain.PricePoint) error {
	query := `
		INSERT INTO price_points (
			id, intake_id, source_id, job_id, dedupe_key, price_cents, price_type,
			listing_url, listing_title, listing_date, observed_at, match_strength,
			external_id, raw_payload, filtered_out, created_at, updated_at
		) VALUES (
			:id, :intake_id, :source_id, :job_id, :dedupe_key, :price_cents, :price_type,
			:listing_url, :listing_title, :listing_date, :observed_at, :match_strength,
			:external_id, :raw_payload, :filtered_out, NOW(), NOW()
		)
		ON CONFLICT (intake_id, source_id, dedupe_key) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			price_cents = EXCLUDED.price_cents,
			price_type = EXCLUDED.price_type,
			listing_url = EXCLUDED.listing_url,
			listing_title = EXCLUDED.listing_title,
			listing_date = EXCLUDED.listing_date,
			observed_at = EXCLUDED.observed_at,
			match_strength = EXCLUDED.match_strength,
			external_id = EXCLUDED.external_id,
			raw_payload = EXCLUDED.raw_payload,
			filtered_out = EXCLUDED.filtered_out,
			updated_at = NOW()
		WHERE EXCLUDED.match_strength >= price_points.match_strength
	`

	_, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("failed to upsert price point: %w", err)
	}

	return nil
}

// ListByIntake retrieves all non-filtered price points for an intake,
// joined with each source's reputation weight.
func (r *PricePointRepository) ListByIntake(ctx context.Context, intakeID string) ([]*domain.PricePoint, error) {
	query := `
		SELECT p.id, p.intake_id, p.source_id, p.job_id, p.dedupe_key,
			p.price_cents, p.price_type, p.listing_url, p.listing_title,
			p.listing_date, p.observed_at, p.match_strength, p.external_id,
			p.raw_payload, p.filtered_out, p.created_at, p.updated_at,
			s.reputation_weight AS source_reputation
		FROM price_points p
		JOIN sources s ON s.id = p.source_id
		WHERE p.intake_id = $1 AND p.filtered_out = false
		ORDER BY p.observed_at DESC NULLS LAST
	`

	var points []*domain.PricePoint
	err := r.db.SelectContext(ctx, &points, query, intakeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list price points: %w", err)
	}

	if points == nil {
		points = []*domain.PricePoint{}
	}

	return points, nil
}

// CountSources returns the number of distinct sources contributing
// non-filtered price points to an intake.
func (r *PricePointRepository) CountSources(ctx context.Context, intakeID string) (int, error) {
	query := `
		SELECT COUNT(DISTINCT source_id)
		FROM price_points
		WHERE intake_id = $1 AND filtered_out = false
	`

	var count int
	err := r.db.GetContext(ctx, &count, query, intakeID)
	if err != nil {
		return 0, fmt.Errorf("failed to count price point sources: %w", err)
	}

	return count, nil
}
