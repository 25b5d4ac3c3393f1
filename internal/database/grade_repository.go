package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mintmarkhq/mintmark/internal/domain"
)

// GradeRepository handles database operations for grade estimates,
// grading services, and ROI recommendations.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// UpsertEstimate writes a grade estimate, replacing any previous row for
// the same (intake_id, model_version).
func (r *GradeRepository) UpsertEstimate(ctx context.Context, e *domain.GradeEstimate) error {
	query := `
		INSERT INTO grade_estimates (
			id, intake_id, model_version, grade_bucket, grade_distribution,
			details_risk, confidence, notes, created_at, updated_at
		) VALUES (
			:id, :intake_id, :model_version, :grade_bucket, :grade_distribution,
			:details_risk, :confidence, :notes, NOW(), NOW()
		)
		ON CONFLICT (intake_id, model_version) DO UPDATE SET
			grade_bucket = EXCLUDED.grade_bucket,
			grade_distribution = EXCLUDED.grade_distribution,
			details_risk = EXCLUDED.details_risk,
			confidence = EXCLUDED.confidence,
			notes = EXCLUDED.notes,
			updated_at = NOW()
	`

	_, err := r.db.NamedExecContext(ctx, query, e)
	if err != nil {
		return fmt.Errorf("failed to upsert grade estimate: %w", err)
	}

	return nil
}

// GetEstimate retrieves the grade estimate for an intake and model
// version, or nil when none exists.
func (r *GradeRepository) GetEstimate(ctx context.Context, intakeID, modelVersion string) (*domain.GradeEstimate, error) {
	var e domain.GradeEstimate
	query := `
		SELECT id, intake_id, model_version, grade_bucket, grade_distribution,
			details_risk, confidence, notes, created_at, updated_at
		FROM grade_estimates
		WHERE intake_id = $1 AND model_version = $2
	`

	err := r.db.GetContext(ctx, &e, query, intakeID, modelVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get grade estimate: %w", err)
	}

	return &e, nil
}

// UpsertRecommendation writes an ROI recommendation, replacing any
// previous row for the same (intake_id, service_id).
func (r *GradeRepository) UpsertRecommendation(ctx context.Context, rec *domain.GradingRecommendation) error {
	query := `
		INSERT INTO grading_recommendations (
			id, intake_id, service_id, ship_policy_id, expected_raw_value_cents,
			expected_graded_value_cents, total_cost_cents, expected_profit_cents,
			recommendation, breakdown, created_at, updated_at
		) VALUES (
			:id, :intake_id, :service_id, :ship_policy_id, :expected_raw_value_cents,
			:expected_graded_value_cents, :total_cost_cents, :expected_profit_cents,
			:recommendation, :breakdown, NOW(), NOW()
		)
		ON CONFLICT (intake_id, service_id) DO UPDATE SET
			ship_policy_id = EXCLUDED.ship_policy_id,
			expected_raw_value_cents = EXCLUDED.expected_raw_value_cents,
			expected_graded_value_cents = EXCLUDED.expected_graded_value_cents,
			total_cost_cents = EXCLUDED.total_cost_cents,
			expected_profit_cents = EXCLUDED.expected_profit_cents,
			recommendation = EXCLUDED.recommendation,
			breakdown = EXCLUDED.breakdown,
			updated_at = NOW()
	`

	_, err := r.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		return fmt.Errorf("failed to upsert grading recommendation: %w", err)
	}

	return nil
}

// ListServices retrieves all enabled grading services.
func (r *GradeRepository) ListServices(ctx context.Context) ([]*domain.GradingService, error) {
	query := `
		SELECT id, name, enabled, base_fee_cents, per_coin_fee_cents,
			requires_membership, membership_fee_cents, created_at
		FROM grading_services
		WHERE enabled = true
		ORDER BY name ASC
	`

	var services []*domain.GradingService
	err := r.db.SelectContext(ctx, &services, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list grading services: %w", err)
	}

	if services == nil {
		services = []*domain.GradingService{}
	}

	return services, nil
}

// GetDefaultShipPolicy retrieves the default shipping policy, or nil when
// none is configured.
func (r *GradeRepository) GetDefaultShipPolicy(ctx context.Context) (*domain.ShipPolicy, error) {
	var policy domain.ShipPolicy
	query := `
		SELECT id, name, is_default, outbound_shipping_cents, return_shipping_cents,
			insurance_rate_bps, handling_cents, created_at
		FROM ship_policies
		WHERE is_default = true
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &policy, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get default ship policy: %w", err)
	}

	return &policy, nil
}

// multiplierRow is one grade_multipliers row.
type multiplierRow struct {
	Bucket     string  `db:"bucket"`
	Multiplier float64 `db:"multiplier"`
}

// GetMultipliers retrieves grade multipliers, trying series-specific,
// then denomination-specific, then generic rows. Returns an empty map
// when no multipliers are configured at all.
func (r *GradeRepository) GetMultipliers(ctx context.Context, denomination, series *string) (map[string]float64, error) {
	if denomination != nil && series != nil {
		rows, err := r.selectMultipliers(ctx,
			`SELECT bucket, multiplier FROM grade_multipliers
			WHERE denomination = $1 AND series = $2`, *denomination, *series)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			return rows, nil
		}
	}

	if denomination != nil {
		rows, err := r.selectMultipliers(ctx,
			`SELECT bucket, multiplier FROM grade_multipliers
			WHERE denomination = $1 AND series IS NULL`, *denomination)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			return rows, nil
		}
	}

	return r.selectMultipliers(ctx,
		`SELECT bucket, multiplier FROM grade_multipliers
		WHERE denomination IS NULL AND series IS NULL`)
}

func (r *GradeRepository) selectMultipliers(ctx context.Context, query string, args ...any) (map[string]float64, error) {
	var rows []multiplierRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get grade multipliers: %w", err)
	}

	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[row.Bucket] = row.Multiplier
	}
	return out, nil
}

// GetCertifiedComps retrieves non-filtered price points for an intake
// whose listings carry a recognized certification, joined with the
// parsed grade details.
func (r *GradeRepository) GetCertifiedComps(ctx context.Context, intakeID string) ([]*domain.CertifiedComp, error) {
	query := `
		SELECT p.id AS price_point_id, p.price_cents,
			c.grade_prefix, c.grade_numeric, c.details_flag
		FROM price_points p
		JOIN listing_certifications c ON c.price_point_id = p.id
		WHERE p.intake_id = $1 AND p.filtered_out = false
		ORDER BY p.price_cents ASC
	`

	var comps []*domain.CertifiedComp
	err := r.db.SelectContext(ctx, &comps, query, intakeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get certified comps: %w", err)
	}

	if comps == nil {
		comps = []*domain.CertifiedComp{}
	}

	return comps, nil
}
