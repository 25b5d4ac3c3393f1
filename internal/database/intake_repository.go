package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mintmarkhq/mintmark/internal/domain"
)

// IntakeRepository reads attribution and media for coin intakes.
type IntakeRepository struct {
	db *sqlx.DB
}

// NewIntakeRepository creates a new intake repository.
func NewIntakeRepository(db *sqlx.DB) *IntakeRepository {
	return &IntakeRepository{db: db}
}

// GetAttribution retrieves the attribution for an intake, or nil when
// the intake has none.
func (r *IntakeRepository) GetAttribution(ctx context.Context, intakeID string) (*domain.Attribution, error) {
	var a domain.Attribution
	query := `
		SELECT id, intake_id, year, mintmark, denomination, series, title,
			keywords_include, keywords_exclude, created_at, updated_at
		FROM attributions
		WHERE intake_id = $1
	`

	err := r.db.GetContext(ctx, &a, query, intakeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attribution: %w", err)
	}

	return &a, nil
}

// GetCoinImages retrieves the uploaded images for an intake, obverse and
// reverse first.
func (r *IntakeRepository) GetCoinImages(ctx context.Context, intakeID string) ([]*domain.CoinMedia, error) {
	query := `
		SELECT id, intake_id, kind, storage_path, created_at
		FROM coin_media
		WHERE intake_id = $1
		ORDER BY CASE kind
			WHEN 'obverse' THEN 0
			WHEN 'reverse' THEN 1
			ELSE 2
		END, created_at ASC
	`

	var media []*domain.CoinMedia
	err := r.db.SelectContext(ctx, &media, query, intakeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get coin images: %w", err)
	}

	if media == nil {
		media = []*domain.CoinMedia{}
	}

	return media, nil
}
