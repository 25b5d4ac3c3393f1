package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/mintmarkhq/mintmark/internal/database"
	"github.com/mintmarkhq/mintmark/internal/domain"
)

var pricePointColumns = []string{
	"id", "intake_id", "source_id", "job_id", "dedupe_key", "price_cents",
	"price_type", "listing_url", "listing_title", "listing_date", "observed_at",
	"match_strength", "external_id", "raw_payload", "filtered_out",
	"created_at", "updated_at", "source_reputation",
}

func newPricePointRepo(t *testing.T) (*database.PricePointRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	repo := database.NewPricePointRepository(db)

	return repo, mock, func() { mockDB.Close() }
}

func TestPricePointRepository_Upsert(t *testing.T) {
	repo, mock, cleanup := newPricePointRepo(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now()

	mock.ExpectExec("INSERT INTO price_points").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(ctx, &domain.PricePoint{
		ID:            "pp-1",
		IntakeID:      "intake-1",
		SourceID:      "source-1",
		DedupeKey:     "ext_12345",
		PriceCents:    125000,
		PriceType:     domain.PriceTypeSold,
		ListingURL:    "https://example.com/itm/12345",
		ListingTitle:  "1909-S VDB Lincoln Cent VF",
		ObservedAt:    &now,
		MatchStrength: 0.8,
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	expectationsMet(t, mock)
}

func TestPricePointRepository_ListByIntake(t *testing.T) {
	repo, mock, cleanup := newPricePointRepo(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery("SELECT .+ FROM price_points p").
		WithArgs("intake-1").
		WillReturnRows(sqlmock.NewRows(pricePointColumns).
			AddRow("pp-1", "intake-1", "source-1", nil, "ext_1", 125000,
				"sold", "https://example.com/1", "1909-S VDB cent", nil, now,
				0.8, "1", nil, false, now, now, 1.0).
			AddRow("pp-2", "intake-1", "source-1", nil, "ext_2", 98000,
				"ask", "https://example.com/2", "1909 S VDB penny", nil, now,
				0.6, "2", nil, false, now, now, 1.0))

	points, err := repo.ListByIntake(ctx, "intake-1")
	if err != nil {
		t.Fatalf("ListByIntake() error = %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 price points, got %d", len(points))
	}
	if points[0].PriceCents != 125000 {
		t.Errorf("expected price_cents=125000, got %d", points[0].PriceCents)
	}
	if points[0].SourceReputation != 1.0 {
		t.Errorf("expected source_reputation=1.0, got %f", points[0].SourceReputation)
	}

	expectationsMet(t, mock)
}

func TestPricePointRepository_ListByIntake_Empty(t *testing.T) {
	repo, mock, cleanup := newPricePointRepo(t)
	defer cleanup()

	ctx := context.Background()

	mock.ExpectQuery("SELECT .+ FROM price_points p").
		WithArgs("intake-1").
		WillReturnRows(sqlmock.NewRows(pricePointColumns))

	points, err := repo.ListByIntake(ctx, "intake-1")
	if err != nil {
		t.Fatalf("ListByIntake() error = %v", err)
	}
	if points == nil {
		t.Fatal("ListByIntake() returned nil, expected empty slice")
	}

	expectationsMet(t, mock)
}

func TestPricePointRepository_CountSources(t *testing.T) {
	repo, mock, cleanup := newPricePointRepo(t)
	defer cleanup()

	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT\\(DISTINCT source_id\\)").
		WithArgs("intake-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountSources(ctx, "intake-1")
	if err != nil {
		t.Fatalf("CountSources() error = %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 sources, got %d", count)
	}

	expectationsMet(t, mock)
}
