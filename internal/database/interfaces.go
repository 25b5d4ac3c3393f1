package database

import (
	"context"
	"time"

	"github.com/mintmarkhq/mintmark/internal/domain"
)

// JobStore defines job queue operations.
type JobStore interface {
	ClaimNext(ctx context.Context, workerID, jobType string) (*domain.Job, error)
	Heartbeat(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id, status string, errorMessage *string) error
	MarkRetryable(ctx context.Context, id string, baseDelay, maxDelay time.Duration, errorMessage *string) error
	MarkRetryableAfter(ctx context.Context, id string, delay time.Duration, errorMessage *string) error
	ReclaimStuck(ctx context.Context, lockTimeout time.Duration) (int, error)
	GetByID(ctx context.Context, id string) (*domain.Job, error)
}

// SourceStore defines source health and rule operations.
// GetByID returns (nil, nil) when no such source exists.
type SourceStore interface {
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	ReportSuccess(ctx context.Context, id string) error
	ReportFailure(ctx context.Context, id string) (int, error)
	Pause(ctx context.Context, id string, cooldown time.Duration) error
	Disable(ctx context.Context, id string) error
	GetRules(ctx context.Context, sourceID string) ([]*domain.SourceRule, error)
}

// PricePointStore defines price point persistence operations.
type PricePointStore interface {
	Upsert(ctx context.Context, p *domain.PricePoint) error
	ListByIntake(ctx context.Context, intakeID string) ([]*domain.PricePoint, error)
	CountSources(ctx context.Context, intakeID string) (int, error)
}

// ValuationStore defines valuation persistence operations.
type ValuationStore interface {
	Upsert(ctx context.Context, v *domain.Valuation) error
	GetByIntake(ctx context.Context, intakeID string) (*domain.Valuation, error)
}

// GradeStore defines grade estimate and recommendation operations.
type GradeStore interface {
	UpsertEstimate(ctx context.Context, e *domain.GradeEstimate) error
	GetEstimate(ctx context.Context, intakeID, modelVersion string) (*domain.GradeEstimate, error)
	UpsertRecommendation(ctx context.Context, rec *domain.GradingRecommendation) error
	ListServices(ctx context.Context) ([]*domain.GradingService, error)
	GetDefaultShipPolicy(ctx context.Context) (*domain.ShipPolicy, error)
	GetCertifiedComps(ctx context.Context, intakeID string) ([]*domain.CertifiedComp, error)
	GetMultipliers(ctx context.Context, denomination, series *string) (map[string]float64, error)
}

// IntakeStore defines read operations on coin intakes.
// GetAttribution returns (nil, nil) when the intake has no attribution.
type IntakeStore interface {
	GetAttribution(ctx context.Context, intakeID string) (*domain.Attribution, error)
	GetCoinImages(ctx context.Context, intakeID string) ([]*domain.CoinMedia, error)
}

// JobEventStore defines per-job event log operations.
type JobEventStore interface {
	Insert(ctx context.Context, jobID, level, message string, metadata domain.JSONBMap) error
	ListByJob(ctx context.Context, jobID string) ([]*domain.JobEvent, error)
}
