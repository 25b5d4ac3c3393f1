package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mintmarkhq/mintmark/internal/domain"
)

// JobEventRepository writes structured per-job log rows.
type JobEventRepository struct {
	db *sqlx.DB
}

// NewJobEventRepository creates a new job event repository.
func NewJobEventRepository(db *sqlx.DB) *JobEventRepository {
	return &JobEventRepository{db: db}
}

// Insert records an event for a job. Event writes are best-effort for
// callers: failures here must never fail the job itself.
func (r *JobEventRepository) Insert(ctx context.Context, jobID, level, message string, metadata domain.JSONBMap) error {
	query := `
		INSERT INTO job_events (id, job_id, log_level, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	_, err := r.db.ExecContext(ctx, query, uuid.NewString(), jobID, level, message, metadata)
	if err != nil {
		return fmt.Errorf("failed to insert job event: %w", err)
	}

	return nil
}

// ListByJob retrieves events for a job in chronological order.
func (r *JobEventRepository) ListByJob(ctx context.Context, jobID string) ([]*domain.JobEvent, error) {
	query := `
		SELECT id, job_id, log_level, message, metadata, created_at
		FROM job_events
		WHERE job_id = $1
		ORDER BY created_at ASC
	`

	var events []*domain.JobEvent
	err := r.db.SelectContext(ctx, &events, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job events: %w", err)
	}

	if events == nil {
		events = []*domain.JobEvent{}
	}

	return events, nil
}
