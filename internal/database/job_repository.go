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

// ErrNoJobAvailable is returned when ClaimNext finds no claimable job.
// Callers should check with errors.Is().
var ErrNoJobAvailable = errors.New("no job available")

// jobSelectColumns lists columns for SELECT queries on jobs (aliased as j).
const jobSelectColumns = `j.id, j.job_type, j.intake_id, j.source_id, j.status, j.query_params,
	j.locked_by, j.locked_at, j.last_heartbeat_at, j.retry_count, j.next_retry_at,
	j.error_message, j.created_at, j.updated_at, j.started_at, j.completed_at`

// JobRepository handles database operations for jobs.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// ClaimNext atomically claims the next eligible job of the given type for
// a worker. A job is eligible if pending, or retryable with an elapsed
// next_retry_at. At most one worker can claim a given job: the row is
// selected FOR UPDATE SKIP LOCKED and marked running in the same
// transaction. Returns ErrNoJobAvailable when the queue is empty.
func (r *JobRepository) ClaimNext(ctx context.Context, workerID, jobType string) (*domain.Job, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	job, selectErr := claimSelect(ctx, tx, jobType)
	if selectErr != nil {
		return nil, selectErr
	}

	if updateErr := claimMarkRunning(ctx, tx, job.ID, workerID); updateErr != nil {
		return nil, updateErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", commitErr)
	}

	now := time.Now().UTC()
	job.Status = domain.JobStatusRunning
	job.LockedBy = &workerID
	job.LockedAt = &now
	return job, nil
}

// claimSelect selects and locks the oldest eligible job within a transaction.
func claimSelect(ctx context.Context, tx *sqlx.Tx, jobType string) (*domain.Job, error) {
	query := `
		SELECT ` + jobSelectColumns + `
		FROM jobs j
		WHERE j.job_type = $1
		  AND (j.status = 'pending'
		       OR (j.status = 'retryable' AND j.next_retry_at <= NOW()))
		ORDER BY j.created_at ASC
		LIMIT 1
		FOR UPDATE OF j SKIP LOCKED
	`

	var job domain.Job
	err := tx.GetContext(ctx, &job, query, jobType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoJobAvailable
		}
		return nil, fmt.Errorf("failed to select claimable job: %w", err)
	}

	return &job, nil
}

// claimMarkRunning marks a claimed job as running within a transaction.
func claimMarkRunning(ctx context.Context, tx *sqlx.Tx, id, workerID string) error {
	query := `
		UPDATE jobs
		SET status = 'running',
			locked_by = $1,
			locked_at = NOW(),
			started_at = COALESCE(started_at, NOW()),
			last_heartbeat_at = NOW(),
			updated_at = NOW()
		WHERE id = $2
	`

	_, err := tx.ExecContext(ctx, query, workerID, id)
	if err != nil {
		return fmt.Errorf("failed to mark claimed job running: %w", err)
	}

	return nil
}

// Heartbeat refreshes the job's liveness timestamp while it is running.
func (r *JobRepository) Heartbeat(ctx context.Context, id string) error {
	query := `
		UPDATE jobs
		SET last_heartbeat_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'running'
	`

	result, execErr := r.db.ExecContext(ctx, query, id)
	return requireRowAffected(result, execErr, fmt.Errorf("running job not found: %s", id))
}

// SetStatus transitions a job to the given status. completed_at is set
// only for the terminal statuses succeeded and failed.
func (r *JobRepository) SetStatus(ctx context.Context, id, status string, errorMessage *string) error {
	query := `
		UPDATE jobs
		SET status = $1,
			error_message = $2,
			completed_at = CASE WHEN $1 IN ('succeeded', 'failed') THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE id = $3
	`

	result, execErr := r.db.ExecContext(ctx, query, status, errorMessage, id)
	return requireRowAffected(result, execErr, fmt.Errorf("job not found: %s", id))
}

// MarkRetryable schedules the job for a future retry with exponential
// backoff: next_retry_at = now + min(base * 2^retry_count, max). The
// attempt count is persisted on the row, so successive calls produce
// non-decreasing delays.
func (r *JobRepository) MarkRetryable(ctx context.Context, id string, baseDelay, maxDelay time.Duration, errorMessage *string) error {
	query := `
		UPDATE jobs
		SET status = 'retryable',
			retry_count = retry_count + 1,
			next_retry_at = NOW() + LEAST($1 * POWER(2, retry_count), $2) * INTERVAL '1 second',
			error_message = $3,
			locked_by = NULL,
			locked_at = NULL,
			updated_at = NOW()
		WHERE id = $4
	`

	result, execErr := r.db.ExecContext(ctx, query,
		baseDelay.Seconds(), maxDelay.Seconds(), errorMessage, id)
	return requireRowAffected(result, execErr, fmt.Errorf("job not found: %s", id))
}

// MarkRetryableAfter schedules the job for retry after an explicit delay,
// bypassing the exponential schedule. Used when the delay is dictated by
// an external signal such as a provider rate-limit pause.
func (r *JobRepository) MarkRetryableAfter(ctx context.Context, id string, delay time.Duration, errorMessage *string) error {
	query := `
		UPDATE jobs
		SET status = 'retryable',
			retry_count = retry_count + 1,
			next_retry_at = NOW() + $1 * INTERVAL '1 second',
			error_message = $2,
			locked_by = NULL,
			locked_at = NULL,
			updated_at = NOW()
		WHERE id = $3
	`

	result, execErr := r.db.ExecContext(ctx, query, delay.Seconds(), errorMessage, id)
	return requireRowAffected(result, execErr, fmt.Errorf("job not found: %s", id))
}

// ReclaimStuck transitions running jobs whose heartbeat is older than the
// lock timeout back to pending, making them claimable again. Returns the
// number of jobs reclaimed.
func (r *JobRepository) ReclaimStuck(ctx context.Context, lockTimeout time.Duration) (int, error) {
	query := `
		UPDATE jobs
		SET status = 'pending',
			locked_by = NULL,
			locked_at = NULL,
			updated_at = NOW()
		WHERE status = 'running'
		  AND last_heartbeat_at < NOW() - $1 * INTERVAL '1 second'
	`

	result, err := r.db.ExecContext(ctx, query, lockTimeout.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stuck jobs: %w", err)
	}

	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return 0, fmt.Errorf("failed to get reclaimed count: %w", affectedErr)
	}

	return int(n), nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobSelectColumns + ` FROM jobs j WHERE j.id = $1`

	err := r.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// CountByStatus returns job counts grouped by status.
func (r *JobRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	query := `SELECT status, COUNT(*) AS count FROM jobs GROUP BY status`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", scanErr)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}
