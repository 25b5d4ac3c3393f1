// Package domain provides domain models used across the application.
package domain

import (
	"time"
)

// Job type discriminators. A pricing worker only claims pricing jobs and
// a grader only claims grading jobs.
const (
	JobTypePricing = "pricing"
	JobTypeGrading = "grading"
)

// Job statuses. succeeded and failed are terminal; retryable transitions
// back to pending once next_retry_at elapses.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
	JobStatusRetryable = "retryable"
)

// Job represents one unit of queued work: collect listings for an intake,
// or grade an intake's images.
type Job struct {
	ID              string     `db:"id" json:"id"`
	JobType         string     `db:"job_type" json:"job_type"`
	IntakeID        string     `db:"intake_id" json:"intake_id"`
	SourceID        *string    `db:"source_id" json:"source_id,omitempty"`
	Status          string     `db:"status" json:"status"`
	QueryParams     JSONBMap   `db:"query_params" json:"query_params,omitempty"`
	LockedBy        *string    `db:"locked_by" json:"locked_by,omitempty"`
	LockedAt        *time.Time `db:"locked_at" json:"locked_at,omitempty"`
	LastHeartbeatAt *time.Time `db:"last_heartbeat_at" json:"last_heartbeat_at,omitempty"`
	RetryCount      int        `db:"retry_count" json:"retry_count"`
	NextRetryAt     *time.Time `db:"next_retry_at" json:"next_retry_at,omitempty"`
	ErrorMessage    *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	StartedAt       *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Terminal reports whether the job has reached a terminal status.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}
