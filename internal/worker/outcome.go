package worker

import (
	"context"
	"errors"
	"time"

	"github.com/mintmarkhq/mintmark/internal/collector"
	"github.com/mintmarkhq/mintmark/internal/config"
	"github.com/mintmarkhq/mintmark/internal/database"
	"github.com/mintmarkhq/mintmark/internal/domain"
	"github.com/mintmarkhq/mintmark/internal/logger"
)

// minUnavailableDelay is the retry floor for a job blocked by a paused
// source whose remaining pause window is about to elapse.
const minUnavailableDelay = 30 * time.Second

// configError marks a failure that no retry can fix: a missing or
// disabled source, absent attribution, unusable credentials. Jobs
// failing this way need an operator, not a backoff.
type configError struct {
	reason string
}

func (e *configError) Error() string {
	return e.reason
}

// finishJob maps the outcome of a job run onto a queue transition and
// returns the resulting status.
func finishJob(
	ctx context.Context,
	jobs database.JobStore,
	events *Events,
	cfg config.WorkerConfig,
	job *domain.Job,
	runErr error,
	log logger.Interface,
) string {
	if runErr == nil {
		if err := jobs.SetStatus(ctx, job.ID, domain.JobStatusSucceeded, nil); err != nil {
			log.Error("Failed to mark job succeeded", "job_id", job.ID, "error", err)
		}
		return domain.JobStatusSucceeded
	}

	msg := runErr.Error()

	var unavailable *collector.SourceUnavailableError
	var cfgErr *configError

	switch {
	case errors.Is(runErr, collector.ErrAuthFailed):
		events.Log(ctx, job.ID, "error", "authentication failed, source disabled", nil)
		return failJob(ctx, jobs, job, msg, log)

	case errors.Is(runErr, collector.ErrRateLimited):
		events.Log(ctx, job.ID, "warn", "provider rate limited, retrying later",
			domain.JSONBMap{"delay": cfg.RateLimitCooldown.String()})
		return retryAfter(ctx, jobs, job, cfg.RateLimitCooldown, msg, log)

	case errors.As(runErr, &unavailable):
		delay := max(unavailable.Remaining, minUnavailableDelay)
		events.Log(ctx, job.ID, "warn", "source unavailable, retrying later",
			domain.JSONBMap{"source_id": unavailable.SourceID, "delay": delay.String()})
		return retryAfter(ctx, jobs, job, delay, msg, log)

	case errors.As(runErr, &cfgErr):
		events.Log(ctx, job.ID, "error", "configuration error", domain.JSONBMap{"reason": cfgErr.reason})
		return failJob(ctx, jobs, job, msg, log)

	case collector.IsTransient(runErr) || collector.LooksTransient(runErr):
		events.Log(ctx, job.ID, "warn", "transient failure, retrying with backoff",
			domain.JSONBMap{"retry_count": job.RetryCount})
		if err := jobs.MarkRetryable(ctx, job.ID, cfg.RetryBaseDelay, cfg.RetryMaxDelay, &msg); err != nil {
			log.Error("Failed to mark job retryable", "job_id", job.ID, "error", err)
		}
		return domain.JobStatusRetryable

	default:
		events.Log(ctx, job.ID, "error", "job failed", domain.JSONBMap{"error": msg})
		return failJob(ctx, jobs, job, msg, log)
	}
}

func failJob(ctx context.Context, jobs database.JobStore, job *domain.Job, msg string, log logger.Interface) string {
	if err := jobs.SetStatus(ctx, job.ID, domain.JobStatusFailed, &msg); err != nil {
		log.Error("Failed to mark job failed", "job_id", job.ID, "error", err)
	}
	return domain.JobStatusFailed
}

func retryAfter(ctx context.Context, jobs database.JobStore, job *domain.Job, delay time.Duration, msg string, log logger.Interface) string {
	if err := jobs.MarkRetryableAfter(ctx, job.ID, delay, &msg); err != nil {
		log.Error("Failed to reschedule job", "job_id", job.ID, "error", err)
	}
	return domain.JobStatusRetryable
}
