package worker

import (
	"context"
	"errors"
	"time"

	"github.com/mintmarkhq/mintmark/internal/config"
	"github.com/mintmarkhq/mintmark/internal/database"
	"github.com/mintmarkhq/mintmark/internal/domain"
	"github.com/mintmarkhq/mintmark/internal/fleet"
	"github.com/mintmarkhq/mintmark/internal/logger"
	"github.com/mintmarkhq/mintmark/internal/metrics"
)

// JobProcessor executes one claimed job and reports its outcome.
type JobProcessor interface {
	JobType() string
	Process(ctx context.Context, job *domain.Job) (string, error)
}

// Loop is the single claim-process cycle of one worker: poll for a job,
// run it with a heartbeat alongside, report, repeat. Stuck-job
// reclamation runs inline on its own interval rather than from a timer.
type Loop struct {
	cfg       config.WorkerConfig
	jobs      database.JobStore
	processor JobProcessor
	registry  *fleet.Registry
	metrics   *metrics.Metrics
	logger    logger.Interface
}

// NewLoop creates a worker loop. registry may be nil when no fleet
// visibility backend is configured.
func NewLoop(
	cfg config.WorkerConfig,
	jobs database.JobStore,
	processor JobProcessor,
	registry *fleet.Registry,
	m *metrics.Metrics,
	log logger.Interface,
) *Loop {
	return &Loop{
		cfg:       cfg,
		jobs:      jobs,
		processor: processor,
		registry:  registry,
		metrics:   m,
		logger:    log,
	}
}

// Run polls until ctx is cancelled. An in-flight job always finishes
// before Run returns; cancellation only stops new claims.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Worker loop started",
		"worker_id", l.cfg.ID,
		"job_type", l.processor.JobType(),
		"poll_interval", l.cfg.PollInterval.String())

	var liveness *Liveness
	if l.registry != nil {
		liveness = NewLiveness(l.registry, l.cfg.ID, l.processor.JobType(), l.cfg.WorkerHeartbeat, l.logger)
		liveness.Start(ctx)
		defer liveness.Stop()
	}

	lastReclaim := time.Now()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Worker loop stopping", "worker_id", l.cfg.ID)
			return nil
		default:
		}

		if time.Since(lastReclaim) >= l.cfg.ReclaimInterval {
			l.reclaim(ctx)
			lastReclaim = time.Now()
		}

		job, err := l.jobs.ClaimNext(ctx, l.cfg.ID, l.processor.JobType())
		if err != nil {
			if !errors.Is(err, database.ErrNoJobAvailable) {
				l.logger.Error("Failed to claim job", "worker_id", l.cfg.ID, "error", err)
			}
			l.sleep(ctx)
			continue
		}

		l.processJob(ctx, job, liveness)
	}
}

// Reclaim runs one stuck-job sweep and returns the number of jobs
// returned to pending.
func (l *Loop) Reclaim(ctx context.Context) (int, error) {
	count, err := l.jobs.ReclaimStuck(ctx, l.cfg.LockTimeout)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		l.metrics.JobsReclaimedTotal.Add(float64(count))
	}
	return count, nil
}

func (l *Loop) reclaim(ctx context.Context) {
	count, err := l.Reclaim(ctx)
	if err != nil {
		l.logger.Error("Stuck-job reclamation failed", "error", err)
		return
	}
	if count > 0 {
		l.logger.Warn("Reclaimed stuck jobs", "count", count)
	}
}

func (l *Loop) processJob(ctx context.Context, job *domain.Job, liveness *Liveness) {
	// A cancelled loop context must not abort the job mid-flight.
	jobCtx := context.WithoutCancel(ctx)

	if liveness != nil {
		liveness.SetCurrentJob(job.ID)
		defer liveness.SetCurrentJob("")
	}

	hb := NewHeartbeat(l.jobs, job.ID, l.cfg.JobHeartbeat, l.metrics, l.logger)
	hb.Start(jobCtx)
	defer hb.Stop()

	l.logger.Info("Processing job",
		"job_id", job.ID, "job_type", job.JobType, "intake_id", job.IntakeID,
		"retry_count", job.RetryCount)

	start := time.Now()
	status, err := l.processor.Process(jobCtx, job)
	duration := time.Since(start)

	l.metrics.JobDurationSeconds.WithLabelValues(job.JobType).Observe(duration.Seconds())

	if err != nil {
		l.logger.Error("Job finished with error",
			"job_id", job.ID, "status", status, "duration", duration.String(), "error", err)
		return
	}

	l.logger.Info("Job finished",
		"job_id", job.ID, "status", status, "duration", duration.String())
}

func (l *Loop) sleep(ctx context.Context) {
	select {
	case <-time.After(l.cfg.PollInterval):
	case <-ctx.Done():
	}
}
