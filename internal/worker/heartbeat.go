// Package worker implements the claim-process loop: claim one job,
// signal liveness while it runs, execute it, and report the outcome.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/mintmarkhq/mintmark/internal/database"
	"github.com/mintmarkhq/mintmark/internal/fleet"
	"github.com/mintmarkhq/mintmark/internal/logger"
	"github.com/mintmarkhq/mintmark/internal/metrics"
)

// stopTimeout bounds how long Stop waits for a liveness loop to exit.
const stopTimeout = 2 * time.Second

// Heartbeat refreshes a running job's last-heartbeat timestamp on a
// fixed interval so the reclamation sweep never mistakes it for dead.
// An update failure is logged and the loop keeps going.
type Heartbeat struct {
	jobs     database.JobStore
	jobID    string
	interval time.Duration
	metrics  *metrics.Metrics
	logger   logger.Interface

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewHeartbeat creates a job heartbeat supervisor. It does nothing
// until Start is called.
func NewHeartbeat(
	jobs database.JobStore,
	jobID string,
	interval time.Duration,
	m *metrics.Metrics,
	log logger.Interface,
) *Heartbeat {
	return &Heartbeat{
		jobs:     jobs,
		jobID:    jobID,
		interval: interval,
		metrics:  m,
		logger:   log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the heartbeat loop in the background.
func (h *Heartbeat) Start(ctx context.Context) {
	go h.run(ctx)
}

// Stop signals the loop to exit and waits for it, bounded by stopTimeout.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })

	select {
	case <-h.doneCh:
	case <-time.After(stopTimeout):
		h.logger.Warn("Job heartbeat did not stop in time", "job_id", h.jobID)
	}
}

func (h *Heartbeat) run(ctx context.Context) {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.jobs.Heartbeat(ctx, h.jobID); err != nil {
				h.metrics.HeartbeatFailures.Inc()
				h.logger.Warn("Job heartbeat update failed",
					"job_id", h.jobID, "error", err)
			}
		case <-h.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Liveness reports the worker's own presence to the fleet registry on a
// fixed interval, independent of whether a job is running.
type Liveness struct {
	registry *fleet.Registry
	workerID string
	jobType  string
	interval time.Duration
	logger   logger.Interface

	mu         sync.Mutex
	currentJob string
	startedAt  time.Time

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewLiveness creates a worker liveness reporter for the fleet registry.
func NewLiveness(
	registry *fleet.Registry,
	workerID, jobType string,
	interval time.Duration,
	log logger.Interface,
) *Liveness {
	return &Liveness{
		registry:  registry,
		workerID:  workerID,
		jobType:   jobType,
		interval:  interval,
		logger:    log,
		startedAt: time.Now().UTC(),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// SetCurrentJob records the job the worker is processing, or clears it
// with an empty string. The next report carries the new value.
func (l *Liveness) SetCurrentJob(jobID string) {
	l.mu.Lock()
	l.currentJob = jobID
	l.mu.Unlock()
}

// Start launches the liveness loop and reports once immediately.
func (l *Liveness) Start(ctx context.Context) {
	go l.run(ctx)
}

// Stop halts the loop and removes the worker's record from the registry.
func (l *Liveness) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })

	select {
	case <-l.doneCh:
	case <-time.After(stopTimeout):
		l.logger.Warn("Worker liveness loop did not stop in time", "worker_id", l.workerID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := l.registry.Deregister(ctx, l.workerID); err != nil {
		l.logger.Warn("Failed to deregister worker", "worker_id", l.workerID, "error", err)
	}
}

func (l *Liveness) run(ctx context.Context) {
	defer close(l.doneCh)

	l.report(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.report(ctx)
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (l *Liveness) report(ctx context.Context) {
	l.mu.Lock()
	jobID := l.currentJob
	l.mu.Unlock()

	err := l.registry.Report(ctx, fleet.Status{
		WorkerID:     l.workerID,
		JobType:      l.jobType,
		CurrentJobID: jobID,
		StartedAt:    l.startedAt,
	})
	if err != nil {
		l.logger.Warn("Worker liveness report failed", "worker_id", l.workerID, "error", err)
	}
}
