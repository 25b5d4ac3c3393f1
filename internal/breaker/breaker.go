// Package breaker implements a per-source circuit breaker backed by the
// sources table, so the failure streak and pause window are shared by
// every worker in the fleet.
package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/mintmarkhq/mintmark/internal/database"
	"github.com/mintmarkhq/mintmark/internal/logger"
	"github.com/mintmarkhq/mintmark/internal/metrics"
)

// Breaker trips a source after a run of consecutive failures and pauses
// it for a cooldown. Successes reset the streak and clear any pause.
type Breaker struct {
	sources           database.SourceStore
	threshold         int
	cooldown          time.Duration
	rateLimitCooldown time.Duration
	metrics           *metrics.Metrics
	logger            logger.Interface

	now func() time.Time
}

// Config holds breaker tuning.
type Config struct {
	// Threshold is the consecutive failure count that trips the breaker.
	Threshold int
	// Cooldown is the pause applied when the breaker trips.
	Cooldown time.Duration
	// RateLimitCooldown is the longer pause applied on a provider
	// rate-limit signal, independent of the failure streak.
	RateLimitCooldown time.Duration
}

// New creates a breaker over the given source store.
func New(sources database.SourceStore, cfg Config, m *metrics.Metrics, log logger.Interface) *Breaker {
	return &Breaker{
		sources:           sources,
		threshold:         cfg.Threshold,
		cooldown:          cfg.Cooldown,
		rateLimitCooldown: cfg.RateLimitCooldown,
		metrics:           m,
		logger:            log,
		now:               time.Now,
	}
}

// Allow reports whether the source may be collected from. When blocked
// by an active pause, the remaining wait is returned so callers can
// schedule a retry past it.
func (b *Breaker) Allow(ctx context.Context, sourceID string) (bool, time.Duration, error) {
	source, err := b.sources.GetByID(ctx, sourceID)
	if err != nil {
		return false, 0, fmt.Errorf("failed to check source availability: %w", err)
	}

	if source == nil {
		return false, 0, fmt.Errorf("source not found: %s", sourceID)
	}

	now := b.now()
	if !source.Enabled {
		return false, 0, nil
	}
	if remaining := source.PauseRemaining(now); remaining > 0 {
		return false, remaining, nil
	}

	return true, 0, nil
}

// ReportSuccess records a successful collection, resetting the failure
// streak and clearing any pause.
func (b *Breaker) ReportSuccess(ctx context.Context, sourceID string) error {
	if err := b.sources.ReportSuccess(ctx, sourceID); err != nil {
		return fmt.Errorf("failed to report source success: %w", err)
	}
	return nil
}

// ReportFailure records a failed collection. When the streak reaches the
// threshold the source is paused for the cooldown.
func (b *Breaker) ReportFailure(ctx context.Context, sourceID string) error {
	streak, err := b.sources.ReportFailure(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("failed to report source failure: %w", err)
	}

	if streak >= b.threshold {
		if pauseErr := b.sources.Pause(ctx, sourceID, b.cooldown); pauseErr != nil {
			return fmt.Errorf("failed to pause tripped source: %w", pauseErr)
		}
		b.metrics.BreakerTripsTotal.WithLabelValues(sourceID).Inc()
		b.logger.Warn("Circuit breaker tripped",
			"source_id", sourceID,
			"failure_streak", streak,
			"cooldown", b.cooldown.String())
	}

	return nil
}

// ReportRateLimited pauses the source for the rate-limit cooldown
// immediately, regardless of the failure streak. Provider throttling is
// a signal about the whole fleet's request volume, not one bad call.
func (b *Breaker) ReportRateLimited(ctx context.Context, sourceID string) error {
	if err := b.sources.Pause(ctx, sourceID, b.rateLimitCooldown); err != nil {
		return fmt.Errorf("failed to pause rate-limited source: %w", err)
	}

	b.metrics.BreakerTripsTotal.WithLabelValues(sourceID).Inc()
	b.logger.Warn("Source paused after provider rate limit",
		"source_id", sourceID,
		"cooldown", b.rateLimitCooldown.String())

	return nil
}

// Disable turns the source off entirely. Used for unrecoverable
// conditions such as rejected credentials.
func (b *Breaker) Disable(ctx context.Context, sourceID string) error {
	if err := b.sources.Disable(ctx, sourceID); err != nil {
		return fmt.Errorf("failed to disable source: %w", err)
	}

	b.logger.Error("Source disabled", "source_id", sourceID)

	return nil
}
