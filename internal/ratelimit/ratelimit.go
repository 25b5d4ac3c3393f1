// Package ratelimit enforces per-source request pacing for provider
// calls.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/mintmarkhq/mintmark/internal/logger"
)

// DefaultPerMinute is used when a source has no configured limit.
const DefaultPerMinute = 60

// Limiter paces requests against a single source.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a token-bucket limiter with capacity perMinute and
// a continuous refill of perMinute tokens per minute.
func NewLimiter(perMinute int) *Limiter {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
	}
}

// Wait blocks until a request is allowed or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed right now.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Registry hands out one limiter per source, keyed by source ID.
// Limiters are created on first use with the source's configured rate.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	logger   logger.Interface
}

// NewRegistry creates an empty limiter registry.
func NewRegistry(log logger.Interface) *Registry {
	return &Registry{
		limiters: make(map[string]*Limiter),
		logger:   log,
	}
}

// ForSource returns the limiter for a source, creating it with the given
// per-minute rate if it does not exist yet. The rate is fixed at first
// use; changing a source's limit requires a worker restart.
func (r *Registry) ForSource(sourceID string, perMinute int) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[sourceID]; ok {
		return l
	}

	l := NewLimiter(perMinute)
	r.limiters[sourceID] = l
	r.logger.Debug("Created rate limiter for source",
		"source_id", sourceID, "per_minute", perMinute)

	return l
}
