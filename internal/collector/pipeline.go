package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mintmarkhq/mintmark/internal/breaker"
	"github.com/mintmarkhq/mintmark/internal/cache"
	"github.com/mintmarkhq/mintmark/internal/domain"
	"github.com/mintmarkhq/mintmark/internal/logger"
	"github.com/mintmarkhq/mintmark/internal/metrics"
	"github.com/mintmarkhq/mintmark/internal/ratelimit"
)

// Provider searches an external listing service.
type Provider interface {
	Search(ctx context.Context, q Query, priceType string) ([]Listing, error)
}

// Pipeline runs a collection end to end: circuit breaker check, cache
// lookup, rate limiting, provider fetch for sold and ask listings,
// exclude-keyword filtering, cache store, and breaker reporting.
type Pipeline struct {
	provider Provider
	breaker  *breaker.Breaker
	cache    *cache.Cache
	limits   *ratelimit.Registry
	metrics  *metrics.Metrics
	logger   logger.Interface
}

// NewPipeline creates a collection pipeline.
func NewPipeline(
	provider Provider,
	brk *breaker.Breaker,
	c *cache.Cache,
	limits *ratelimit.Registry,
	m *metrics.Metrics,
	log logger.Interface,
) *Pipeline {
	return &Pipeline{
		provider: provider,
		breaker:  brk,
		cache:    c,
		limits:   limits,
		metrics:  m,
		logger:   log,
	}
}

// Collect fetches, filters, and returns listings for a query against one
// source. Source health is updated as a side effect: success resets the
// failure streak, failures count toward the breaker threshold, provider
// throttling pauses the source, and rejected credentials disable it.
func (p *Pipeline) Collect(
	ctx context.Context,
	source *domain.Source,
	q Query,
	excludeKeywords []string,
) ([]Listing, error) {
	allowed, remaining, err := p.breaker.Allow(ctx, source.ID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, &SourceUnavailableError{SourceID: source.ID, Remaining: remaining}
	}

	key := cacheKey(source.ID, q)
	if cached, ok := p.cache.Get(key); ok {
		if listings, ok := cached.([]Listing); ok {
			p.metrics.CacheHitsTotal.Inc()
			p.logger.Debug("Cache hit", "source_id", source.ID, "cache_key", key)
			return listings, nil
		}
	}

	limiter := p.limits.ForSource(source.ID, source.RateLimitPerMinute)
	if waitErr := limiter.Wait(ctx); waitErr != nil {
		return nil, fmt.Errorf("rate limit wait interrupted: %w", waitErr)
	}

	listings, fetchErr := p.fetch(ctx, q)
	if fetchErr != nil {
		p.reportFetchFailure(ctx, source.ID, fetchErr)
		return nil, fetchErr
	}
	p.metrics.ProviderRequestsTotal.WithLabelValues(source.ID, "success").Inc()

	filtered, dropped := FilterExcluded(listings, excludeKeywords)
	if dropped > 0 {
		p.logger.Info("Filtered excluded listings",
			"source_id", source.ID, "dropped", dropped, "kept", len(filtered))
	}

	p.cache.Set(key, filtered)

	if successErr := p.breaker.ReportSuccess(ctx, source.ID); successErr != nil {
		p.logger.Warn("Failed to report source success", "error", successErr)
	}

	return filtered, nil
}

// fetch retrieves sold listings, then current asking listings.
func (p *Pipeline) fetch(ctx context.Context, q Query) ([]Listing, error) {
	sold, err := p.provider.Search(ctx, q, domain.PriceTypeSold)
	if err != nil {
		return nil, err
	}

	ask, err := p.provider.Search(ctx, q, domain.PriceTypeAsk)
	if err != nil {
		return nil, err
	}

	return append(sold, ask...), nil
}

// reportFetchFailure updates source health for a failed provider call.
func (p *Pipeline) reportFetchFailure(ctx context.Context, sourceID string, fetchErr error) {
	var reportErr error
	outcome := "error"
	switch {
	case errors.Is(fetchErr, ErrAuthFailed):
		outcome = "auth_failed"
		reportErr = p.breaker.Disable(ctx, sourceID)
	case errors.Is(fetchErr, ErrRateLimited):
		outcome = "rate_limited"
		reportErr = p.breaker.ReportRateLimited(ctx, sourceID)
	default:
		reportErr = p.breaker.ReportFailure(ctx, sourceID)
	}
	p.metrics.ProviderRequestsTotal.WithLabelValues(sourceID, outcome).Inc()

	if reportErr != nil {
		p.logger.Warn("Failed to report source failure",
			"source_id", sourceID, "error", reportErr)
	}
}

// cacheKey builds a deterministic key from the source and the
// attribution fields that shape the provider query.
func cacheKey(sourceID string, q Query) string {
	year := ""
	if q.Year != nil {
		year = fmt.Sprintf("%d", *q.Year)
	}
	return strings.Join([]string{
		sourceID,
		year,
		strValue(q.Mintmark),
		strValue(q.Denomination),
		strValue(q.Series),
		strValue(q.Title),
	}, "|")
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
