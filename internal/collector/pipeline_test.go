package collector_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mintmarkhq/mintmark/internal/breaker"
	"github.com/mintmarkhq/mintmark/internal/cache"
	"github.com/mintmarkhq/mintmark/internal/collector"
	"github.com/mintmarkhq/mintmark/internal/domain"
	"github.com/mintmarkhq/mintmark/internal/logger"
	"github.com/mintmarkhq/mintmark/internal/metrics"
	"github.com/mintmarkhq/mintmark/internal/ratelimit"
)

// stubProvider returns canned listings per price type, or an error.
type stubProvider struct {
	listings map[string][]collector.Listing
	err      error
	calls    int
}

func (s *stubProvider) Search(_ context.Context, _ collector.Query, priceType string) ([]collector.Listing, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.listings[priceType], nil
}

// memSourceStore is an in-memory SourceStore for pipeline tests.
type memSourceStore struct {
	source   domain.Source
	disabled bool
	paused   time.Duration
	failures int
}

func (m *memSourceStore) GetByID(_ context.Context, _ string) (*domain.Source, error) {
	s := m.source
	return &s, nil
}

func (m *memSourceStore) ReportSuccess(_ context.Context, _ string) error {
	m.source.FailureStreak = 0
	m.source.PausedUntil = nil
	return nil
}

func (m *memSourceStore) ReportFailure(_ context.Context, _ string) (int, error) {
	m.failures++
	m.source.FailureStreak++
	return m.source.FailureStreak, nil
}

func (m *memSourceStore) Pause(_ context.Context, _ string, cooldown time.Duration) error {
	m.paused = cooldown
	until := time.Now().Add(cooldown)
	m.source.PausedUntil = &until
	return nil
}

func (m *memSourceStore) Disable(_ context.Context, _ string) error {
	m.disabled = true
	m.source.Enabled = false
	return nil
}

func (m *memSourceStore) GetRules(_ context.Context, _ string) ([]*domain.SourceRule, error) {
	return nil, nil
}

func newPipeline(store *memSourceStore, provider collector.Provider) (*collector.Pipeline, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	brk := breaker.New(store, breaker.Config{
		Threshold:         5,
		Cooldown:          5 * time.Minute,
		RateLimitCooldown: time.Hour,
	}, m, logger.NewNoOp())

	p := collector.NewPipeline(
		provider,
		brk,
		cache.New(time.Minute, true),
		ratelimit.NewRegistry(logger.NewNoOp()),
		m,
		logger.NewNoOp(),
	)
	return p, m
}

func enabledSource() *memSourceStore {
	return &memSourceStore{source: domain.Source{
		ID:                 "source-1",
		Enabled:            true,
		RateLimitPerMinute: 6000,
	}}
}

func TestPipeline_CollectFiltersAndReportsSuccess(t *testing.T) {
	store := enabledSource()
	provider := &stubProvider{listings: map[string][]collector.Listing{
		domain.PriceTypeSold: {
			{ExternalID: "1", Title: "1909-S VDB Lincoln Cent", PriceCents: 125000, PriceType: "sold"},
			{ExternalID: "2", Title: "1909-S VDB COPY", PriceCents: 900, PriceType: "sold"},
			{ExternalID: "3", Title: "Fake 1909-S cent replica", PriceCents: 500, PriceType: "sold"},
		},
	}}
	p, _ := newPipeline(store, provider)

	src, _ := store.GetByID(context.Background(), "source-1")
	listings, err := p.Collect(context.Background(), src, collector.Query{
		Year: intPtr(1909),
	}, []string{"copy", "fake"})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(listings) != 1 {
		t.Fatalf("expected 1 listing after filtering, got %d", len(listings))
	}
	if listings[0].ExternalID != "1" {
		t.Errorf("wrong listing survived: %v", listings[0])
	}
	if store.source.FailureStreak != 0 {
		t.Error("success should keep the failure streak at zero")
	}
}

func TestPipeline_CollectUsesCache(t *testing.T) {
	store := enabledSource()
	provider := &stubProvider{listings: map[string][]collector.Listing{
		domain.PriceTypeSold: {{ExternalID: "1", Title: "1921 Morgan Dollar", PriceCents: 4500}},
	}}
	p, m := newPipeline(store, provider)

	src, _ := store.GetByID(context.Background(), "source-1")
	q := collector.Query{Year: intPtr(1921)}

	if _, err := p.Collect(context.Background(), src, q, nil); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	firstCalls := provider.calls

	if _, err := p.Collect(context.Background(), src, q, nil); err != nil {
		t.Fatalf("Collect() second call error = %v", err)
	}

	if provider.calls != firstCalls {
		t.Errorf("second Collect() should hit the cache, provider calls went %d -> %d",
			firstCalls, provider.calls)
	}
	if got := testutil.ToFloat64(m.CacheHitsTotal); got != 1 {
		t.Errorf("expected 1 recorded cache hit, got %v", got)
	}
	if got := testutil.ToFloat64(m.ProviderRequestsTotal.WithLabelValues("source-1", "success")); got != 1 {
		t.Errorf("expected 1 successful provider request, got %v", got)
	}
}

func TestPipeline_CollectBlockedByPause(t *testing.T) {
	store := enabledSource()
	until := time.Now().Add(30 * time.Minute)
	store.source.PausedUntil = &until
	provider := &stubProvider{}
	p, _ := newPipeline(store, provider)

	src, _ := store.GetByID(context.Background(), "source-1")
	_, err := p.Collect(context.Background(), src, collector.Query{}, nil)

	var unavailable *collector.SourceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected SourceUnavailableError, got %v", err)
	}
	if unavailable.Remaining <= 0 {
		t.Error("expected a positive remaining pause")
	}
	if provider.calls != 0 {
		t.Error("provider must not be called while the source is paused")
	}
}

func TestPipeline_AuthFailureDisablesSource(t *testing.T) {
	store := enabledSource()
	provider := &stubProvider{err: collector.ErrAuthFailed}
	p, m := newPipeline(store, provider)

	src, _ := store.GetByID(context.Background(), "source-1")
	_, err := p.Collect(context.Background(), src, collector.Query{}, nil)
	if !errors.Is(err, collector.ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if !store.disabled {
		t.Error("auth failure should disable the source")
	}
	if got := testutil.ToFloat64(m.ProviderRequestsTotal.WithLabelValues("source-1", "auth_failed")); got != 1 {
		t.Errorf("expected 1 auth_failed provider request, got %v", got)
	}
}

func TestPipeline_RateLimitPausesSource(t *testing.T) {
	store := enabledSource()
	provider := &stubProvider{err: collector.ErrRateLimited}
	p, _ := newPipeline(store, provider)

	src, _ := store.GetByID(context.Background(), "source-1")
	_, err := p.Collect(context.Background(), src, collector.Query{}, nil)
	if !errors.Is(err, collector.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if store.paused != time.Hour {
		t.Errorf("expected 1h pause, got %v", store.paused)
	}
}

func TestPipeline_TransientFailureCountsTowardBreaker(t *testing.T) {
	store := enabledSource()
	provider := &stubProvider{err: collector.Transient(errors.New("connection reset"))}
	p, _ := newPipeline(store, provider)

	src, _ := store.GetByID(context.Background(), "source-1")
	_, err := p.Collect(context.Background(), src, collector.Query{}, nil)
	if !collector.IsTransient(err) {
		t.Fatalf("expected TransientError, got %v", err)
	}
	if store.failures != 1 {
		t.Errorf("expected 1 recorded failure, got %d", store.failures)
	}
}
