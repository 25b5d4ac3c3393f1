package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintmarkhq/mintmark/internal/collector"
	"github.com/mintmarkhq/mintmark/internal/config"
	"github.com/mintmarkhq/mintmark/internal/database"
	"github.com/mintmarkhq/mintmark/internal/domain"
	"github.com/mintmarkhq/mintmark/internal/logger"
	"github.com/mintmarkhq/mintmark/internal/metrics"
	"github.com/mintmarkhq/mintmark/internal/valuation"
	"github.com/mintmarkhq/mintmark/internal/worker"
)

var (
	errNoJob        = database.ErrNoJobAvailable
	errMediaMissing = errors.New("media not found")
)

func testWorkerConfig() config.WorkerConfig {
	return config.WorkerConfig{
		ID:                "worker-test",
		PollInterval:      10 * time.Millisecond,
		LockTimeout:       5 * time.Minute,
		ReclaimInterval:   time.Minute,
		JobHeartbeat:      10 * time.Millisecond,
		WorkerHeartbeat:   10 * time.Millisecond,
		RetryBaseDelay:    5 * time.Minute,
		RetryMaxDelay:     2 * time.Hour,
		RateLimitCooldown: time.Hour,
	}
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }

func pricingJob() *domain.Job {
	return &domain.Job{
		ID:       "job-1",
		JobType:  domain.JobTypePricing,
		IntakeID: "intake-1",
		SourceID: strPtr("src-1"),
		Status:   domain.JobStatusRunning,
	}
}

func enabledSource() *domain.Source {
	return &domain.Source{
		ID:                 "src-1",
		Name:               "Test Marketplace",
		Enabled:            true,
		RateLimitPerMinute: 60,
		ReputationWeight:   1.0,
	}
}

func testAttribution() *domain.Attribution {
	return &domain.Attribution{
		IntakeID:        "intake-1",
		Year:            intPtr(1916),
		Mintmark:        strPtr("D"),
		Denomination:    strPtr("dime"),
		Series:          strPtr("Mercury Dime"),
		KeywordsExclude: []string{"Replica"},
	}
}

type pricingFixture struct {
	jobs       *fakeJobStore
	sources    *fakeSourceStore
	points     *fakePricePointStore
	valuations *fakeValuationStore
	intakes    *fakeIntakeStore
	events     *fakeEventStore
	coll       *fakeCollector
	processor  *worker.Processor
}

func newPricingFixture(coll *fakeCollector) *pricingFixture {
	f := &pricingFixture{
		jobs:       &fakeJobStore{},
		sources:    &fakeSourceStore{source: enabledSource()},
		points:     &fakePricePointStore{},
		valuations: &fakeValuationStore{},
		intakes:    &fakeIntakeStore{attribution: testAttribution()},
		events:     &fakeEventStore{},
		coll:       coll,
	}

	log := logger.NewNoOp()
	f.processor = worker.NewProcessor(
		f.jobs, f.sources, f.points, f.valuations, f.intakes,
		worker.NewEvents(f.events, log),
		f.coll,
		valuation.NewEngine(log),
		testWorkerConfig(),
		testMetrics(),
		log,
	)
	return f
}

func soldListing(id string, priceCents int64) collector.Listing {
	return collector.Listing{
		ExternalID: id,
		Title:      "1916-D Mercury Dime",
		URL:        "https://market.example/item/" + id,
		PriceCents: priceCents,
		Currency:   "USD",
		PriceType:  domain.PriceTypeSold,
	}
}

func TestProcessor_SuccessPersistsAndValuates(t *testing.T) {
	f := newPricingFixture(&fakeCollector{listings: []collector.Listing{
		soldListing("a", 5000),
		soldListing("b", 5200),
		soldListing("c", 4800),
	}})

	status, err := f.processor.Process(context.Background(), pricingJob())
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, status)

	require.Len(t, f.points.upserted, 3)
	assert.Equal(t, "ext_a", f.points.upserted[0].DedupeKey)
	assert.Equal(t, "intake-1", f.points.upserted[0].IntakeID)
	assert.Equal(t, "src-1", f.points.upserted[0].SourceID)

	require.Len(t, f.valuations.upserted, 1)
	assert.NotEmpty(t, f.valuations.upserted[0].ID, "valuation must reach storage with a row id")
	assert.Equal(t, 3, f.valuations.upserted[0].CompCount)

	require.Len(t, f.jobs.statuses, 1)
	assert.Equal(t, domain.JobStatusSucceeded, f.jobs.statuses[0].status)
}

func TestProcessor_EmptyResultSucceeds(t *testing.T) {
	f := newPricingFixture(&fakeCollector{})

	status, err := f.processor.Process(context.Background(), pricingJob())
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, status)

	assert.Empty(t, f.points.upserted)
	assert.Empty(t, f.valuations.upserted, "no valuation recompute without new listings")
}

func TestProcessor_MergesExcludeKeywords(t *testing.T) {
	f := newPricingFixture(&fakeCollector{})
	f.sources.rules = []*domain.SourceRule{
		{SourceID: "src-1", RuleType: domain.RuleTypeExcludeKeywords, RuleValue: "copy", Active: true},
		{SourceID: "src-1", RuleType: domain.RuleTypeExcludeKeywords, RuleValue: "replica", Active: true},
		{SourceID: "src-1", RuleType: domain.RuleTypeExcludeKeywords, RuleValue: "inactive", Active: false},
	}

	_, err := f.processor.Process(context.Background(), pricingJob())
	require.NoError(t, err)

	// Attribution's "Replica" deduplicates against the rule's "replica";
	// the inactive rule is ignored.
	assert.ElementsMatch(t, []string{"copy", "replica"}, f.coll.exclude)
}

func TestProcessor_MissingSourceFailsTerminally(t *testing.T) {
	f := newPricingFixture(&fakeCollector{})

	job := pricingJob()
	job.SourceID = nil

	status, err := f.processor.Process(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, domain.JobStatusFailed, status)
	assert.Zero(t, f.coll.calls)

	require.Len(t, f.jobs.statuses, 1)
	require.NotNil(t, f.jobs.statuses[0].msg)
	assert.Contains(t, *f.jobs.statuses[0].msg, "no source")
}

func TestProcessor_DisabledSourceFailsTerminally(t *testing.T) {
	f := newPricingFixture(&fakeCollector{})
	f.sources.source.Enabled = false

	status, _ := f.processor.Process(context.Background(), pricingJob())
	assert.Equal(t, domain.JobStatusFailed, status)
	assert.Zero(t, f.coll.calls)
}

func TestProcessor_AuthFailureFailsTerminally(t *testing.T) {
	f := newPricingFixture(&fakeCollector{err: collector.ErrAuthFailed})

	status, err := f.processor.Process(context.Background(), pricingJob())
	require.Error(t, err)
	assert.Equal(t, domain.JobStatusFailed, status)
	assert.Empty(t, f.jobs.retries)
}

func TestProcessor_RateLimitReschedulesLong(t *testing.T) {
	f := newPricingFixture(&fakeCollector{err: collector.ErrRateLimited})

	status, _ := f.processor.Process(context.Background(), pricingJob())
	assert.Equal(t, domain.JobStatusRetryable, status)

	require.Len(t, f.jobs.retries, 1)
	assert.True(t, f.jobs.retries[0].fixed)
	assert.Equal(t, time.Hour, f.jobs.retries[0].delay)
}

func TestProcessor_UnavailableSourceUsesRemainingPause(t *testing.T) {
	f := newPricingFixture(&fakeCollector{err: &collector.SourceUnavailableError{
		SourceID:  "src-1",
		Remaining: 4 * time.Minute,
	}})

	status, _ := f.processor.Process(context.Background(), pricingJob())
	assert.Equal(t, domain.JobStatusRetryable, status)

	require.Len(t, f.jobs.retries, 1)
	assert.Equal(t, 4*time.Minute, f.jobs.retries[0].delay)
}

func TestProcessor_UnavailableSourceDelayFloor(t *testing.T) {
	f := newPricingFixture(&fakeCollector{err: &collector.SourceUnavailableError{
		SourceID:  "src-1",
		Remaining: time.Second,
	}})

	_, _ = f.processor.Process(context.Background(), pricingJob())

	require.Len(t, f.jobs.retries, 1)
	assert.Equal(t, 30*time.Second, f.jobs.retries[0].delay)
}

func TestProcessor_TransientErrorBacksOff(t *testing.T) {
	f := newPricingFixture(&fakeCollector{err: collector.Transient(errors.New("connection reset"))})

	status, _ := f.processor.Process(context.Background(), pricingJob())
	assert.Equal(t, domain.JobStatusRetryable, status)

	require.Len(t, f.jobs.retries, 1)
	assert.False(t, f.jobs.retries[0].fixed)
	assert.Equal(t, 5*time.Minute, f.jobs.retries[0].base)
	assert.Equal(t, 2*time.Hour, f.jobs.retries[0].max)
}

func TestProcessor_UntypedTransientMessageBacksOff(t *testing.T) {
	f := newPricingFixture(&fakeCollector{err: errors.New("upstream returned 503")})

	status, _ := f.processor.Process(context.Background(), pricingJob())
	assert.Equal(t, domain.JobStatusRetryable, status)
}

func TestProcessor_OpaqueErrorFailsTerminally(t *testing.T) {
	f := newPricingFixture(&fakeCollector{err: errors.New("schema mismatch in provider payload")})

	status, _ := f.processor.Process(context.Background(), pricingJob())
	assert.Equal(t, domain.JobStatusFailed, status)
}

func TestProcessor_RejectsForeignJobType(t *testing.T) {
	f := newPricingFixture(&fakeCollector{})

	job := pricingJob()
	job.JobType = domain.JobTypeGrading

	_, err := f.processor.Process(context.Background(), job)
	require.Error(t, err)
	assert.Empty(t, f.jobs.statuses, "a mis-typed job must not be transitioned")
}
