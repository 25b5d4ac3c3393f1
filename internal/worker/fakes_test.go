package worker_test

import (
	"context"
	"sync"
	"time"

	"github.com/mintmarkhq/mintmark/internal/collector"
	"github.com/mintmarkhq/mintmark/internal/domain"
)

// statusChange records one SetStatus call.
type statusChange struct {
	jobID  string
	status string
	msg    *string
}

// retryCall records one MarkRetryable/MarkRetryableAfter call.
type retryCall struct {
	jobID string
	base  time.Duration
	max   time.Duration
	delay time.Duration
	fixed bool
}

type fakeJobStore struct {
	mu sync.Mutex

	claims       []*domain.Job
	claimErr     error
	heartbeats   int
	heartbeatErr error
	statuses     []statusChange
	retries      []retryCall
	reclaimCount int
	reclaimErr   error
}

func (f *fakeJobStore) ClaimNext(_ context.Context, workerID, jobType string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if len(f.claims) == 0 {
		return nil, errNoJob
	}

	job := f.claims[0]
	f.claims = f.claims[1:]
	job.Status = domain.JobStatusRunning
	job.LockedBy = &workerID
	_ = jobType
	return job, nil
}

func (f *fakeJobStore) Heartbeat(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return f.heartbeatErr
}

func (f *fakeJobStore) heartbeatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats
}

func (f *fakeJobStore) SetStatus(_ context.Context, id, status string, msg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, statusChange{jobID: id, status: status, msg: msg})
	return nil
}

func (f *fakeJobStore) MarkRetryable(_ context.Context, id string, base, maxDelay time.Duration, _ *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries = append(f.retries, retryCall{jobID: id, base: base, max: maxDelay})
	return nil
}

func (f *fakeJobStore) MarkRetryableAfter(_ context.Context, id string, delay time.Duration, _ *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries = append(f.retries, retryCall{jobID: id, delay: delay, fixed: true})
	return nil
}

func (f *fakeJobStore) ReclaimStuck(context.Context, time.Duration) (int, error) {
	return f.reclaimCount, f.reclaimErr
}

func (f *fakeJobStore) GetByID(context.Context, string) (*domain.Job, error) {
	return nil, nil
}

type fakeSourceStore struct {
	source   *domain.Source
	rules    []*domain.SourceRule
	disabled []string
}

func (f *fakeSourceStore) GetByID(context.Context, string) (*domain.Source, error) {
	return f.source, nil
}

func (f *fakeSourceStore) ReportSuccess(context.Context, string) error { return nil }

func (f *fakeSourceStore) ReportFailure(context.Context, string) (int, error) { return 1, nil }

func (f *fakeSourceStore) Pause(context.Context, string, time.Duration) error { return nil }

func (f *fakeSourceStore) Disable(_ context.Context, id string) error {
	f.disabled = append(f.disabled, id)
	return nil
}

func (f *fakeSourceStore) GetRules(context.Context, string) ([]*domain.SourceRule, error) {
	return f.rules, nil
}

type fakePricePointStore struct {
	upserted []*domain.PricePoint
	listed   []*domain.PricePoint
}

func (f *fakePricePointStore) Upsert(_ context.Context, p *domain.PricePoint) error {
	f.upserted = append(f.upserted, p)
	return nil
}

func (f *fakePricePointStore) ListByIntake(context.Context, string) ([]*domain.PricePoint, error) {
	if f.listed != nil {
		return f.listed, nil
	}
	return f.upserted, nil
}

func (f *fakePricePointStore) CountSources(context.Context, string) (int, error) {
	return 1, nil
}

type fakeValuationStore struct {
	upserted  []*domain.Valuation
	valuation *domain.Valuation
}

func (f *fakeValuationStore) Upsert(_ context.Context, v *domain.Valuation) error {
	f.upserted = append(f.upserted, v)
	return nil
}

func (f *fakeValuationStore) GetByIntake(context.Context, string) (*domain.Valuation, error) {
	return f.valuation, nil
}

type fakeIntakeStore struct {
	attribution *domain.Attribution
	images      []*domain.CoinMedia
}

func (f *fakeIntakeStore) GetAttribution(context.Context, string) (*domain.Attribution, error) {
	return f.attribution, nil
}

func (f *fakeIntakeStore) GetCoinImages(context.Context, string) ([]*domain.CoinMedia, error) {
	return f.images, nil
}

type fakeEventStore struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEventStore) Insert(_ context.Context, _, _, message string, _ domain.JSONBMap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, message)
	return nil
}

func (f *fakeEventStore) ListByJob(context.Context, string) ([]*domain.JobEvent, error) {
	return nil, nil
}

type fakeCollector struct {
	listings []collector.Listing
	err      error
	calls    int
	exclude  []string
}

func (f *fakeCollector) Collect(_ context.Context, _ *domain.Source, _ collector.Query, excludeKeywords []string) ([]collector.Listing, error) {
	f.calls++
	f.exclude = excludeKeywords
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

type fakeGradeStore struct {
	estimates       []*domain.GradeEstimate
	recommendations []*domain.GradingRecommendation
	services        []*domain.GradingService
	policy          *domain.ShipPolicy
	comps           []*domain.CertifiedComp
	multipliers     map[string]float64
}

func (f *fakeGradeStore) UpsertEstimate(_ context.Context, e *domain.GradeEstimate) error {
	f.estimates = append(f.estimates, e)
	return nil
}

func (f *fakeGradeStore) GetEstimate(context.Context, string, string) (*domain.GradeEstimate, error) {
	return nil, nil
}

func (f *fakeGradeStore) UpsertRecommendation(_ context.Context, rec *domain.GradingRecommendation) error {
	f.recommendations = append(f.recommendations, rec)
	return nil
}

func (f *fakeGradeStore) ListServices(context.Context) ([]*domain.GradingService, error) {
	return f.services, nil
}

func (f *fakeGradeStore) GetDefaultShipPolicy(context.Context) (*domain.ShipPolicy, error) {
	return f.policy, nil
}

func (f *fakeGradeStore) GetCertifiedComps(context.Context, string) ([]*domain.CertifiedComp, error) {
	return f.comps, nil
}

func (f *fakeGradeStore) GetMultipliers(context.Context, *string, *string) (map[string]float64, error) {
	return f.multipliers, nil
}

type fakeMediaFetcher struct {
	files map[string][]byte
}

func (f *fakeMediaFetcher) Fetch(_ context.Context, path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, errMediaMissing
	}
	return data, nil
}
