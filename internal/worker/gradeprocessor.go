package worker

import (
	"context"
	"fmt"

	"github.com/mintmarkhq/mintmark/internal/collector"
	"github.com/mintmarkhq/mintmark/internal/config"
	"github.com/mintmarkhq/mintmark/internal/database"
	"github.com/mintmarkhq/mintmark/internal/domain"
	"github.com/mintmarkhq/mintmark/internal/grading"
	"github.com/mintmarkhq/mintmark/internal/logger"
	"github.com/mintmarkhq/mintmark/internal/metrics"
)

// MediaFetcher loads raw image bytes for a stored coin photo.
type MediaFetcher interface {
	Fetch(ctx context.Context, storagePath string) ([]byte, error)
}

// GradeProcessor executes grading jobs: estimate a grade from the
// intake's images, then compute grading ROI recommendations.
type GradeProcessor struct {
	jobs        database.JobStore
	grades      database.GradeStore
	valuations  database.ValuationStore
	intakes     database.IntakeStore
	events      *Events
	media       MediaFetcher
	estimator   *grading.Estimator
	recommender *grading.RecommendationEngine
	cfg         config.WorkerConfig
	metrics     *metrics.Metrics
	logger      logger.Interface
}

// NewGradeProcessor creates a grading job processor.
func NewGradeProcessor(
	jobs database.JobStore,
	grades database.GradeStore,
	valuations database.ValuationStore,
	intakes database.IntakeStore,
	events *Events,
	media MediaFetcher,
	estimator *grading.Estimator,
	recommender *grading.RecommendationEngine,
	cfg config.WorkerConfig,
	m *metrics.Metrics,
	log logger.Interface,
) *GradeProcessor {
	return &GradeProcessor{
		jobs:        jobs,
		grades:      grades,
		valuations:  valuations,
		intakes:     intakes,
		events:      events,
		media:       media,
		estimator:   estimator,
		recommender: recommender,
		cfg:         cfg,
		metrics:     m,
		logger:      log,
	}
}

// JobType returns the job type this processor claims.
func (p *GradeProcessor) JobType() string {
	return domain.JobTypeGrading
}

// Process runs one claimed grading job to completion and reports the
// outcome to the queue. The returned status is the job's new status.
func (p *GradeProcessor) Process(ctx context.Context, job *domain.Job) (string, error) {
	if job.JobType != domain.JobTypeGrading {
		return "", fmt.Errorf("unexpected job type %q for grading processor", job.JobType)
	}

	p.events.Log(ctx, job.ID, "info", "grading job started", nil)

	runErr := p.run(ctx, job)
	status := finishJob(ctx, p.jobs, p.events, p.cfg, job, runErr, p.logger)

	p.metrics.JobsProcessedTotal.WithLabelValues(job.JobType, status).Inc()

	return status, runErr
}

func (p *GradeProcessor) run(ctx context.Context, job *domain.Job) error {
	images, err := p.loadImages(ctx, job)
	if err != nil {
		return err
	}

	estimate, err := p.estimator.Estimate(job.IntakeID, images)
	if err != nil {
		return &configError{reason: fmt.Sprintf("unable to estimate grade: %v", err)}
	}

	if upsertErr := p.grades.UpsertEstimate(ctx, estimate); upsertErr != nil {
		return fmt.Errorf("failed to persist grade estimate: %w", upsertErr)
	}

	p.events.Log(ctx, job.ID, "info", "grade estimated", domain.JSONBMap{
		"grade_bucket": estimate.GradeBucket,
		"confidence":   estimate.Confidence,
	})

	return p.recommend(ctx, job, estimate)
}

// loadImages fetches the intake's photos. Individual fetch failures are
// skipped; zero usable images is a transient storage problem worth a
// retry, while an intake with no photos at all needs an operator.
func (p *GradeProcessor) loadImages(ctx context.Context, job *domain.Job) ([][]byte, error) {
	mediaRows, err := p.intakes.GetCoinImages(ctx, job.IntakeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list coin images: %w", err)
	}
	if len(mediaRows) == 0 {
		return nil, &configError{reason: fmt.Sprintf("intake %s has no images", job.IntakeID)}
	}

	var images [][]byte
	for _, row := range mediaRows {
		data, fetchErr := p.media.Fetch(ctx, row.StoragePath)
		if fetchErr != nil {
			p.logger.Warn("Failed to fetch coin image",
				"intake_id", job.IntakeID, "path", row.StoragePath, "error", fetchErr)
			continue
		}
		images = append(images, data)
	}

	if len(images) == 0 {
		return nil, collector.Transient(fmt.Errorf("no images retrievable for intake %s", job.IntakeID))
	}

	return images, nil
}

// recommend computes per-service ROI verdicts. Without a valuation there
// is no raw value to compare against, so recommendations are skipped
// rather than failing the job: the estimate alone is still useful.
func (p *GradeProcessor) recommend(ctx context.Context, job *domain.Job, estimate *domain.GradeEstimate) error {
	val, err := p.valuations.GetByIntake(ctx, job.IntakeID)
	if err != nil {
		return fmt.Errorf("failed to load valuation: %w", err)
	}
	if val == nil || val.PriceCentsMedian == nil || *val.PriceCentsMedian <= 0 {
		p.events.Log(ctx, job.ID, "warn", "no valuation available, skipping recommendations", nil)
		return nil
	}

	services, err := p.grades.ListServices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list grading services: %w", err)
	}

	policy, err := p.grades.GetDefaultShipPolicy(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ship policy: %w", err)
	}

	comps, err := p.grades.GetCertifiedComps(ctx, job.IntakeID)
	if err != nil {
		return fmt.Errorf("failed to load certified comps: %w", err)
	}

	multipliers, err := p.loadMultipliers(ctx, job.IntakeID)
	if err != nil {
		return err
	}

	recs, err := p.recommender.Compute(grading.RecommendationInput{
		IntakeID:    job.IntakeID,
		Estimate:    estimate,
		Valuation:   val,
		Services:    services,
		ShipPolicy:  policy,
		Comps:       comps,
		Multipliers: multipliers,
	})
	if err != nil {
		return fmt.Errorf("failed to compute recommendations: %w", err)
	}

	for _, rec := range recs {
		if upsertErr := p.grades.UpsertRecommendation(ctx, rec); upsertErr != nil {
			return fmt.Errorf("failed to persist recommendation: %w", upsertErr)
		}
	}

	p.events.Log(ctx, job.ID, "info", "grading job finished", domain.JSONBMap{
		"recommendations": len(recs),
	})

	return nil
}

// loadMultipliers resolves grade multipliers for the intake's
// denomination and series, most specific first.
func (p *GradeProcessor) loadMultipliers(ctx context.Context, intakeID string) (map[string]float64, error) {
	attribution, err := p.intakes.GetAttribution(ctx, intakeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attribution: %w", err)
	}

	var denomination, series *string
	if attribution != nil {
		denomination = attribution.Denomination
		series = attribution.Series
	}

	multipliers, err := p.grades.GetMultipliers(ctx, denomination, series)
	if err != nil {
		return nil, fmt.Errorf("failed to load grade multipliers: %w", err)
	}

	return multipliers, nil
}
