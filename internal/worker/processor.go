package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mintmarkhq/mintmark/internal/collector"
	"github.com/mintmarkhq/mintmark/internal/config"
	"github.com/mintmarkhq/mintmark/internal/database"
	"github.com/mintmarkhq/mintmark/internal/domain"
	"github.com/mintmarkhq/mintmark/internal/logger"
	"github.com/mintmarkhq/mintmark/internal/metrics"
	"github.com/mintmarkhq/mintmark/internal/valuation"
)

// Collector abstracts the collection pipeline for the processor.
type Collector interface {
	Collect(ctx context.Context, source *domain.Source, q collector.Query, excludeKeywords []string) ([]collector.Listing, error)
}

// Processor executes pricing jobs: resolve source and attribution,
// collect listings, persist price points, and recompute the valuation.
type Processor struct {
	jobs       database.JobStore
	sources    database.SourceStore
	points     database.PricePointStore
	valuations database.ValuationStore
	intakes    database.IntakeStore
	events     *Events
	collector  Collector
	engine     *valuation.Engine
	cfg        config.WorkerConfig
	metrics    *metrics.Metrics
	logger     logger.Interface
}

// NewProcessor creates a pricing job processor.
func NewProcessor(
	jobs database.JobStore,
	sources database.SourceStore,
	points database.PricePointStore,
	valuations database.ValuationStore,
	intakes database.IntakeStore,
	events *Events,
	coll Collector,
	engine *valuation.Engine,
	cfg config.WorkerConfig,
	m *metrics.Metrics,
	log logger.Interface,
) *Processor {
	return &Processor{
		jobs:       jobs,
		sources:    sources,
		points:     points,
		valuations: valuations,
		intakes:    intakes,
		events:     events,
		collector:  coll,
		engine:     engine,
		cfg:        cfg,
		metrics:    m,
		logger:     log,
	}
}

// JobType returns the job type this processor claims.
func (p *Processor) JobType() string {
	return domain.JobTypePricing
}

// Process runs one claimed pricing job to completion and reports the
// outcome to the queue. The returned status is the job's new status.
func (p *Processor) Process(ctx context.Context, job *domain.Job) (string, error) {
	if job.JobType != domain.JobTypePricing {
		return "", fmt.Errorf("unexpected job type %q for pricing processor", job.JobType)
	}

	p.events.Log(ctx, job.ID, "info", "pricing job started", nil)

	runErr := p.run(ctx, job)
	status := finishJob(ctx, p.jobs, p.events, p.cfg, job, runErr, p.logger)

	p.metrics.JobsProcessedTotal.WithLabelValues(job.JobType, status).Inc()

	return status, runErr
}

func (p *Processor) run(ctx context.Context, job *domain.Job) error {
	if job.SourceID == nil || *job.SourceID == "" {
		return &configError{reason: "pricing job has no source"}
	}

	source, err := p.sources.GetByID(ctx, *job.SourceID)
	if err != nil {
		return fmt.Errorf("failed to resolve source: %w", err)
	}
	if source == nil {
		return &configError{reason: fmt.Sprintf("source %s not found", *job.SourceID)}
	}
	if !source.Enabled {
		return &configError{reason: fmt.Sprintf("source %s is disabled", source.ID)}
	}

	attribution, err := p.intakes.GetAttribution(ctx, job.IntakeID)
	if err != nil {
		return fmt.Errorf("failed to load attribution: %w", err)
	}
	if attribution == nil {
		return &configError{reason: fmt.Sprintf("intake %s has no attribution", job.IntakeID)}
	}

	q := collector.QueryFromAttribution(attribution, source.ID, job.ID)
	q = applyQueryParams(q, job.QueryParams)

	rules, err := p.sources.GetRules(ctx, source.ID)
	if err != nil {
		return fmt.Errorf("failed to load source rules: %w", err)
	}
	exclude := mergeExcludeKeywords(rules, attribution.KeywordsExclude)

	listings, err := p.collector.Collect(ctx, source, q, exclude)
	if err != nil {
		return err
	}

	if len(listings) == 0 {
		p.events.Log(ctx, job.ID, "info", "no listings found", nil)
		return nil
	}

	upserted := 0
	for i := range listings {
		point := toPricePoint(job, q, &listings[i])
		if upsertErr := p.points.Upsert(ctx, point); upsertErr != nil {
			return fmt.Errorf("failed to persist price point: %w", upsertErr)
		}
		upserted++
	}
	p.metrics.PricePointsUpserted.Add(float64(upserted))

	all, err := p.points.ListByIntake(ctx, job.IntakeID)
	if err != nil {
		return fmt.Errorf("failed to load price points for valuation: %w", err)
	}

	val := p.engine.Compute(job.IntakeID, all)
	if upsertErr := p.valuations.Upsert(ctx, val); upsertErr != nil {
		return fmt.Errorf("failed to persist valuation: %w", upsertErr)
	}

	p.events.Log(ctx, job.ID, "info", "pricing job finished", domain.JSONBMap{
		"listings_collected": len(listings),
		"price_points":       upserted,
		"comp_count":         val.CompCount,
	})

	return nil
}

// applyQueryParams overlays job-supplied parameters onto the
// attribution-derived query.
func applyQueryParams(q collector.Query, params domain.JSONBMap) collector.Query {
	if len(params) == 0 {
		return q
	}

	if year, ok := intParam(params, "year"); ok {
		q.Year = &year
	}
	for key, dst := range map[string]**string{
		"mintmark":     &q.Mintmark,
		"denomination": &q.Denomination,
		"series":       &q.Series,
		"title":        &q.Title,
	} {
		if v, ok := params[key].(string); ok && v != "" {
			value := v
			*dst = &value
		}
	}

	if extra, ok := params["keywords_include"].([]any); ok {
		for _, item := range extra {
			if s, ok := item.(string); ok && s != "" {
				q.KeywordsInclude = append(q.KeywordsInclude, s)
			}
		}
	}

	return q
}

// intParam reads a numeric JSONB value, which the JSON decoder delivers
// as float64.
func intParam(params domain.JSONBMap, key string) (int, bool) {
	switch v := params[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// mergeExcludeKeywords unions active source exclude rules with the
// attribution's exclude keywords, normalized and deduplicated.
func mergeExcludeKeywords(rules []*domain.SourceRule, attributionExclude []string) []string {
	seen := make(map[string]struct{})
	var merged []string

	add := func(raw string) {
		keyword := strings.ToLower(strings.TrimSpace(raw))
		if keyword == "" {
			return
		}
		if _, dup := seen[keyword]; dup {
			return
		}
		seen[keyword] = struct{}{}
		merged = append(merged, keyword)
	}

	for _, rule := range rules {
		if rule.Active && rule.RuleType == domain.RuleTypeExcludeKeywords {
			add(rule.RuleValue)
		}
	}
	for _, keyword := range attributionExclude {
		add(keyword)
	}

	return merged
}

// toPricePoint normalizes one provider listing into a price point row.
func toPricePoint(job *domain.Job, q collector.Query, l *collector.Listing) *domain.PricePoint {
	var externalID *string
	if l.ExternalID != "" {
		externalID = &l.ExternalID
	}

	now := time.Now().UTC()

	return &domain.PricePoint{
		ID:            uuid.NewString(),
		IntakeID:      job.IntakeID,
		SourceID:      q.SourceID,
		JobID:         &job.ID,
		DedupeKey:     collector.DedupeKey(*l),
		PriceCents:    l.PriceCents,
		PriceType:     l.PriceType,
		ListingURL:    l.URL,
		ListingTitle:  l.Title,
		ListingDate:   l.EndedAt,
		ObservedAt:    &now,
		MatchStrength: collector.MatchStrength(q, l.Title),
		ExternalID:    externalID,
		RawPayload:    l.RawPayload,
	}
}
