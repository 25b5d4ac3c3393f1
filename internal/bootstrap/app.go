// Package bootstrap wires the application together: configuration,
// logger, PostgreSQL, Redis, metrics, and the worker loops built on top.
package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/mintmarkhq/mintmark/internal/breaker"
	"github.com/mintmarkhq/mintmark/internal/cache"
	"github.com/mintmarkhq/mintmark/internal/collector"
	"github.com/mintmarkhq/mintmark/internal/config"
	"github.com/mintmarkhq/mintmark/internal/database"
	"github.com/mintmarkhq/mintmark/internal/fleet"
	"github.com/mintmarkhq/mintmark/internal/grading"
	"github.com/mintmarkhq/mintmark/internal/logger"
	"github.com/mintmarkhq/mintmark/internal/media"
	"github.com/mintmarkhq/mintmark/internal/metrics"
	"github.com/mintmarkhq/mintmark/internal/ratelimit"
	"github.com/mintmarkhq/mintmark/internal/valuation"
	"github.com/mintmarkhq/mintmark/internal/worker"
)

// Production marketplace endpoints; the sandbox pair is used when
// marketplace.sandbox is set.
const (
	marketplaceBaseURL  = "https://api.ebay.com/buy/browse/v1"
	marketplaceTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"

	sandboxBaseURL  = "https://api.sandbox.ebay.com/buy/browse/v1"
	sandboxTokenURL = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
)

// App holds the initialized application dependencies.
type App struct {
	Config   *config.Config
	Logger   logger.Interface
	DB       *sqlx.DB
	Redis    *redis.Client
	Registry *fleet.Registry
	Metrics  *metrics.Metrics
	Cache    *cache.Cache

	Jobs       *database.JobRepository
	Sources    *database.SourceRepository
	Points     *database.PricePointRepository
	Valuations *database.ValuationRepository
	Grades     *database.GradeRepository
	Intakes    *database.IntakeRepository
	Events     *database.JobEventRepository
}

// New loads configuration and connects every backing service. Redis is
// optional: a connection failure downgrades fleet visibility to a
// warning instead of refusing to start.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Encoding:    cfg.Logger.Encoding,
		Development: cfg.Logger.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	app := &App{
		Config:     cfg,
		Logger:     log,
		DB:         db,
		Metrics:    metrics.New(prometheus.DefaultRegisterer),
		Cache:      cache.New(cfg.Cache.TTL, cfg.Cache.Enabled),
		Jobs:       database.NewJobRepository(db),
		Sources:    database.NewSourceRepository(db),
		Points:     database.NewPricePointRepository(db),
		Valuations: database.NewValuationRepository(db),
		Grades:     database.NewGradeRepository(db),
		Intakes:    database.NewIntakeRepository(db),
		Events:     database.NewJobEventRepository(db),
	}

	if cfg.Redis.Addr != "" {
		client, redisErr := fleet.NewClient(fleet.Config{
			Address:  cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if redisErr != nil {
			log.Warn("Fleet registry unavailable, continuing without it", "error", redisErr)
		} else {
			app.Redis = client
			app.Registry = fleet.NewRegistry(client, 3*cfg.Worker.WorkerHeartbeat, log)
		}
	}

	return app, nil
}

// Close releases the app's connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("Failed to close redis client", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("Failed to close database", "error", err)
		}
	}
}

// PricingLoop builds the claim-process loop for pricing jobs.
func (a *App) PricingLoop() (*worker.Loop, error) {
	mkt := a.Config.Marketplace
	if mkt.ClientID == "" || mkt.ClientSecret == "" {
		return nil, fmt.Errorf("marketplace credentials are not configured")
	}
	if mkt.HasPlaceholderCredentials() {
		return nil, fmt.Errorf("marketplace credentials look like placeholders, refusing to start")
	}

	baseURL, tokenURL := marketplaceBaseURL, marketplaceTokenURL
	if mkt.Sandbox {
		baseURL, tokenURL = sandboxBaseURL, sandboxTokenURL
	}

	provider := collector.NewMarketplace(collector.MarketplaceConfig{
		BaseURL:       baseURL,
		TokenURL:      tokenURL,
		ClientID:      mkt.ClientID,
		ClientSecret:  mkt.ClientSecret,
		MarketplaceID: mkt.MarketplaceID,
	}, a.Logger)

	brk := breaker.New(a.Sources, breaker.Config{
		Threshold:         a.Config.Worker.BreakerThreshold,
		Cooldown:          a.Config.Worker.BreakerCooldown,
		RateLimitCooldown: a.Config.Worker.RateLimitCooldown,
	}, a.Metrics, a.Logger)

	pipeline := collector.NewPipeline(
		provider,
		brk,
		a.Cache,
		ratelimit.NewRegistry(a.Logger),
		a.Metrics,
		a.Logger,
	)

	processor := worker.NewProcessor(
		a.Jobs, a.Sources, a.Points, a.Valuations, a.Intakes,
		worker.NewEvents(a.Events, a.Logger),
		pipeline,
		valuation.NewEngine(a.Logger),
		a.Config.Worker,
		a.Metrics,
		a.Logger,
	)

	return worker.NewLoop(a.Config.Worker, a.Jobs, processor, a.Registry, a.Metrics, a.Logger), nil
}

// GradingLoop builds the claim-process loop for grading jobs.
func (a *App) GradingLoop(mediaDir string) (*worker.Loop, error) {
	processor := worker.NewGradeProcessor(
		a.Jobs, a.Grades, a.Valuations, a.Intakes,
		worker.NewEvents(a.Events, a.Logger),
		media.NewFetcher(mediaDir, a.Logger),
		grading.NewEstimator(a.Logger),
		grading.NewRecommendationEngine(a.Logger),
		a.Config.Worker,
		a.Metrics,
		a.Logger,
	)

	return worker.NewLoop(a.Config.Worker, a.Jobs, processor, a.Registry, a.Metrics, a.Logger), nil
}
