package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"NewsCurator/internal/config"
	"NewsCurator/internal/domain"
	"NewsCurator/internal/infrastructure/cache"
	"NewsCurator/internal/infrastructure/httpapi"
	"NewsCurator/internal/infrastructure/llm"
	"NewsCurator/internal/infrastructure/ml"
	"NewsCurator/internal/infrastructure/parser"
	"NewsCurator/internal/infrastructure/scheduler"
	"NewsCurator/internal/infrastructure/storage"
	"NewsCurator/internal/infrastructure/telegram"
	"NewsCurator/internal/logging"
	"NewsCurator/internal/ports"
	"NewsCurator/internal/scanner"
	"NewsCurator/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db    *sqlx.DB
	redis *redis.Client

	sources  *storage.SourceRepository
	settings *storage.SettingsRepository

	orchestrator *usecase.Orchestrator
	curation     *usecase.CurationService
}

// New connects to Postgres (and Redis when enabled) and builds every service.
// Call Close when done.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := storage.Open(ctx, cfg.Database.DSN, storage.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	a := &Application{
		cfg:      cfg,
		logger:   baseLogger,
		db:       db,
		sources:  storage.NewSourceRepository(db),
		settings: storage.NewSettingsRepository(db),
	}

	var seen ports.SeenCache
	if cfg.Redis.Enabled {
		client, err := cache.NewClient(ctx, cache.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.redis = client
		seen = cache.NewSeenCache(client, cfg.Redis.TTL)
	}

	news := storage.NewNewsRepository(db)
	curation := storage.NewCurationRepository(db)
	categories := storage.NewCategoryRepository(db)

	collector := parser.NewStrategySource(newRegistry(cfg.Scraper, baseLogger), baseLogger.With("component", "source"))

	capability := newCapability(cfg)
	if capability == nil {
		baseLogger.Warn("classification provider is not configured; items go to manual review", "provider", cfg.Classifier.Provider)
	}

	a.curation = usecase.NewCurationService(curation, news, categories, seen, baseLogger.With("component", "curation"))
	a.orchestrator = usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Sources:   a.sources,
		Collector: collector,
		Ingestor:  usecase.NewIngestor(news, seen, baseLogger.With("component", "ingest")),
		Classifier: usecase.NewClassifier(news, curation, categories, capability, usecase.ClassifierConfig{
			Concurrency:   cfg.Classifier.Concurrency,
			RatePerSecond: cfg.Classifier.RatePerSecond,
			Burst:         cfg.Classifier.Burst,
			Timeout:       cfg.Classifier.Timeout,
			Retries:       cfg.Classifier.Retries,
			MaxAttempts:   cfg.Classifier.MaxAttempts,
		}, baseLogger.With("component", "classifier")),
		News:         news,
		Curation:     curation,
		Settings:     a.settings,
		Defaults:     cfg.RunDefaults(),
		MaxBatchSize: cfg.Pipeline.MaxBatchSize,
		Workers:      cfg.Scraper.Workers,
		Logger:       baseLogger.With("component", "orchestrator"),
	})
	return a, nil
}

// newRegistry registers the scraping strategies with generic as the fallback.
func newRegistry(cfg config.ScraperConfig, log *slog.Logger) *scanner.Registry {
	fetcher := parser.NewFetcher(nil, parser.FetchConfig{
		Timeout:      cfg.Timeout,
		Retries:      int(cfg.Retries),
		UserAgent:    cfg.UserAgent,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}, log.With("component", "fetcher"))
	walk := parser.WalkConfig{
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		PageDelay:              cfg.PageDelay,
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewSelectorScanner(fetcher, walk, log.With("component", "scanner.selectors")))
	registry.Register(parser.NewFeedScanner(fetcher, log.With("component", "scanner.feed")))
	registry.Register(parser.NewGenericScanner(fetcher, walk, log.With("component", "scanner.generic")))
	registry.SetFallback(domain.StrategyGeneric)
	return registry
}

// newCapability picks the classification provider. It returns nil when the
// chosen provider lacks credentials.
func newCapability(cfg config.Config) ports.ClassificationCapability {
	switch cfg.Classifier.Provider {
	case config.ProviderML:
		if cfg.ML.Endpoint == "" {
			return nil
		}
		return ml.NewClient(cfg.ML)
	case config.ProviderChatGPT:
		if cfg.ChatGPT.APIKey == "" {
			return nil
		}
		return llm.NewChatGPTClient(cfg.ChatGPT)
	}
	return nil
}

// Orchestrator exposes the pipeline for CLI commands.
func (a *Application) Orchestrator() *usecase.Orchestrator {
	return a.orchestrator
}

// Curation exposes the review workflow.
func (a *Application) Curation() *usecase.CurationService {
	return a.curation
}

// Health pings Postgres and, when enabled, Redis.
func (a *Application) Health(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Migrate applies pending schema migrations.
func (a *Application) Migrate() error {
	return storage.Migrate(a.db.DB, a.logger.With("component", "migrate"))
}

// Serve runs the HTTP API and, when enabled, the scheduler until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	var sched *usecase.Scheduler
	if a.cfg.Scheduler.Enabled {
		driver, err := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), a.logger)
		if err != nil {
			return err
		}
		sched = usecase.NewScheduler(driver, a.orchestrator, a.notifier(), a.logger.With("component", "scheduler"))
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "next", driver.Next())
	}

	server := httpapi.NewServer(httpapi.Config{
		Addr:         a.cfg.Server.Addr,
		Mode:         a.cfg.Server.Mode,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}, httpapi.Deps{
		Pipeline: a.orchestrator,
		Curation: a.curation,
		Health:   a.Health,
		Logger:   a.logger.With("component", "http"),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	var errs []error
	if serveErr != nil {
		errs = append(errs, serveErr)
	} else if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}
	return errors.Join(errs...)
}

// notifier returns the Telegram digest sender, or nil when unconfigured.
func (a *Application) notifier() ports.Notifier {
	tg := a.cfg.Notifications.Telegram
	if !tg.Enabled() {
		return nil
	}
	return telegram.NewNotifier(tg.BotToken, tg.ChatID)
}

// Close releases the connections.
func (a *Application) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}
