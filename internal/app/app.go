package app

import (
	"context"
	"fmt"
	"log/slog"

	"SocialInsights/internal/collect"
	"SocialInsights/internal/config"
	"SocialInsights/internal/infrastructure/apify"
	"SocialInsights/internal/infrastructure/cache"
	"SocialInsights/internal/infrastructure/httpapi"
	"SocialInsights/internal/infrastructure/llm"
	"SocialInsights/internal/infrastructure/ml"
	"SocialInsights/internal/infrastructure/scheduler"
	"SocialInsights/internal/infrastructure/storage/memory"
	"SocialInsights/internal/infrastructure/storage/postgres"
	"SocialInsights/internal/infrastructure/telegram"
	"SocialInsights/internal/logging"
	"SocialInsights/internal/ports"
	"SocialInsights/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	Collector *usecase.Collector
	Enricher  *usecase.Enricher
	Reporter  *usecase.Reporter
	Targets   *usecase.TargetManager
	Analytics *usecase.Analytics
	Jobs      *usecase.JobCatalog
	Scheduler *scheduler.CronScheduler

	closers []func()
}

// New builds every collaborator from cfg. Optional integrations (Redis cache,
// Telegram) are skipped with a warning when they cannot be reached.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	scraper := a.scraper(ctx)
	summarizer, classifier := a.models()

	ingestor := usecase.NewIngestor(store, baseLogger.With("component", "ingest"))
	a.Targets = usecase.NewTargetManager(store, baseLogger.With("component", "targets"))
	a.Enricher = usecase.NewEnricher(store, summarizer, classifier, usecase.EnricherConfig{
		Summary:               cfg.Summary,
		Sentiment:             cfg.Sentiment,
		SummarizeLongCaptions: cfg.Enrichment.SummarizeLongCaptions,
	}, baseLogger.With("component", "enrich"))
	a.Collector = usecase.NewCollector(scraper, ingestor, a.Targets, collect.NewTargetRegistry(scraper),
		baseLogger.With("component", "collector"))
	a.Reporter = usecase.NewReporter(store, a.Enricher, a.notifier(), baseLogger.With("component", "report"))
	a.Analytics = usecase.NewAnalytics(store)

	a.Jobs = usecase.NewJobCatalog(a.Collector, a.Enricher, a.Reporter, cfg.Collection)
	a.Scheduler = scheduler.NewCronScheduler(store, a.Jobs.Jobs(), cfg.Scheduler.Location(),
		baseLogger.With("component", "scheduler"))

	return a, nil
}

func (a *Application) openStore(ctx context.Context) (ports.Store, error) {
	if a.cfg.Database.Driver == "memory" {
		a.logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil
	}
	pg, err := postgres.New(ctx, a.cfg.Database.DSN, a.cfg.Database.MaxConns, a.logger.With("component", "postgres"))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pg.InitSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	a.closers = append(a.closers, pg.Close)
	return pg, nil
}

func (a *Application) scraper(ctx context.Context) ports.Scraper {
	var s ports.Scraper = apify.NewClient(a.cfg.Apify, a.logger.With("component", "apify"))
	if a.cfg.Cache.RedisAddr == "" {
		return s
	}
	cached := cache.NewScraper(s, a.cfg.Cache, a.logger.With("component", "cache"))
	if err := cached.Ping(ctx); err != nil {
		a.logger.Warn("redis unavailable, discovery cache disabled", "addr", a.cfg.Cache.RedisAddr, "error", err)
		_ = cached.Close()
		return s
	}
	a.closers = append(a.closers, func() { _ = cached.Close() })
	return cached
}

func (a *Application) models() (ports.Summarizer, ports.Classifier) {
	minInput := a.cfg.Summary.MinInputLength
	if a.cfg.AI.Provider == "openai" {
		c := llm.NewChatGPTClient(a.cfg.OpenAI, minInput)
		return c, c
	}
	c := ml.NewClient(a.cfg.ML, minInput)
	return c, c
}

func (a *Application) notifier() ports.Notifier {
	if a.cfg.Telegram.BotToken == "" {
		return nil
	}
	n, err := telegram.NewNotifier(a.cfg.Telegram, a.logger.With("component", "telegram"))
	if err != nil {
		a.logger.Warn("telegram notifications disabled", "error", err)
		return nil
	}
	return n
}

// Run starts the scheduler (when enabled) and serves the REST API until ctx
// is cancelled.
func (a *Application) Run(ctx context.Context) error {
	var sched httpapi.Scheduler
	if a.cfg.Scheduler.Enabled {
		if err := a.Scheduler.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := a.Scheduler.Stop(stopCtx); err != nil {
				a.logger.Warn("scheduler did not stop cleanly", "error", err)
			}
		}()
		sched = a.Scheduler
	}

	srv := httpapi.NewServer(a.cfg.Server.Addr, httpapi.Services{
		Collector: a.Collector,
		Enricher:  a.Enricher,
		Reporter:  a.Reporter,
		Targets:   a.Targets,
		Analytics: a.Analytics,
		Scheduler: sched,
	}, a.logger.With("component", "http"))
	return srv.Run(ctx, a.cfg.Server.ShutdownTimeout)
}

// Close releases pools and connections in reverse order of creation.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
