package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"maildigest/internal/config"
	"maildigest/internal/content"
	"maildigest/internal/domain"
	"maildigest/internal/filter"
	"maildigest/internal/infrastructure/archive"
	"maildigest/internal/infrastructure/llm"
	"maildigest/internal/infrastructure/mail"
	"maildigest/internal/infrastructure/notion"
	"maildigest/internal/infrastructure/scheduler"
	"maildigest/internal/infrastructure/storage"
	"maildigest/internal/logging"
	"maildigest/internal/ports"
	"maildigest/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.SQLiteStore
	pipeline *usecase.Pipeline
}

// New builds a runnable application instance, opening the database and
// constructing every adapter from configuration.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	completer := llm.NewOpenRouterClient(cfg.LLM)

	classifier, err := usecase.NewClassifier(usecase.ClassifierConfig{
		Model:          cfg.LLM.Model,
		BatchSize:      cfg.Batch.Size,
		BatchInterval:  time.Duration(cfg.Batch.IntervalSeconds) * time.Second,
		RetryAttempts:  cfg.Batch.RetryAttempts,
		RetryInterval:  time.Duration(cfg.Batch.RetrySeconds) * time.Second,
		ApprovedGenres: cfg.Genres.Approved,
		DefaultGenre:   cfg.Genres.Default,
	}, completer, baseLogger.With("component", "classifier"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	aggCfg := usecase.AggregatorConfig{
		Model:          cfg.LLM.Model,
		GenreInterval:  cfg.Weekly.GenreInterval(),
		RetryAttempts:  cfg.Weekly.RetryAttempts,
		RetryInterval:  cfg.Weekly.RetryInterval(),
		ApprovedGenres: cfg.Genres.Approved,
		DefaultGenre:   cfg.Genres.Default,
	}
	aggregator, err := usecase.NewAggregator(aggCfg, completer, baseLogger.With("component", "aggregator"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build aggregator: %w", err)
	}
	composer, err := usecase.NewComposer(aggCfg, completer, baseLogger.With("component", "composer"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build composer: %w", err)
	}

	var publisher ports.DigestPublisher
	if np := notion.NewPublisher(cfg.Notion); np.Configured() {
		publisher = np
	} else {
		baseLogger.Info("notion publishing disabled")
	}

	cleaner := content.NewCleaner(cfg.Batch.MaxBodyLength)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Mail:       mail.NewIMAPSource(cfg.Mailbox, baseLogger.With("component", "mail")),
		Filter:     filter.Candidates,
		Cleaner:    cleaner,
		Classifier: classifier,
		Aggregator: aggregator,
		Composer:   composer,
		Store:      store,
		Archive:    archive.NewFileArchive(cfg.Digest.Dir),
		Publisher:  publisher,
		Logger:     baseLogger.With("component", "pipeline"),
		DaysBack:   cfg.Weekly.DaysBack,
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		pipeline: pipeline,
	}, nil
}

// Close releases the database connection.
func (a *Application) Close() error {
	return a.store.Close()
}

// RunDaily executes one daily ingestion cycle immediately.
func (a *Application) RunDaily(ctx context.Context) (usecase.DailyReport, error) {
	now := time.Now().In(a.cfg.Scheduler.Location())
	return a.pipeline.DailyRun(ctx, now)
}

// RunWeekly executes one weekly digest cycle immediately.
func (a *Application) RunWeekly(ctx context.Context) (usecase.WeeklyReport, error) {
	now := time.Now().In(a.cfg.Scheduler.Location())
	return a.pipeline.WeeklyRun(ctx, now)
}

// RunScheduled starts the clock-driven jobs and blocks until the context
// is cancelled.
func (a *Application) RunScheduled(ctx context.Context) error {
	driver, err := scheduler.NewClockScheduler(a.cfg.Scheduler, a.logger.With("component", "scheduler"))
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}

	sched := usecase.NewScheduler(driver, a.pipeline, a.logger.With("component", "jobs"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Stats reports database totals for the stats command.
func (a *Application) Stats(ctx context.Context) (storage.Stats, error) {
	return a.store.Stats(ctx)
}

// RecentByGenre returns windowed records of one genre, coercing unknown
// genre input to the configured default first.
func (a *Application) RecentByGenre(ctx context.Context, genre string, daysBack int) ([]domain.StoredNewsletter, error) {
	approved := domain.GenreSet(a.cfg.Genres.Approved)
	coerced := domain.CoerceGenre(genre, approved, a.cfg.Genres.Default)
	return a.store.QueryGenre(ctx, coerced, daysBack)
}
