package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ObservationsIndexer/internal/config"
	"ObservationsIndexer/internal/crawler"
	"ObservationsIndexer/internal/domain"
	"ObservationsIndexer/internal/identity"
	"ObservationsIndexer/internal/infrastructure/batchfile"
	"ObservationsIndexer/internal/infrastructure/fits"
	"ObservationsIndexer/internal/infrastructure/metrics"
	"ObservationsIndexer/internal/infrastructure/scheduler"
	"ObservationsIndexer/internal/infrastructure/storage"
	"ObservationsIndexer/internal/infrastructure/telegram"
	"ObservationsIndexer/internal/logging"
	"ObservationsIndexer/internal/observation"
	"ObservationsIndexer/internal/ports"
	"ObservationsIndexer/internal/reconcile"
	"ObservationsIndexer/internal/usecase"
)

// Options select storage behaviour for one invocation.
type Options struct {
	// DryRun reconciles against an in-memory catalog.
	DryRun bool
	// ResetSchema drops and recreates the catalog table before use.
	ResetSchema bool
	// SkipStorage builds an application that can only crawl.
	SkipStorage bool
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	ids       identity.Config
	logger    *slog.Logger
	db        *sql.DB
	repo      ports.ObservationRepository
	crawler   *crawler.Crawler
	collector *metrics.Collector
	pipeline  *usecase.Pipeline
}

// New builds the application and opens the catalog.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	ids, err := cfg.Identity()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	classifier, err := identity.NewClassifier(ids)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &Application{cfg: cfg, ids: ids, logger: baseLogger}

	if !opts.SkipStorage {
		if err := a.openRepository(ctx, opts); err != nil {
			return nil, err
		}
	}

	a.crawler = crawler.New(crawler.NewRegistry(), fits.NewReader(), crawler.Settings{
		Workers:      cfg.Crawler.Workers,
		ExcludedDirs: cfg.Crawler.ExcludedDirs,
		Options: crawler.Options{
			Extensions:    cfg.Crawler.Extensions,
			PipelineKinds: cfg.Crawler.PipelineKinds,
		},
	}, baseLogger.With("component", "crawler"))

	a.collector = metrics.NewCollector()

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	deps := usecase.PipelineDeps{
		Classifier:       classifier,
		Builder:          observation.NewBuilder(ids, nil, baseLogger.With("component", "builder")),
		Repository:       a.repo,
		Source:           a.crawler,
		Recorder:         a.collector,
		Notifier:         notifier,
		Logger:           baseLogger.With("component", "pipeline"),
		MaxErrorExamples: cfg.Ingest.MaxErrorExamples,
	}
	if a.repo != nil {
		deps.Engine = reconcile.NewEngine(a.repo, baseLogger.With("component", "reconcile"))
	}
	a.pipeline = usecase.NewPipeline(deps)

	return a, nil
}

func (a *Application) openRepository(ctx context.Context, opts Options) error {
	if opts.DryRun {
		a.logger.Info("dry run: using in-memory catalog")
		a.repo = storage.NewMemoryRepository()
		return nil
	}

	var (
		db   *sql.DB
		repo *storage.SQLRepository
		err  error
	)
	switch a.cfg.Database.Driver {
	case config.DriverPostgres, "":
		if db, err = storage.OpenPostgres(ctx, a.cfg.Database.DSN); err == nil {
			repo, err = storage.NewPostgresRepository(db, a.cfg.Database.Schema, a.cfg.Database.Table)
		}
	case config.DriverSQLite:
		if db, err = storage.OpenSQLite(ctx, a.cfg.Database.DSN); err == nil {
			repo, err = storage.NewSQLiteRepository(db, a.cfg.Database.Table)
		}
	default:
		return fmt.Errorf("unknown database driver %q", a.cfg.Database.Driver)
	}
	if err != nil {
		if db != nil {
			db.Close()
		}
		return fmt.Errorf("open catalog: %w", err)
	}

	if opts.ResetSchema {
		a.logger.Warn("resetting catalog", "driver", a.cfg.Database.Driver, "table", a.cfg.Database.Table)
	}
	if err := repo.EnsureSchema(ctx, opts.ResetSchema); err != nil {
		db.Close()
		return err
	}

	a.db, a.repo = db, repo
	return nil
}

// Close releases the database connection and writes the metrics textfile.
func (a *Application) Close() error {
	if err := a.collector.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.logger.Warn("metrics export failed", "error", err)
	}
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *Application) tree(name string) (identity.Tree, error) {
	tree, ok := a.ids.TreeByName(name)
	if !ok {
		return identity.Tree{}, fmt.Errorf("unknown tree %q", name)
	}
	return tree, nil
}

// Crawl extracts headers of the selected dates of a tree into batch files
// under outDir and returns their paths.
func (a *Application) Crawl(ctx context.Context, treeName string, sel crawler.Selection, outDir string) ([]string, error) {
	tree, err := a.tree(treeName)
	if err != nil {
		return nil, err
	}

	results, err := a.crawler.Crawl(ctx, tree, sel)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(results))
	for _, res := range results {
		for _, f := range res.Failures {
			a.logger.Warn("header not read", "path", f.Path, "error", f.Err)
		}
		path, err := batchfile.Write(outDir, batchfile.Batch{
			Tree:      res.Tree,
			Kind:      res.Kind,
			CreatedAt: time.Now().UTC(),
			Headers:   res.Headers,
		})
		if err != nil {
			return paths, err
		}
		a.logger.Info("batch written", "path", path, "headers", len(res.Headers), "failed", len(res.Failures))
		paths = append(paths, path)
	}
	return paths, nil
}

// Insert reconciles the headers of a batch file into the catalog.
func (a *Application) Insert(ctx context.Context, path string) (usecase.Report, error) {
	batch, err := batchfile.Read(path)
	if err != nil {
		return usecase.Report{}, err
	}
	label := batch.Tree
	if batch.Kind != "" {
		label += "/" + batch.Kind
	}

	report, err := a.pipeline.Ingest(ctx, label, batch.Headers)
	a.collector.BatchDone()
	if err != nil {
		return report, err
	}
	if err := a.pipeline.Notify(ctx, report); err != nil {
		a.logger.Warn("notification failed", "error", err)
	}
	return report, nil
}

// Run crawls and ingests the selected dates of each named tree.
func (a *Application) Run(ctx context.Context, treeNames []string, sel crawler.Selection) ([]usecase.Report, error) {
	var all []usecase.Report
	for _, name := range treeNames {
		tree, err := a.tree(name)
		if err != nil {
			return all, err
		}
		reports, err := a.pipeline.ProcessTree(ctx, tree, sel)
		all = append(all, reports...)
		for range reports {
			a.collector.BatchDone()
		}
		if err != nil {
			return all, err
		}
	}

	if err := a.pipeline.Notify(ctx, all...); err != nil {
		a.logger.Warn("notification failed", "error", err)
	}
	return all, nil
}

// Watch ingests the previous day of the scheduled trees on every tick until
// ctx is cancelled or the process receives SIGINT or SIGTERM.
func (a *Application) Watch(ctx context.Context) error {
	trees := make([]identity.Tree, 0, len(a.cfg.Schedule.Trees))
	for _, name := range a.cfg.Schedule.Trees {
		tree, err := a.tree(name)
		if err != nil {
			return err
		}
		trees = append(trees, tree)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := scheduler.NewTickerScheduler(a.cfg.Schedule.Interval, a.cfg.Schedule.Location())
	sched := usecase.NewScheduler(driver, a.pipeline, trees, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("watching", "trees", a.cfg.Schedule.Trees, "interval", a.cfg.Schedule.Interval.String())

	<-ctx.Done()

	shutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(shutdown)
}

// Summary reports the catalog size and date range.
func (a *Application) Summary(ctx context.Context) (domain.CatalogSummary, error) {
	if a.repo == nil {
		return domain.CatalogSummary{}, fmt.Errorf("catalog is not configured")
	}
	return a.repo.Summary(ctx)
}
