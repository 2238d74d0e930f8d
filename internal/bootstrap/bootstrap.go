package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/fax-review-queue/internal/config"
	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/core/ports"
	"github.com/kirillkom/fax-review-queue/internal/core/usecase"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/extractor"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/extractor/tesseract"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/llm/anthropic"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/llm/openai"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/notify"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/queue/nats"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/resilience"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/taxonomy"
	"github.com/kirillkom/fax-review-queue/internal/observability/metrics"
)

type Options struct {
	Service string
	Logger  *slog.Logger
	// Registerer receives the fax metrics. A private registry is used when nil.
	Registerer prometheus.Registerer
}

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Taxonomy *domain.Taxonomy
	Metrics  *metrics.FaxMetrics

	// Queue is nil when NATS is not configured.
	Queue *nats.Queue

	Settings *usecase.SettingsStore
	Pipeline *usecase.IngestionPipeline
	Intake   *usecase.IntakeService
	Watcher  *usecase.FolderWatcher
	Review   *usecase.ReviewController
	Stats    *usecase.StatisticsAggregator

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registerer := opts.Registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	faxMetrics := metrics.NewFaxMetrics(registerer, opts.Service)

	db, repos, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	closers := []func(){func() { _ = db.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	tx, err := taxonomy.Load(cfg.TaxonomyPath)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	files, err := localfs.New(cfg.StoragePath)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	policy := resilience.GatewayDefaults()
	policy.Retry.MaxAttempts = cfg.GatewayRetryAttempts
	policy.Breaker.MinRequests = uint32(max(cfg.GatewayBreakerMinRequests, 0))
	policy.Breaker.OpenTimeout = cfg.GatewayBreakerOpen()
	exec := resilience.NewExecutor(policy,
		resilience.WithLogger(logger),
		resilience.WithStateListener(faxMetrics.ObserveBreakerState),
	)

	classifier, err := newClassifier(cfg, tx)
	if err != nil {
		closeAll()
		return nil, err
	}
	textExtractor := extractor.NewRouter().
		Register(plaintext.NewExtractor(), ".txt").
		Register(pdftext.NewExtractor(), ".pdf").
		Register(tesseract.NewExtractor(tesseract.Config{
			Binary:   cfg.TesseractBinary,
			Language: cfg.TesseractLanguage,
		}), ".tif", ".tiff")

	settings := usecase.NewSettingsStore(repos.settings, domain.Settings{
		WatchFolder:         cfg.FaxWatchFolder,
		AutoProcess:         cfg.FaxAutoProcess,
		RequireReview:       cfg.FaxRequireReview,
		ConfidenceThreshold: cfg.FaxConfidenceThreshold,
	}, logger)

	pipeline := usecase.NewIngestionPipeline(
		repos.faxes,
		files,
		resilience.NewExtractor(textExtractor, exec, "extract"),
		resilience.NewClassifier(classifier, exec, "classify."+cfg.LLMProvider, resilience.ClassifyGatewayError),
		settings,
		tx,
		usecase.PipelineOptions{GatewayTimeout: cfg.GatewayTimeout(), Logger: logger},
	)

	var (
		queue     *nats.Queue
		publisher ports.DecisionPublisher
		notifier  ports.UrgentNotifier
	)
	if cfg.NATSURL != "" {
		queue, err = nats.NewWithOptions(cfg.NATSURL, nats.Options{
			DecidedSubject:     cfg.NATSDecidedSubject,
			FiledSubject:       cfg.NATSFiledSubject,
			ResilienceExecutor: exec,
			Logger:             logger,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		closers = append(closers, queue.Close)
		publisher = queue
	}
	if len(cfg.NotifyURLs) > 0 {
		sender, err := notify.NewShoutrrr(cfg.NotifyURLs, cfg.NotifyTimeout(), tx)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init notifier: %w", err)
		}
		notifier = sender
	}

	intake := usecase.NewIntakeService(pipeline, files, usecase.IntakeOptions{
		Publisher: publisher,
		Notifier:  notifier,
		Observer:  faxMetrics,
		Logger:    logger,
	})
	watcher := usecase.NewFolderWatcher(intake, pipeline, repos.faxes, settings, localfs.NewInbox(), usecase.WatcherOptions{
		Interval:   cfg.WatcherInterval(),
		SettleTime: cfg.WatcherSettle(),
		StaleAfter: cfg.WatcherStaleAfter(),
		Archive:    cfg.WatcherArchive,
		Observer:   faxMetrics,
		Logger:     logger,
	})
	review := usecase.NewReviewController(repos.faxes, tx, usecase.ReviewOptions{
		Publisher: publisher,
		Observer:  faxMetrics,
		Logger:    logger,
	})

	if _, err := settings.Get(ctx); err != nil {
		closeAll()
		return nil, fmt.Errorf("load settings: %w", err)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Taxonomy: tx,
		Metrics:  faxMetrics,
		Queue:    queue,

		Settings: settings,
		Pipeline: pipeline,
		Intake:   intake,
		Watcher:  watcher,
		Review:   review,
		Stats:    usecase.NewStatisticsAggregator(repos.stats),

		closeFn: closeAll,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

type repositories struct {
	faxes    ports.FaxRepository
	stats    ports.FaxStatsReader
	settings ports.SettingsRepository
}

func openStore(cfg config.Config, logger *slog.Logger) (*sql.DB, repositories, error) {
	switch cfg.DBDriver {
	case "postgres":
		if cfg.AutoMigrate {
			if err := postgres.Migrate(cfg.PostgresDSN, logger); err != nil {
				return nil, repositories{}, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, repositories{}, fmt.Errorf("open postgres: %w", err)
		}
		return db, repositories{
			faxes:    postgres.NewFaxRepository(db),
			stats:    postgres.NewStatsRepository(db),
			settings: postgres.NewSettingsRepository(db),
		}, nil
	default:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, repositories{}, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		if cfg.AutoMigrate {
			if err := sqlite.Migrate(cfg.SQLitePath, logger); err != nil {
				return nil, repositories{}, fmt.Errorf("migrate sqlite: %w", err)
			}
		}
		db, err := sqlite.OpenDB(cfg.SQLitePath)
		if err != nil {
			return nil, repositories{}, fmt.Errorf("open sqlite: %w", err)
		}
		return db, repositories{
			faxes:    sqlite.NewFaxRepository(db),
			stats:    sqlite.NewStatsRepository(db),
			settings: sqlite.NewSettingsRepository(db),
		}, nil
	}
}

func newClassifier(cfg config.Config, tx *domain.Taxonomy) (ports.FaxClassifier, error) {
	switch cfg.LLMProvider {
	case "openai":
		c, err := openai.NewClassifier(openai.Config{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
		}, tx)
		if err != nil {
			return nil, fmt.Errorf("init openai classifier: %w", err)
		}
		return c, nil
	case "anthropic":
		c, err := anthropic.NewClassifier(anthropic.Config{
			BaseURL: cfg.AnthropicBaseURL,
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
		}, tx)
		if err != nil {
			return nil, fmt.Errorf("init anthropic classifier: %w", err)
		}
		return c, nil
	default:
		return ollama.NewClassifier(ollama.New(cfg.OllamaURL, cfg.OllamaModel), tx), nil
	}
}
