// Package control wires configuration into a runnable publishing app.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/crosspost/internal/core/config"
	"github.com/vietddude/crosspost/internal/core/domain"
	"github.com/vietddude/crosspost/internal/core/worker"
	"github.com/vietddude/crosspost/internal/delivery/caption"
	"github.com/vietddude/crosspost/internal/delivery/orchestrator"
	"github.com/vietddude/crosspost/internal/delivery/retry"
	"github.com/vietddude/crosspost/internal/infra/filestore"
	"github.com/vietddude/crosspost/internal/infra/filestore/local"
	"github.com/vietddude/crosspost/internal/infra/filestore/s3"
	"github.com/vietddude/crosspost/internal/infra/publisher"
	redisclient "github.com/vietddude/crosspost/internal/infra/redis"
	"github.com/vietddude/crosspost/internal/infra/storage"
	"github.com/vietddude/crosspost/internal/infra/storage/memory"
	"github.com/vietddude/crosspost/internal/infra/storage/postgres"
)

// App owns every component of a run.
type App struct {
	cfg     *config.AppConfig
	store   filestore.FileStore
	orch    *orchestrator.Orchestrator
	history storage.HistoryRepository
	db      *postgres.DB
	redis   *redisclient.Client
	sinks   []Sink
	log     *slog.Logger
}

// Options override pieces of the wiring, mostly for tests.
type Options struct {
	HTTPClient *http.Client
	Sleep      retry.SleepFunc
	Logger     *slog.Logger
}

// NewApp builds the file store, publishers, retry engine and reporting
// sinks described by cfg.
func NewApp(ctx context.Context, cfg *config.AppConfig, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	store, err := NewFileStore(ctx, cfg.FileStore)
	if err != nil {
		return nil, err
	}
	a.store = store

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		a.db = db
		a.history = postgres.NewHistoryRepo(db)
		log.Info("Using PostgreSQL history")
	} else {
		a.history = memory.NewHistoryRepo()
		log.Info("Using memory history")
	}
	a.sinks = append(a.sinks, historySink{repo: a.history})

	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		a.redis = client
		a.sinks = append(a.sinks, redisSink{client: client, quarantine: redisclient.NewQuarantineLog(client)})
	}
	if pruner := worker.NewPruner(cfg.Settings.HistoryRetention, a.history); pruner.Enabled() {
		a.sinks = append(a.sinks, pruneSink{pruner: pruner})
	}
	if cfg.Metrics.URL != "" {
		a.sinks = append(a.sinks, pushSink{cfg: cfg.Metrics})
	}

	publishers, targets, err := buildPublishers(cfg, opts.HTTPClient, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	engineOpts := []retry.Option{retry.WithLogger(log)}
	if opts.Sleep != nil {
		engineOpts = append(engineOpts, retry.WithSleep(opts.Sleep))
	}
	engine, err := retry.NewEngine(cfg.Settings.RetryPolicy(), engineOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Store:      store,
		Captions:   caption.NewGenerator(cfg.Caption, cfg.Settings.FixedHashtag),
		Publishers: publishers,
		Engine:     engine,
		History:    a.history,
		Sleep:      opts.Sleep,
		Logger:     log,
	}, orchestrator.Config{
		Targets:          targets,
		TotalPlatforms:   len(domain.PlatformOrder),
		PostDelay:        cfg.Settings.PostDelayDuration(),
		TempDir:          cfg.Settings.TempDir,
		QuarantineOnSkip: cfg.Settings.QuarantineOnSkip,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orch = orch
	return a, nil
}

// buildPublishers creates a publisher for every enabled platform. A platform
// with missing credentials is disabled with an error log instead of
// failing the run.
func buildPublishers(cfg *config.AppConfig, client *http.Client, log *slog.Logger) (map[domain.Platform]publisher.Publisher, []orchestrator.Target, error) {
	publishers := make(map[domain.Platform]publisher.Publisher)
	var targets []orchestrator.Target

	for _, p := range cfg.EnabledPlatforms() {
		pc := cfg.Platforms[p]
		pub, err := publisher.New(p, publisher.Settings{
			BaseURL:     pc.BaseURL,
			Credentials: pc.Credentials,
			HTTPClient:  client,
		})
		if err != nil {
			log.Error("Platform disabled", "platform", p, "error", err)
			continue
		}
		publishers[p] = pub
		targets = append(targets, orchestrator.Target{Platform: p, Limit: pc.Limit, Sources: pc.Sources()})
	}
	if len(targets) == 0 {
		return nil, nil, errors.New("no platform is enabled with valid credentials")
	}
	return publishers, targets, nil
}

// NewFileStore opens the configured backend.
func NewFileStore(ctx context.Context, cfg config.FileStoreConfig) (filestore.FileStore, error) {
	switch cfg.Backend {
	case config.BackendS3:
		store, err := s3.New(ctx, s3.Config{
			Bucket:       cfg.Bucket,
			Prefix:       cfg.Prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.PathStyle,
			LinkTTL:      cfg.LinkTTL,
			Folders:      cfg.Folders,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init s3 store: %w", err)
		}
		return store, nil
	case config.BackendLocal, "":
		store, err := local.New(local.Config{
			Root:          cfg.Root,
			PublicBaseURL: cfg.PublicBaseURL,
			Folders:       cfg.Folders,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init local store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown file store backend %q", cfg.Backend)
	}
}

// Run executes one publishing run and reports it to every sink.
func (a *App) Run(ctx context.Context) (*orchestrator.Summary, error) {
	summary, err := a.orch.Run(ctx)
	if summary != nil {
		report(context.WithoutCancel(ctx), a.log, a.sinks, summary)
	}
	return summary, err
}

// History exposes the history repository.
func (a *App) History() storage.HistoryRepository {
	return a.history
}

// Close releases database and redis connections.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("Failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error("Failed to close database", "error", err)
		}
	}
}
