package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/tariff-engine/internal/config"
	"github.com/kirillkom/tariff-engine/internal/core/ports"
	"github.com/kirillkom/tariff-engine/internal/core/tariff"
	"github.com/kirillkom/tariff-engine/internal/core/usecase"
	rediscache "github.com/kirillkom/tariff-engine/internal/infrastructure/cache/redis"
	"github.com/kirillkom/tariff-engine/internal/infrastructure/parser/xlsx"
	"github.com/kirillkom/tariff-engine/internal/infrastructure/queue/nats"
	"github.com/kirillkom/tariff-engine/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/tariff-engine/internal/infrastructure/resilience"
	"github.com/kirillkom/tariff-engine/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/tariff-engine/internal/infrastructure/storage/s3"
)

// Observers lets a binary attach its metrics registry to the dependency
// layer. Either field may be nil.
type Observers struct {
	Resilience resilience.Observer
	Cache      rediscache.Observer
}

type App struct {
	Config config.Config
	Rules  *tariff.Rules

	Queue     ports.MessageQueue
	Imports   ports.ImportReader
	QueryUC   ports.TariffQuoter
	ImportUC  ports.ScheduleImporter
	ProcessUC ports.ImportProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, observers Observers) (*App, error) {
	rules, err := tariff.LoadRules(cfg.TariffRulesPath)
	if err != nil {
		return nil, fmt.Errorf("load tariff rules: %w", err)
	}

	resilienceCfg := resilience.DefaultConfig()
	if cfg.ResilienceMaxAttempts > 0 {
		resilienceCfg.RetryMaxAttempts = cfg.ResilienceMaxAttempts
	}
	executor := resilience.NewExecutor(resilienceCfg)
	if observers.Resilience != nil {
		executor = executor.WithObserver(observers.Resilience)
	}

	db, err := postgres.OpenDBWithOptions(cfg.PostgresDSN, postgres.PoolOptions{
		MaxOpenConns:    cfg.PostgresMaxOpenConns,
		MaxIdleConns:    cfg.PostgresMaxOpenConns / 2,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	imports := postgres.NewImportRepository(db)
	schedules := postgres.NewScheduleRepository(db, executor)

	var catalog ports.ScheduleCatalog = schedules
	var cache ports.ScheduleCache
	closeRedis := func() {}
	if cfg.RedisURL != "" && !cfg.CacheDisabled {
		client, err := rediscache.NewClient(cfg.RedisURL)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init schedule cache: %w", err)
		}
		cached := rediscache.NewCatalog(schedules, client, rediscache.Options{
			TTL:      cfg.CacheTTL,
			MissTTL:  cfg.CacheMissTTL,
			Observer: observers.Cache,
		})
		catalog = cached
		cache = cached
		closeRedis = func() { _ = client.Close() }
		slog.Info("schedule_cache_enabled", "ttl", cfg.CacheTTL.String())
	}

	storage, err := newObjectStorage(ctx, cfg, executor)
	if err != nil {
		closeRedis()
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		HandlerTimeout:     cfg.ImportProcessTimeout,
		ResilienceExecutor: executor,
	})
	if err != nil {
		closeRedis()
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	parser := xlsx.New(cfg.XLSXSheet)

	queryUC := usecase.NewTariffQueryUseCase(catalog, rules)
	importUC := usecase.NewImportScheduleUseCase(imports, storage, queue, rules)
	processUC := usecase.NewProcessImportUseCase(imports, storage, parser, schedules, cache)

	return &App{
		Config: cfg,
		Rules:  rules,

		Queue:     queue,
		Imports:   imports,
		QueryUC:   queryUC,
		ImportUC:  importUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			closeRedis()
			_ = db.Close()
		},
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "", "local":
		return localfs.New(cfg.StoragePath)
	case "s3":
		return s3.New(ctx, s3.Options{
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3PathStyle,
			Executor:     executor,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
