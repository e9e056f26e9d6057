// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the commands.
package app

import (
	"context"
	"fmt"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/webcapture/internal/browser"
	"github.com/JakeFAU/webcapture/internal/capture"
	"github.com/JakeFAU/webcapture/internal/clock/system"
	"github.com/JakeFAU/webcapture/internal/config"
	"github.com/JakeFAU/webcapture/internal/hash/sha256"
	"github.com/JakeFAU/webcapture/internal/id/uuid"
	"github.com/JakeFAU/webcapture/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/webcapture/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/webcapture/internal/queue/memory"
	"github.com/JakeFAU/webcapture/internal/storage/gcs"
	"github.com/JakeFAU/webcapture/internal/storage/local"
	"github.com/JakeFAU/webcapture/internal/storage/memory"
	"github.com/JakeFAU/webcapture/internal/storage/postgres"
	"github.com/JakeFAU/webcapture/internal/telemetry"
)

// App holds the shared, long-lived services. It is built once at startup
// and closed on exit.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Store     capture.Store
	Blobs     capture.BlobStore
	Publisher capture.Publisher
	Executor  capture.Executor
	Queue     *queueMemory.Queue
	Clock     capture.Clock
	IDs       capture.IDGenerator
	Hasher    capture.Hasher
	// Pacer is nil when worker.domain_rps is zero.
	Pacer *ratelimit.Limiter

	// Postgres is set when records live in Postgres; migrate needs it.
	Postgres *postgres.Store

	closers []func()
}

// New builds every provider cfg selects. It fails fast, releasing whatever
// was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config: cfg,
		Logger: logger,
		Queue:  queueMemory.NewQueue(cfg.Queue.Depth),
		Clock:  system.New(),
		IDs:    uuid.New(),
		Hasher: sha256.New(),
	}
	a.closers = append(a.closers, a.Queue.Close)
	if cfg.Worker.DomainRPS > 0 {
		a.Pacer = ratelimit.New(ratelimit.Config{RPS: cfg.Worker.DomainRPS, Burst: cfg.Worker.DomainBurst})
	}

	steps := []func(context.Context) error{a.initTracing, a.initStore, a.initBlobs, a.initPublisher, a.initExecutor}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// Close releases providers in reverse order of creation. It is safe to call
// more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) initTracing(ctx context.Context) error {
	tp, err := telemetry.InitTracerProvider(ctx, "webcapture")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			a.Logger.Warn("shutdown tracer provider", zap.Error(err))
		}
	})
	return nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.Config.DB.DSN == "" {
		a.Logger.Warn("db.dsn not set; capture records are kept in memory")
		a.Store = memory.NewStore()
		return nil
	}
	a.Logger.Info("connecting to postgres")
	store, err := postgres.New(ctx, postgres.Config{
		DSN:             a.Config.DB.DSN,
		MaxConns:        a.Config.DB.MaxConns,
		MinConns:        a.Config.DB.MinConns,
		MaxConnLifetime: a.Config.ConnLifetime(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	if a.Config.DB.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	a.Store = store
	a.Postgres = store
	return nil
}

func (a *App) initBlobs(ctx context.Context) error {
	sc := a.Config.Storage
	switch sc.Backend {
	case config.StorageMemory:
		a.Logger.Warn("using in-memory blob storage; screenshots are lost on exit")
		a.Blobs = memory.NewBlobStore()
	case config.StorageLocal:
		a.Logger.Info("using local blob storage", zap.String("base_dir", sc.BaseDir))
		blobs, err := local.New(local.Config{BaseDir: sc.BaseDir})
		if err != nil {
			return fmt.Errorf("failed to initialize local storage: %w", err)
		}
		a.Blobs = blobs
	case config.StorageGCS:
		a.Logger.Info("using GCS blob storage", zap.String("bucket", sc.GCSBucket))
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create storage client: %w", err)
		}
		blobs, err := gcs.Open(ctx, client, gcs.Config{Bucket: sc.GCSBucket, Prefix: sc.Prefix}, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize gcs storage: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := client.Close(); err != nil {
				a.Logger.Warn("close storage client", zap.Error(err))
			}
		})
		a.Blobs = blobs
	default:
		return fmt.Errorf("unknown storage backend: %s", sc.Backend)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	ps := a.Config.PubSub
	if ps.TopicName == "" {
		a.Logger.Info("pubsub.topic_name not set; job events are not published")
		return nil
	}
	a.Logger.Info("connecting to GCP Pub/Sub", zap.String("topic", ps.TopicName))
	client, err := gpubsub.NewClient(ctx, ps.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to initialize pubsub: %w", err)
	}
	publisher := pubsubpublisher.New(client)
	a.closers = append(a.closers, func() {
		publisher.Close()
		if err := client.Close(); err != nil {
			a.Logger.Warn("close pubsub client", zap.Error(err))
		}
	})
	a.Publisher = publisher
	return nil
}

func (a *App) initExecutor(context.Context) error {
	bc := a.Config.Browser
	if !bc.Enabled {
		a.Logger.Warn("browser disabled; every capture will fail")
		a.Executor = browser.NewNoop()
		return nil
	}
	exec, err := browser.NewChromedp(browser.Config{
		UserAgent:         bc.UserAgent,
		NavigationTimeout: time.Duration(bc.NavTimeoutSeconds) * time.Second,
		DynamicTimeout:    time.Duration(bc.DynamicTimeoutSeconds) * time.Second,
		DeviceTimeout:     time.Duration(bc.DeviceTimeoutSeconds) * time.Second,
		IdleWindow:        time.Duration(bc.IdleWindowMs) * time.Millisecond,
		ThumbnailSize:     bc.ThumbnailSize,
		ExecPath:          bc.ExecPath,
		NoSandbox:         bc.NoSandbox,
	}, a.Clock, a.Logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	a.Executor = exec
	return nil
}
