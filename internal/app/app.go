package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resumelens/resumelens/internal/config"
	"github.com/resumelens/resumelens/internal/core/analysis"
	"github.com/resumelens/resumelens/internal/core/cleanup"
	"github.com/resumelens/resumelens/internal/core/dedup"
	"github.com/resumelens/resumelens/internal/core/extract"
	"github.com/resumelens/resumelens/internal/core/ingest"
	"github.com/resumelens/resumelens/internal/core/objectstore"
	"github.com/resumelens/resumelens/internal/core/scan"
	"github.com/resumelens/resumelens/internal/core/tracker"
	"github.com/resumelens/resumelens/internal/core/validate"
	"github.com/resumelens/resumelens/internal/store"
)

// App wires the pipeline together: store, object storage, workers, sweeper,
// and the HTTP server.
type App struct {
	Store   store.JobStore
	Objects objectstore.Client
	Pool    *ingest.Pool
	Sweeper *cleanup.Sweeper
	Server  *Server

	analyzer analysis.Analyzer
	log      *slog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	jobStore, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	objects, err := newObjectStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var analyzer analysis.Analyzer
	if cfg.AIAPIKey != "" {
		ga, err := analysis.NewGeminiAnalyzer(ctx, cfg.AIAPIKey, cfg.GenModel)
		if err != nil {
			return nil, fmt.Errorf("init analyzer: %w", err)
		}
		analyzer = ga
	} else {
		log.Warn("GEMINI_API_KEY not set; analysis endpoint disabled")
	}

	tr := tracker.New(jobStore, log)
	validator := validate.New(validate.Config{
		MinSize: cfg.MinFileSize,
		MaxSize: cfg.MaxFileSize,
	})
	scanner := scan.NewHeuristicScanner(log)
	deduper := dedup.New(jobStore, dedup.ParsePolicy(cfg.DedupPolicy), log)
	extractor := extract.New(extract.Config{Timeout: cfg.ExtractTimeout}, log)

	pipe := ingest.NewPipeline(jobStore, objects, tr, validator, scanner, deduper, extractor, log)
	pool := ingest.NewPool(pipe, log,
		ingest.WithWorkers(cfg.Workers),
		ingest.WithQueueSize(cfg.QueueSize),
		ingest.WithJobTimeout(cfg.JobTimeout),
	)
	if _, err := pool.RecoverPending(ctx); err != nil {
		log.Error("recover pending jobs", "error", err)
	}

	sweeper := cleanup.New(jobStore, tr, cleanup.Config{
		Interval:           cfg.SweepInterval,
		StalenessWindow:    cfg.StalenessWindow,
		ErrorRetention:     cfg.ErrorRetention,
		CompletedRetention: cfg.CompletedRetention,
	}, log)

	app := &App{
		Store:    jobStore,
		Objects:  objects,
		Pool:     pool,
		Sweeper:  sweeper,
		analyzer: analyzer,
		log:      log,
	}
	app.Server = NewServer(cfg, app)
	return app, nil
}

func newStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.JobStore, error) {
	if cfg.DatabaseURL != "" {
		s, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		log.Info("using postgres store")
		return s, nil
	}
	s, err := store.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("init sqlite store: %w", err)
	}
	log.Info("using sqlite store", "path", cfg.SQLitePath)
	return s, nil
}

func newObjectStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (objectstore.Client, error) {
	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" {
		return objectstore.NewS3Client(ctx, objectstore.S3Config{
			AccessKey: cfg.AwsAccessKey,
			SecretKey: cfg.AwsSecretKey,
			Region:    cfg.AwsRegion,
			Bucket:    cfg.BucketName,
		}, log)
	}
	log.Info("using local object storage", "dir", cfg.StorageDir)
	return objectstore.NewLocalClient(cfg.StorageDir)
}

func (a *App) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
	if closer, ok := a.analyzer.(interface{ Close() error }); ok && closer != nil {
		_ = closer.Close()
	}
}
