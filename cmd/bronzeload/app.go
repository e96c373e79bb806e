package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/animus-labs/bronze-loader/internal/config"
	platformstore "github.com/animus-labs/bronze-loader/internal/platform/objectstore"
	"github.com/animus-labs/bronze-loader/internal/scheduler"
	"github.com/animus-labs/bronze-loader/internal/storage/objectstore"
	"github.com/animus-labs/bronze-loader/internal/transfer"
	"github.com/animus-labs/bronze-loader/internal/warehouse"
)

// app holds the wired components for one process.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *objectstore.MinioStore
	warehouse *warehouse.Postgres
	pipeline  *transfer.Pipeline
	scheduler *scheduler.Scheduler
}

func loadApp(opts *rootOptions) (*app, error) {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return nil, &configError{err: err}
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, &configError{err: err}
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	store, err := objectstore.NewMinioStore(cfg.Source)
	if err != nil {
		return nil, &configError{err: err}
	}
	wh, err := warehouse.NewPostgres(cfg.Warehouse, cfg.Tables)
	if err != nil {
		return nil, &configError{err: err}
	}

	fetcher, err := transfer.NewFetcher(store, cfg.StagingDir, logger)
	if err != nil {
		return nil, &configError{err: err}
	}
	loader, err := transfer.NewLoader(wh, cfg.Format, logger)
	if err != nil {
		return nil, &configError{err: err}
	}
	advisory, err := warehouse.NewAdvisoryLease(cfg.Warehouse, cfg.Scheduler.Name)
	if err != nil {
		return nil, &configError{err: err}
	}
	loader.UseLease(advisory)

	pipeline, err := transfer.NewPipeline(fetcher, loader, cfg.Bucket, logger)
	if err != nil {
		return nil, &configError{err: err}
	}

	sched, err := scheduler.New(cfg.Scheduler, pipeline, &scheduler.LocalLease{}, logger)
	if err != nil {
		return nil, &configError{err: err}
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		warehouse: wh,
		pipeline:  pipeline,
		scheduler: sched,
	}, nil
}

func (a *app) checkSource(ctx context.Context) error {
	return platformstore.CheckBucket(ctx, a.store.Client(), a.cfg.Bucket)
}

func (a *app) checkWarehouse(ctx context.Context) error {
	return a.warehouse.Check(ctx)
}
