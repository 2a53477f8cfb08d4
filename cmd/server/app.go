package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"carboncast/internal/forecast/metrics"
	"carboncast/internal/forecast/registry"
	"carboncast/internal/forecast/service"
	"carboncast/internal/forecast/store/artifact"
	"carboncast/internal/forecast/store/cache"
	"carboncast/internal/forecast/store/history"
	"carboncast/internal/forecast/trainer"
	"carboncast/internal/platform/config"
	"carboncast/internal/platform/postgres"
	"carboncast/internal/platform/redis"
	"carboncast/pkg/platform/circuit"
)

// app holds the wired forecast service and the connections it owns.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	service *service.Service

	redis *redis.Client
	db    *sql.DB
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	m := metrics.New(reg)

	artifacts, err := newArtifactStore(ctx, cfg.Artifacts)
	if err != nil {
		return nil, err
	}

	tcfg := trainer.DefaultConfig()
	tcfg.Samples = cfg.Training.Samples
	tcfg.Seed = cfg.Training.Seed
	tr := trainer.New(tcfg, trainer.WithLogger(logger), trainer.WithMetrics(m))

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithQueueSize(cfg.Retrain.QueueSize),
		service.WithIDGenerator(func() string { return uuid.NewString() }),
	}

	a.redis, err = redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if a.redis != nil {
		redisCache := cache.NewRedisCache(a.redis.Client, cfg.Redis.CacheTTL)
		breaker := circuit.New("prediction-cache")
		opts = append(opts, service.WithCache(cache.NewBreakerCache(redisCache, breaker, logger)))
		logger.InfoContext(ctx, "prediction cache enabled", "ttl", cfg.Redis.CacheTTL.String())
	}

	a.db, err = postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if a.db != nil {
		store := history.NewPostgres(a.db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		opts = append(opts, service.WithHistory(store))
		logger.InfoContext(ctx, "prediction history stored in postgres")
	} else {
		opts = append(opts, service.WithHistory(history.NewInMemoryStore(history.DefaultCapacity)))
	}

	a.service = service.New(registry.New(), tr, artifacts, opts...)
	return a, nil
}

func newArtifactStore(ctx context.Context, cfg config.ArtifactConfig) (artifact.Store, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return artifact.NewS3Store(ctx, artifact.S3Config{
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			Region:   cfg.AWSRegion,
			Endpoint: cfg.S3Endpoint,
		})
	case config.BackendFS, "":
		return artifact.NewFSStore(cfg.ModelsDir), nil
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}

// Close releases the Redis and Postgres connections, if any.
func (a *app) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
