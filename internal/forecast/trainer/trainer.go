// Package trainer turns a sector into a fully fitted model set: it generates
// synthetic data, partitions it 70/15/15, fits the scaler on the training
// split only, fits the four regressors concurrently and scores each on the
// test split.
package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"carboncast/internal/forecast/metrics"
	"carboncast/internal/forecast/models"
	"carboncast/internal/ml/dataset"
	"carboncast/internal/ml/regressor"
	"carboncast/internal/ml/scaler"
	"carboncast/pkg/domain"
)

// Config controls data volume and model hyperparameters.
type Config struct {
	Samples int
	Seed    uint64
	Forest  regressor.ForestParams
	Boost   regressor.BoostParams
	Network regressor.NetworkParams
}

// DefaultConfig is the production configuration.
func DefaultConfig() Config {
	return Config{
		Samples: dataset.DefaultSamples,
		Seed:    dataset.DefaultSeed,
		Forest:  regressor.DefaultForestParams(),
		Boost:   regressor.DefaultBoostParams(),
		Network: regressor.DefaultNetworkParams(),
	}
}

// Trainer fits model sets. It holds no per-sector state and never touches the
// registry; callers decide where a trained set goes.
type Trainer struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Trainer)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Trainer) {
		t.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Trainer) {
		t.metrics = m
	}
}

// WithClock sets the clock used for TrainedAt.
func WithClock(now func() time.Time) Option {
	return func(t *Trainer) {
		t.now = now
	}
}

// New constructs a Trainer.
func New(cfg Config, opts ...Option) *Trainer {
	t := &Trainer{
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer("carboncast/trainer"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train produces a ready model set for sector. Training is all-or-nothing: any
// model failure or ctx cancellation fails the whole set.
func (t *Trainer) Train(ctx context.Context, sector domain.Sector) (set *models.ModelSet, err error) {
	ctx, span := t.tracer.Start(ctx, "trainer.Train", trace.WithAttributes(attribute.String("domain", string(sector))))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if t.metrics != nil {
			t.metrics.ObserveTraining(sector, outcome, start)
		}
		span.End()
	}()

	if !sector.IsValid() {
		_, err := domain.ParseSector(string(sector))
		return nil, err
	}

	t.logger.InfoContext(ctx, "training models", "domain", sector, "samples", t.cfg.Samples)

	ds := dataset.Generate(sector, t.cfg.Samples, t.cfg.Seed)
	parts := dataset.Partition(ds, t.cfg.Seed)

	sc, err := scaler.Fit(parts.Train.Inputs)
	if err != nil {
		return nil, fmt.Errorf("fit scaler for %s: %w", sector, err)
	}
	trainX, valX, testX, err := scaleSplits(sc, parts)
	if err != nil {
		return nil, fmt.Errorf("scale inputs for %s: %w", sector, err)
	}
	trainY := parts.Train.Targets

	fitted, err := t.fitAll(ctx, sector, trainX, trainY, valX, parts.Validation.Targets)
	if err != nil {
		return nil, err
	}

	set = &models.ModelSet{
		Sector:    sector,
		Scaler:    sc,
		Models:    fitted,
		TrainedAt: t.now().UTC(),
		TestMAE:   make(map[regressor.Kind]float64, len(fitted)),
	}
	for _, k := range regressor.Kinds {
		mae := regressor.MeanAbsoluteError(fitted[k], testX, parts.Test.Targets)
		set.TestMAE[k] = mae
		if t.metrics != nil {
			t.metrics.SetTestMAE(sector, string(k), mae)
		}
		t.logger.InfoContext(ctx, "model test score",
			"domain", sector,
			"model", k,
			"mae_kg", mae,
		)
	}

	if err := set.Stamp(); err != nil {
		return nil, err
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	t.logger.InfoContext(ctx, "models trained",
		"domain", sector,
		"version", set.Version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return set, nil
}

// scaleSplits standardizes the inputs of every partition with sc.
func scaleSplits(sc *scaler.Standard, parts dataset.Partitions) (train, val, test []float64, err error) {
	if train, err = sc.TransformAll(parts.Train.Inputs); err != nil {
		return nil, nil, nil, fmt.Errorf("train split: %w", err)
	}
	if val, err = sc.TransformAll(parts.Validation.Inputs); err != nil {
		return nil, nil, nil, fmt.Errorf("validation split: %w", err)
	}
	if test, err = sc.TransformAll(parts.Test.Inputs); err != nil {
		return nil, nil, nil, fmt.Errorf("test split: %w", err)
	}
	return train, val, test, nil
}

func (t *Trainer) fitAll(ctx context.Context, sector domain.Sector, xs, ys, valX, valY []float64) (map[regressor.Kind]regressor.Regressor, error) {
	var mu sync.Mutex
	fitted := make(map[regressor.Kind]regressor.Regressor, len(regressor.Kinds))
	put := func(r regressor.Regressor) {
		mu.Lock()
		fitted[r.Kind()] = r
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := regressor.FitLinear(xs, ys)
		if err != nil {
			return fmt.Errorf("fit linear for %s: %w", sector, err)
		}
		put(m)
		return nil
	})
	g.Go(func() error {
		m, err := regressor.FitForest(ctx, xs, ys, t.cfg.Forest)
		if err != nil {
			return fmt.Errorf("fit random forest for %s: %w", sector, err)
		}
		put(m)
		return nil
	})
	g.Go(func() error {
		m, err := regressor.FitBoosted(ctx, xs, ys, t.cfg.Boost)
		if err != nil {
			return fmt.Errorf("fit xgboost for %s: %w", sector, err)
		}
		put(m)
		return nil
	})
	g.Go(func() error {
		m, history, err := regressor.FitNetwork(ctx, xs, ys, valX, valY, t.cfg.Network)
		if err != nil {
			return fmt.Errorf("fit neural network for %s: %w", sector, err)
		}
		if n := len(history); n > 0 {
			last := history[n-1]
			t.logger.DebugContext(ctx, "neural network trained",
				"domain", sector,
				"epochs", last.Epoch,
				"loss", last.Loss,
				"val_loss", last.ValLoss,
			)
		}
		put(m)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fitted, nil
}
