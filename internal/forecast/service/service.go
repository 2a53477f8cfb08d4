// Package service orchestrates the forecast lifecycle: bootstrapping model
// sets from artifacts or training, serving ensemble predictions and running
// retrain jobs.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"carboncast/internal/forecast/metrics"
	"carboncast/internal/forecast/models"
	"carboncast/internal/forecast/registry"
	"carboncast/internal/forecast/store/artifact"
	"carboncast/internal/ml/regressor"
	"carboncast/pkg/domain"
	dErrors "carboncast/pkg/domain-errors"
	"carboncast/pkg/platform/sentinel"
)

type Trainer interface {
	Train(ctx context.Context, sector domain.Sector) (*models.ModelSet, error)
}

type ArtifactStore interface {
	Save(ctx context.Context, sector domain.Sector, set *models.ModelSet) error
	LoadAll(ctx context.Context) artifact.LoadResult
}

type HistoryStore interface {
	Append(ctx context.Context, rec models.PredictionRecord) error
	ListRecent(ctx context.Context, sector domain.Sector, limit int) ([]models.PredictionRecord, error)
}

type PredictionCache interface {
	Get(ctx context.Context, sector domain.Sector, version string, input float64) (*models.PredictionResult, bool, error)
	Set(ctx context.Context, sector domain.Sector, version string, input float64, result *models.PredictionResult) error
}

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 500
	DefaultQueueSize    = 8
	maxRetainedJobs     = 256
)

// Service owns the registry and coordinates training, persistence and
// inference.
type Service struct {
	registry  *registry.Registry
	trainer   Trainer
	artifacts ArtifactStore
	history   HistoryStore
	cache     PredictionCache
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string

	queueSize int
	queue     chan *jobEntry
	jobsMu    sync.RWMutex
	jobs      map[string]*jobEntry
	jobOrder  []string
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithHistory(h HistoryStore) Option {
	return func(s *Service) {
		s.history = h
	}
}

func WithCache(c PredictionCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithQueueSize bounds the number of pending retrain jobs.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		s.queueSize = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// New constructs a Service.
func New(reg *registry.Registry, trainer Trainer, artifacts ArtifactStore, opts ...Option) *Service {
	s := &Service{
		registry:  reg,
		trainer:   trainer,
		artifacts: artifacts,
		logger:    slog.Default(),
		tracer:    otel.Tracer("carboncast/service"),
		now:       time.Now,
		newID:     uuid.NewString,
		queueSize: DefaultQueueSize,
		jobs:      make(map[string]*jobEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queueSize <= 0 {
		s.queueSize = DefaultQueueSize
	}
	s.queue = make(chan *jobEntry, s.queueSize)
	return s
}

// Status reports each sector's readiness.
func (s *Service) Status() map[domain.Sector]registry.State {
	return s.registry.Status()
}

// AllReady reports whether every sector can serve predictions.
func (s *Service) AllReady() bool {
	return s.registry.AllReady()
}

// Predict runs the ensemble for sectorName on a raw input value.
func (s *Service) Predict(ctx context.Context, sectorName string, input float64) (result *models.PredictionResult, err error) {
	start := time.Now()
	sector, err := domain.ParseSector(sectorName)
	if err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "service.Predict", trace.WithAttributes(attribute.String("domain", string(sector))))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.observePrediction(sector, err, start)
	}()

	if math.IsNaN(input) || math.IsInf(input, 0) {
		return nil, dErrors.New(dErrors.CodeValidation, "'input' must be a finite number")
	}

	snap, err := s.registry.Snapshot(sector)
	if err != nil {
		return nil, err
	}

	if cached := s.lookupCache(ctx, sector, snap.Set.Version, input); cached != nil {
		s.recordHistory(ctx, cached)
		return cached, nil
	}

	result, err = computePrediction(snap.Set, input)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "prediction failed")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, sector, snap.Set.Version, input, result); err != nil {
			s.logger.WarnContext(ctx, "failed to cache prediction", "domain", sector, "error", err)
		}
	}
	s.recordHistory(ctx, result)
	return result, nil
}

func computePrediction(set *models.ModelSet, input float64) (*models.PredictionResult, error) {
	sector := set.Sector
	current := sector.CurrentFootprint(input)
	scaled, err := set.Scaler.Transform(input)
	if err != nil {
		return nil, err
	}

	raw := make(map[regressor.Kind]float64, len(regressor.Kinds))
	var sum float64
	for _, k := range regressor.Kinds {
		p := set.Models[k].Predict(scaled)
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%s model produced a non-finite prediction", k)
		}
		raw[k] = p
		sum += p
	}
	ensemble := sum / float64(len(regressor.Kinds))

	return &models.PredictionResult{
		Success:          true,
		Sector:           sector,
		Input:            input,
		CurrentFootprint: round2(current),
		Predictions: models.Predictions{
			Linear:       round2(raw[regressor.KindLinear]),
			RandomForest: round2(raw[regressor.KindRandomForest]),
			XGBoost:      round2(raw[regressor.KindXGBoost]),
			Neural:       round2(raw[regressor.KindNeural]),
			Ensemble:     round2(ensemble),
		},
		Comparison: models.Comparison{
			LinearChange:       percentChange(raw[regressor.KindLinear], current),
			RandomForestChange: percentChange(raw[regressor.KindRandomForest], current),
			XGBoostChange:      percentChange(raw[regressor.KindXGBoost], current),
			NeuralChange:       percentChange(raw[regressor.KindNeural], current),
		},
		Unit:       domain.EmissionUnit,
		Suggestion: sector.Suggestion(current),
	}, nil
}

// percentChange is 0 when current is not positive.
func percentChange(pred, current float64) float64 {
	if current <= 0 {
		return 0
	}
	return round2((pred - current) / current * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *Service) lookupCache(ctx context.Context, sector domain.Sector, version string, input float64) *models.PredictionResult {
	if s.cache == nil {
		return nil
	}
	res, ok, err := s.cache.Get(ctx, sector, version, input)
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "prediction cache lookup failed", "domain", sector, "error", err)
		s.incrementCacheLookup("error")
		return nil
	case !ok:
		s.incrementCacheLookup("miss")
		return nil
	default:
		s.incrementCacheLookup("hit")
		return res
	}
}

func (s *Service) recordHistory(ctx context.Context, res *models.PredictionResult) {
	if s.history == nil {
		return
	}
	rec := models.PredictionRecord{
		ID:        s.newID(),
		Sector:    res.Sector,
		Input:     res.Input,
		Result:    *res,
		CreatedAt: s.now().UTC(),
	}
	if err := s.history.Append(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to record prediction history", "domain", res.Sector, "error", err)
	}
}

// History returns recent predictions for sectorName, newest first. A
// non-positive limit selects DefaultHistoryLimit.
func (s *Service) History(ctx context.Context, sectorName string, limit int) ([]models.PredictionRecord, error) {
	sector, err := domain.ParseSector(sectorName)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []models.PredictionRecord{}, nil
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	recs, err := s.history.ListRecent(ctx, sector, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load prediction history")
	}
	if recs == nil {
		recs = []models.PredictionRecord{}
	}
	return recs, nil
}

// Bootstrap installs every sector that loads from the artifact store and
// trains the rest. Training failures leave the sector unavailable and are
// logged; only cancellation aborts the bootstrap.
func (s *Service) Bootstrap(ctx context.Context) error {
	loaded := s.artifacts.LoadAll(ctx)
	for _, sector := range domain.AllSectors() {
		set, ok := loaded.Sets[sector]
		if !ok {
			continue
		}
		if err := s.registry.Install(sector, set); err != nil {
			s.logger.ErrorContext(ctx, "failed to install loaded models", "domain", sector, "error", err)
			loaded.Errors[sector] = err
			continue
		}
		s.setReady(sector, true)
		s.logger.InfoContext(ctx, "models loaded", "domain", sector)
	}
	if len(loaded.Errors) == 0 {
		return nil
	}

	for _, sector := range domain.AllSectors() {
		loadErr, missing := loaded.Errors[sector]
		if !missing {
			continue
		}
		if !errors.Is(loadErr, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "stored models unusable, retraining", "domain", sector, "error", loadErr)
		} else {
			s.logger.InfoContext(ctx, "no stored models, training", "domain", sector)
		}
		if err := s.RetrainDomain(ctx, sector); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.ErrorContext(ctx, "training failed, domain unavailable", "domain", sector, "error", err)
		}
	}
	return nil
}

// RetrainDomain trains sector, installs the result and persists it. A
// training failure keeps the previously installed set serving. A persistence
// failure is returned but the new set stays installed.
func (s *Service) RetrainDomain(ctx context.Context, sector domain.Sector) error {
	if !sector.IsValid() {
		_, err := domain.ParseSector(string(sector))
		return err
	}
	if err := s.registry.BeginTraining(sector); err != nil {
		return err
	}
	s.setReady(sector, false)

	set, err := s.trainer.Train(ctx, sector)
	if err != nil {
		s.registry.Abort(sector)
		s.setReady(sector, s.registry.State(sector) == registry.StateReady)
		return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("training %s failed", sector))
	}
	if err := s.registry.Install(sector, set); err != nil {
		s.registry.Abort(sector)
		s.setReady(sector, s.registry.State(sector) == registry.StateReady)
		return err
	}
	s.setReady(sector, true)

	if err := s.artifacts.Save(ctx, sector, set); err != nil {
		s.logger.ErrorContext(ctx, "failed to save models", "domain", sector, "error", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("saving models for %s failed", sector))
	}
	return nil
}

// RetrainAll retrains every sector in order. Each sector is independent; the
// returned error joins every sector's failure.
func (s *Service) RetrainAll(ctx context.Context) error {
	return s.retrainSectors(ctx, domain.AllSectors())
}

func (s *Service) retrainSectors(ctx context.Context, sectors []domain.Sector) error {
	var errs []error
	for _, sector := range sectors {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.RetrainDomain(ctx, sector); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return dErrors.Wrap(errors.Join(errs...), dErrors.CodeInternal, "retraining failed")
}

func (s *Service) observePrediction(sector domain.Sector, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case dErrors.HasCode(err, dErrors.CodeValidation):
		outcome = "invalid"
	case dErrors.HasCode(err, dErrors.CodeNotReady):
		outcome = "not_ready"
	default:
		outcome = "error"
	}
	s.metrics.ObservePrediction(sector, outcome, start)
}

func (s *Service) setReady(sector domain.Sector, ready bool) {
	if s.metrics != nil {
		s.metrics.SetReady(sector, ready)
	}
}

func (s *Service) incrementCacheLookup(result string) {
	if s.metrics != nil {
		s.metrics.IncrementCacheLookup(result)
	}
}
