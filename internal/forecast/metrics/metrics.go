package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"carboncast/pkg/domain"
)

// Metrics provides observability for the forecast module.
// Tracks prediction outcomes, training durations and per-sector readiness.
type Metrics struct {
	PredictionsTotal   *prometheus.CounterVec
	PredictionDuration prometheus.Histogram
	TrainingDuration   *prometheus.HistogramVec
	ModelTestMAE       *prometheus.GaugeVec
	SectorReady        *prometheus.GaugeVec
	CacheLookups       *prometheus.CounterVec
	RetrainJobs        *prometheus.CounterVec
}

// New creates a Metrics instance registered on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PredictionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carboncast_predictions_total",
			Help: "Total number of prediction requests by sector and outcome",
		}, []string{"domain", "outcome"}),
		PredictionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "carboncast_prediction_duration_seconds",
			Help:    "Duration of ensemble predictions",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		TrainingDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carboncast_training_duration_seconds",
			Help:    "Duration of training one sector's model set",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"domain", "outcome"}),
		ModelTestMAE: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "carboncast_model_test_mae_kg",
			Help: "Mean absolute error on the held-out test split at last training",
		}, []string{"domain", "model"}),
		SectorReady: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "carboncast_domain_ready",
			Help: "1 when the sector's model set is ready to serve predictions",
		}, []string{"domain"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carboncast_prediction_cache_lookups_total",
			Help: "Prediction cache lookups by result",
		}, []string{"result"}),
		RetrainJobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carboncast_retrain_jobs_total",
			Help: "Retrain jobs by final status",
		}, []string{"status"}),
	}
}

// ObservePrediction records one prediction outcome ("ok", "invalid",
// "not_ready", "error"). Call with time.Now() at the start of the operation.
func (m *Metrics) ObservePrediction(sector domain.Sector, outcome string, start time.Time) {
	m.PredictionsTotal.WithLabelValues(string(sector), outcome).Inc()
	if outcome == "ok" {
		m.PredictionDuration.Observe(time.Since(start).Seconds())
	}
}

// ObserveTraining records how long a sector took to train.
func (m *Metrics) ObserveTraining(sector domain.Sector, outcome string, start time.Time) {
	m.TrainingDuration.WithLabelValues(string(sector), outcome).Observe(time.Since(start).Seconds())
}

// SetTestMAE records a model's held-out error.
func (m *Metrics) SetTestMAE(sector domain.Sector, model string, mae float64) {
	m.ModelTestMAE.WithLabelValues(string(sector), model).Set(mae)
}

// SetReady flips the sector readiness gauge.
func (m *Metrics) SetReady(sector domain.Sector, ready bool) {
	v := 0.0
	if ready {
		v = 1
	}
	m.SectorReady.WithLabelValues(string(sector)).Set(v)
}

// IncrementCacheLookup records a cache "hit", "miss" or "error".
func (m *Metrics) IncrementCacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}

// IncrementRetrainJob records a finished retrain job.
func (m *Metrics) IncrementRetrainJob(status string) {
	m.RetrainJobs.WithLabelValues(status).Inc()
}
