package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"carboncast/internal/ml/regressor"
	"carboncast/internal/ml/scaler"
	"carboncast/pkg/domain"
)

// ModelSet is the unit the registry serves and the artifact store persists:
// four regressors and the scaler they were trained against.
// Invariant: the scaler and models are only ever replaced together.
type ModelSet struct {
	Sector    domain.Sector
	Scaler    *scaler.Standard
	Models    map[regressor.Kind]regressor.Regressor
	TrainedAt time.Time
	// Version fingerprints the scaler and model contents. It is stable across
	// restarts and replicas that load the same artifacts.
	Version string
	// TestMAE is observational; it never drives model selection.
	TestMAE map[regressor.Kind]float64
}

// Ready reports whether all four models and the scaler are present and fitted.
func (s *ModelSet) Ready() bool {
	if s == nil || !s.Scaler.IsFitted() {
		return false
	}
	for _, k := range regressor.Kinds {
		m, ok := s.Models[k]
		if !ok || m == nil || !m.Fitted() {
			return false
		}
	}
	return true
}

// Validate returns a descriptive error for a set that is not Ready.
func (s *ModelSet) Validate() error {
	if s == nil {
		return fmt.Errorf("model set is nil")
	}
	if !s.Scaler.IsFitted() {
		return fmt.Errorf("model set for %s has no fitted scaler", s.Sector)
	}
	for _, k := range regressor.Kinds {
		m, ok := s.Models[k]
		if !ok || m == nil || !m.Fitted() {
			return fmt.Errorf("model set for %s is missing a fitted %s model", s.Sector, k)
		}
	}
	if s.Version == "" {
		return fmt.Errorf("model set for %s has no version", s.Sector)
	}
	return nil
}

// Fingerprint hashes the JSON form of the sector, scaler and models in Kinds
// order. Equal contents give equal fingerprints in any process, which gob
// type ids do not guarantee.
func Fingerprint(s *ModelSet) (string, error) {
	if s == nil || s.Scaler == nil {
		return "", fmt.Errorf("fingerprint: model set has no scaler")
	}
	h := sha256.New()
	enc := json.NewEncoder(h)
	if err := enc.Encode(s.Sector); err != nil {
		return "", fmt.Errorf("fingerprint sector: %w", err)
	}
	if err := enc.Encode(s.Scaler); err != nil {
		return "", fmt.Errorf("fingerprint scaler: %w", err)
	}
	for _, k := range regressor.Kinds {
		m, ok := s.Models[k]
		if !ok || m == nil {
			return "", fmt.Errorf("fingerprint: missing %s model", k)
		}
		if err := enc.Encode(m); err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", k, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)[:12]), nil
}

// Stamp sets Version from the current contents.
func (s *ModelSet) Stamp() error {
	v, err := Fingerprint(s)
	if err != nil {
		return err
	}
	s.Version = v
	return nil
}

// Predictions holds the rounded per-model outputs and their mean.
type Predictions struct {
	Linear       float64 `json:"linear"`
	RandomForest float64 `json:"random_forest"`
	XGBoost      float64 `json:"xgboost"`
	Neural       float64 `json:"neural"`
	Ensemble     float64 `json:"ensemble"`
}

// Comparison holds each model's percentage change against the current
// footprint.
type Comparison struct {
	LinearChange       float64 `json:"linear_change"`
	RandomForestChange float64 `json:"random_forest_change"`
	XGBoostChange      float64 `json:"xgboost_change"`
	NeuralChange       float64 `json:"neural_change"`
}

// PredictionResult is derived per request and never persisted as-is.
type PredictionResult struct {
	Success          bool          `json:"success"`
	Sector           domain.Sector `json:"domain"`
	Input            float64       `json:"input"`
	CurrentFootprint float64       `json:"current_footprint"`
	Predictions      Predictions   `json:"predictions"`
	Comparison       Comparison    `json:"comparison"`
	Unit             string        `json:"unit"`
	Suggestion       string        `json:"suggestion"`
}

// PredictionRecord is a stored prediction.
type PredictionRecord struct {
	ID        string           `json:"id"`
	Sector    domain.Sector    `json:"domain"`
	Input     float64          `json:"input"`
	Result    PredictionResult `json:"result"`
	CreatedAt time.Time        `json:"created_at"`
}
