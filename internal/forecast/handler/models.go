package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"carboncast/internal/forecast/models"
	"carboncast/internal/forecast/registry"
	"carboncast/pkg/domain"
	dErrors "carboncast/pkg/domain-errors"
)

const missingInputMessage = "Missing 'input' field in request body"

// PredictRequest is the body of POST /predict/{domain}. Input accepts a JSON
// number or a numeric string.
type PredictRequest struct {
	Input json.RawMessage `json:"input"`
}

// ParsedInput validates and converts Input.
func (r *PredictRequest) ParsedInput() (float64, error) {
	raw := bytes.TrimSpace(r.Input)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, dErrors.New(dErrors.CodeValidation, missingInputMessage)
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("'input' must be a number, got %s", raw))
		}
		v, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("'input' must be a number, got %q", s))
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, dErrors.New(dErrors.CodeValidation, "'input' must be a finite number")
	}
	return v, nil
}

// HealthResponse reports readiness. Domains always lists every supported
// sector; States says which of them can serve predictions.
type HealthResponse struct {
	Status       string                           `json:"status"`
	ModelsLoaded bool                             `json:"models_loaded"`
	Domains      []domain.Sector                  `json:"domains"`
	States       map[domain.Sector]registry.State `json:"states"`
}

func healthFromStatus(states map[domain.Sector]registry.State, allReady bool) HealthResponse {
	return HealthResponse{
		Status:       "healthy",
		ModelsLoaded: allReady,
		Domains:      domain.AllSectors(),
		States:       states,
	}
}

// RetrainResponse is returned by the retrain endpoints. Job is set when the
// retrain is still running or was only queued.
type RetrainResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Job     *models.RetrainJob `json:"job,omitempty"`
}

// HistoryResponse lists recent predictions newest first.
type HistoryResponse struct {
	Domain  domain.Sector             `json:"domain"`
	Records []models.PredictionRecord `json:"records"`
}
