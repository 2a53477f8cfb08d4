package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"carboncast/internal/forecast/models"
	"carboncast/internal/forecast/registry"
	"carboncast/pkg/domain"
	dErrors "carboncast/pkg/domain-errors"
	"carboncast/pkg/platform/httputil"
)

// Service defines the forecast operations the HTTP layer needs.
type Service interface {
	Predict(ctx context.Context, sectorName string, input float64) (*models.PredictionResult, error)
	History(ctx context.Context, sectorName string, limit int) ([]models.PredictionRecord, error)
	Status() map[domain.Sector]registry.State
	AllReady() bool
	SubmitRetrain(ctx context.Context, sectors []domain.Sector) (*models.RetrainJob, error)
	Job(ctx context.Context, id string) (*models.RetrainJob, error)
	Wait(ctx context.Context, id string) (*models.RetrainJob, error)
}

// DefaultWaitTimeout bounds ?wait=true retrain requests.
const DefaultWaitTimeout = 2 * time.Minute

// Handler wires forecast endpoints to the service.
type Handler struct {
	service     Service
	logger      *slog.Logger
	waitTimeout time.Duration
}

// New constructs a forecast handler. A non-positive waitTimeout selects
// DefaultWaitTimeout.
func New(service Service, logger *slog.Logger, waitTimeout time.Duration) *Handler {
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	return &Handler{
		service:     service,
		logger:      logger,
		waitTimeout: waitTimeout,
	}
}

// Register mounts forecast endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Post("/predict/{domain}", h.HandlePredict)
	r.Post("/retrain", h.HandleRetrainAll)
	r.Post("/retrain/{domain}", h.HandleRetrainDomain)
	r.Get("/retrain/jobs/{id}", h.HandleGetJob)
	r.Get("/history/{domain}", h.HandleHistory)
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, healthFromStatus(h.service.Status(), h.service.AllReady()))
}

// HandlePredict handles POST /predict/{domain}.
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)
	start := time.Now()

	sector, err := domain.ParseSector(chi.URLParam(r, "domain"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeJSON[PredictRequest](w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	input, err := req.ParsedInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Predict(ctx, string(sector), input)
	if err != nil {
		h.logFailure(ctx, "prediction failed", err,
			"request_id", requestID,
			"domain", sector,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "prediction served",
		"request_id", requestID,
		"domain", sector,
		"input", input,
		"ensemble", result.Predictions.Ensemble,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleRetrainAll handles POST /retrain.
func (h *Handler) HandleRetrainAll(w http.ResponseWriter, r *http.Request) {
	h.retrain(w, r, nil, "All models retrained successfully")
}

// HandleRetrainDomain handles POST /retrain/{domain}.
func (h *Handler) HandleRetrainDomain(w http.ResponseWriter, r *http.Request) {
	sector, err := domain.ParseSector(chi.URLParam(r, "domain"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.retrain(w, r, []domain.Sector{sector}, fmt.Sprintf("Models for %s retrained successfully", sector))
}

func (h *Handler) retrain(w http.ResponseWriter, r *http.Request, sectors []domain.Sector, successMessage string) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)

	wait, err := parseWait(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	job, err := h.service.SubmitRetrain(ctx, sectors)
	if err != nil {
		h.logFailure(ctx, "retrain submission failed", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "retrain queued",
		"request_id", requestID,
		"job_id", job.ID,
		"domains", sectors,
		"wait", wait,
	)

	if !wait {
		httputil.WriteJSON(w, http.StatusAccepted, RetrainResponse{
			Success: true,
			Message: "Retraining queued",
			Job:     job,
		})
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.waitTimeout)
	defer cancel()
	done, err := h.service.Wait(waitCtx, job.ID)
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		httputil.WriteJSON(w, http.StatusAccepted, RetrainResponse{
			Success: true,
			Message: "Retraining still in progress",
			Job:     done,
		})
	case err != nil:
		h.logFailure(ctx, "retrain wait failed", err, "request_id", requestID, "job_id", job.ID)
		httputil.WriteError(w, err)
	case done.Status == models.JobFailed:
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, done.Error))
	default:
		httputil.WriteJSON(w, http.StatusOK, RetrainResponse{
			Success: true,
			Message: successMessage,
		})
	}
}

func parseWait(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("wait")
	if raw == "" {
		return false, nil
	}
	wait, err := strconv.ParseBool(raw)
	if err != nil {
		return false, dErrors.New(dErrors.CodeBadRequest, "wait must be a boolean")
	}
	return wait, nil
}

// HandleGetJob handles GET /retrain/jobs/{id}.
func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

// HandleHistory handles GET /history/{domain}?limit=n.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sector, err := domain.ParseSector(chi.URLParam(r, "domain"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
	}
	records, err := h.service.History(ctx, string(sector), limit)
	if err != nil {
		h.logFailure(ctx, "history lookup failed", err,
			"request_id", middleware.GetReqID(ctx),
			"domain", sector,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{Domain: sector, Records: records})
}

// logFailure logs client errors at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "error", err)
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, msg, args...)
	default:
		h.logger.WarnContext(ctx, msg, args...)
	}
}
