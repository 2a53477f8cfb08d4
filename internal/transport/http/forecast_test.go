package httptransport_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboncast/internal/forecast/handler"
	"carboncast/internal/forecast/metrics"
	"carboncast/internal/forecast/models"
	"carboncast/internal/forecast/registry"
	"carboncast/internal/forecast/service"
	"carboncast/internal/forecast/store/artifact"
	"carboncast/internal/forecast/store/history"
	httptransport "carboncast/internal/transport/http"
	"carboncast/pkg/domain"
	"carboncast/pkg/testutil"
)

// constantTrainer returns stub sets whose models all predict the same value.
type constantTrainer struct {
	value atomic.Int64
}

func (c *constantTrainer) Train(_ context.Context, sector domain.Sector) (*models.ModelSet, error) {
	return testutil.UniformStub(sector, float64(c.value.Load())), nil
}

func newForecastStack(t *testing.T) (http.Handler, *constantTrainer) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	tr := &constantTrainer{}
	tr.value.Store(500)
	svc := service.New(registry.New(), tr, artifact.NewFSStore(t.TempDir()),
		service.WithLogger(logger),
		service.WithMetrics(metrics.New(reg)),
		service.WithHistory(history.NewInMemoryStore(history.DefaultCapacity)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = svc.RunWorker(ctx) }()

	h := handler.New(svc, logger, 5*time.Second)
	router := httptransport.NewRouter(logger, reg, h)

	testutil.When(t, "the service has not bootstrapped", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/predict/electricity", map[string]any{"input": 400}))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "not_ready")
	})

	require.NoError(t, svc.Bootstrap(ctx))
	return router, tr
}

func TestForecastAPI(t *testing.T) {
	testutil.Given(t, "a bootstrapped forecast service behind the router", func(t *testing.T) {
		router, tr := newForecastStack(t)

		testutil.When(t, "checking health", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/health", nil))

			testutil.Then(t, "every domain is ready", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				testutil.AssertJSONContains(t, rr, "status", "healthy")
				testutil.AssertJSONContains(t, rr, "models_loaded", true)
			})
		})

		testutil.When(t, "predicting electricity for 400 kWh", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/predict/electricity", map[string]any{"input": "400"}))

			testutil.Then(t, "the ensemble and current footprint are returned", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				res := testutil.UnmarshalResponse[models.PredictionResult](t, rr)
				assert.True(t, res.Success)
				assert.Equal(t, domain.SectorElectricity, res.Sector)
				assert.InDelta(t, 368.0, res.CurrentFootprint, 1e-9)
				assert.InDelta(t, 500.0, res.Predictions.Ensemble, 1e-9)
				assert.Equal(t, domain.EmissionUnit, res.Unit)
			})

			testutil.Then(t, "the prediction appears in history", func(t *testing.T) {
				rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/history/electricity", nil))
				testutil.AssertStatus(t, rr, http.StatusOK)
				body := testutil.UnmarshalResponse[handler.HistoryResponse](t, rr)
				require.Len(t, body.Records, 1)
				assert.InDelta(t, 400.0, body.Records[0].Input, 1e-9)
			})
		})

		testutil.When(t, "retraining transport and waiting", func(t *testing.T) {
			tr.value.Store(250)
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/retrain/transport?wait=true", nil))

			testutil.Then(t, "the new models serve transport only", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				testutil.AssertJSONContains(t, rr, "message", "Models for transport retrained successfully")

				rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/predict/transport", map[string]any{"input": 10}))
				res := testutil.UnmarshalResponse[models.PredictionResult](t, rr)
				assert.InDelta(t, 250.0, res.Predictions.Ensemble, 1e-9)

				rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/predict/electricity", map[string]any{"input": 10}))
				res = testutil.UnmarshalResponse[models.PredictionResult](t, rr)
				assert.InDelta(t, 500.0, res.Predictions.Ensemble, 1e-9)
			})
		})

		testutil.When(t, "predicting an unknown domain", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/predict/mining", map[string]any{"input": 1}))

			testutil.Then(t, "a validation error is returned", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
			})
		})

		testutil.When(t, "scraping metrics", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/metrics", nil))

			testutil.Then(t, "forecast counters are exposed", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				assert.Contains(t, rr.Body.String(), `carboncast_predictions_total{domain="electricity",outcome="ok"}`)
				assert.Contains(t, rr.Body.String(), `carboncast_domain_ready{domain="transport"} 1`)
			})
		})
	})
}
