package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"carboncast/internal/forecast/handler/mocks"
	"carboncast/internal/forecast/models"
	"carboncast/internal/forecast/registry"
	"carboncast/pkg/domain"
	dErrors "carboncast/pkg/domain-errors"
	tu "carboncast/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.service, logger, 100*time.Millisecond)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return tu.DoRequest(s.router, tu.WithRequestID(req, "req-1"))
}

func (s *HandlerSuite) TestHealth() {
	s.service.EXPECT().Status().Return(map[domain.Sector]registry.State{
		domain.SectorElectricity:   registry.StateReady,
		domain.SectorTransport:     registry.StateTraining,
		domain.SectorManufacturing: registry.StateReady,
		domain.SectorConstruction:  registry.StateUninitialized,
		domain.SectorAgriculture:   registry.StateReady,
	})
	s.service.EXPECT().AllReady().Return(false)

	rr := s.do(tu.NewJSONRequest(s.T(), http.MethodGet, "/health", nil))

	tu.AssertStatus(s.T(), rr, http.StatusOK)
	resp := tu.UnmarshalResponse[HealthResponse](s.T(), rr)
	s.Equal("healthy", resp.Status)
	s.False(resp.ModelsLoaded)
	s.Equal([]domain.Sector{
		domain.SectorElectricity,
		domain.SectorTransport,
		domain.SectorManufacturing,
		domain.SectorConstruction,
		domain.SectorAgriculture,
	}, resp.Domains, "domains lists every sector, not just the ready ones")
	s.Equal(registry.StateTraining, resp.States[domain.SectorTransport])
}

func (s *HandlerSuite) TestPredict() {
	s.Run("numeric input", func() {
		s.SetupTest()
		result := &models.PredictionResult{Success: true, Sector: domain.SectorElectricity, Input: 500, CurrentFootprint: 460, Unit: domain.EmissionUnit}
		s.service.EXPECT().Predict(gomock.Any(), "electricity", 500.0).Return(result, nil)

		rr := s.do(tu.NewRequestWithBody(s.T(), http.MethodPost, "/predict/electricity", `{"input": 500}`))

		tu.AssertStatus(s.T(), rr, http.StatusOK)
		got := tu.UnmarshalResponse[models.PredictionResult](s.T(), rr)
		s.Equal(*result, *got)
	})

	s.Run("numeric string input", func() {
		s.SetupTest()
		s.service.EXPECT().Predict(gomock.Any(), "transport", 12.5).Return(&models.PredictionResult{}, nil)

		rr := s.do(tu.NewRequestWithBody(s.T(), http.MethodPost, "/predict/transport", `{"input": " 12.5 "}`))
		tu.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("domain is normalised before reaching the service", func() {
		s.SetupTest()
		s.service.EXPECT().Predict(gomock.Any(), "agriculture", 1.0).Return(&models.PredictionResult{}, nil)

		rr := s.do(tu.NewRequestWithBody(s.T(), http.MethodPost, "/predict/Agriculture", `{"input": 1}`))
		tu.AssertStatus(s.T(), rr, http.StatusOK)
	})
}

func (s *HandlerSuite) TestPredictValidation() {
	cases := []struct {
		name    string
		path    string
		body    string
		status  int
		code    string
		message string
	}{
		{"unknown domain", "/predict/mining", `{"input": 1}`, http.StatusBadRequest, "validation_error", "Invalid domain. Must be one of: electricity, transport, manufacturing, construction, agriculture"},
		{"unknown domain wins over missing input", "/predict/mining", `{}`, http.StatusBadRequest, "validation_error", "Invalid domain"},
		{"missing input", "/predict/electricity", `{}`, http.StatusBadRequest, "validation_error", "Missing 'input' field in request body"},
		{"empty body", "/predict/electricity", ``, http.StatusBadRequest, "validation_error", "Missing 'input' field"},
		{"null input", "/predict/electricity", `{"input": null}`, http.StatusBadRequest, "validation_error", "Missing 'input' field"},
		{"non-numeric string", "/predict/electricity", `{"input": "lots"}`, http.StatusBadRequest, "validation_error", "'input' must be a number"},
		{"boolean", "/predict/electricity", `{"input": true}`, http.StatusBadRequest, "validation_error", "'input' must be a number"},
		{"NaN string", "/predict/electricity", `{"input": "NaN"}`, http.StatusBadRequest, "validation_error", "finite"},
		{"malformed JSON", "/predict/electricity", `{"input":`, http.StatusBadRequest, "bad_request", "invalid JSON body"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.SetupTest()
			rr := s.do(tu.NewRequestWithBody(s.T(), http.MethodPost, tc.path, tc.body))
			tu.AssertStatusAndError(s.T(), rr, tc.status, tc.code)
			s.Contains(tu.UnmarshalErrorResponse(s.T(), rr)["error"], tc.message)
		})
	}
}

func (s *HandlerSuite) TestPredictServiceErrors() {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not ready", dErrors.New(dErrors.CodeNotReady, "models for electricity are not ready"), http.StatusConflict, "not_ready"},
		{"internal", errors.New("scaler exploded"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.SetupTest()
			s.service.EXPECT().Predict(gomock.Any(), "electricity", 1.0).Return(nil, tc.err)
			rr := s.do(tu.NewRequestWithBody(s.T(), http.MethodPost, "/predict/electricity", `{"input": 1}`))
			tu.AssertStatusAndError(s.T(), rr, tc.status, tc.code)
		})
	}
}

func (s *HandlerSuite) TestRetrain() {
	job := &models.RetrainJob{ID: "job-1", Status: models.JobPending, Sectors: []domain.Sector{}}

	s.Run("queues all domains by default", func() {
		s.SetupTest()
		s.service.EXPECT().SubmitRetrain(gomock.Any(), gomock.Nil()).Return(job, nil)

		rr := s.do(tu.NewJSONRequest(s.T(), http.MethodPost, "/retrain", nil))

		tu.AssertStatus(s.T(), rr, http.StatusAccepted)
		resp := tu.UnmarshalResponse[RetrainResponse](s.T(), rr)
		s.True(resp.Success)
		s.Require().NotNil(resp.Job)
		s.Equal("job-1", resp.Job.ID)
	})

	s.Run("waits for completion", func() {
		s.SetupTest()
		s.service.EXPECT().SubmitRetrain(gomock.Any(), gomock.Nil()).Return(job, nil)
		s.service.EXPECT().Wait(gomock.Any(), "job-1").Return(&models.RetrainJob{ID: "job-1", Status: models.JobSucceeded}, nil)

		rr := s.do(tu.NewJSONRequest(s.T(), http.MethodPost, "/retrain?wait=true", nil))

		tu.AssertStatus(s.T(), rr, http.StatusOK)
		tu.AssertJSONContains(s.T(), rr, "message", "All models retrained successfully")
	})

	s.Run("failed job is a 500 with the job error", func() {
		s.SetupTest()
		s.service.EXPECT().SubmitRetrain(gomock.Any(), []domain.Sector{domain.SectorTransport}).Return(job, nil)
		s.service.EXPECT().Wait(gomock.Any(), "job-1").Return(&models.RetrainJob{ID: "job-1", Status: models.JobFailed, Error: "training transport failed: boom"}, nil)

		rr := s.do(tu.NewJSONRequest(s.T(), http.MethodPost, "/retrain/transport?wait=1", nil))

		tu.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal_error")
		s.Equal("training transport failed: boom", tu.UnmarshalErrorResponse(s.T(), rr)["error"])
	})

	s.Run("domain success message", func() {
		s.SetupTest()
		s.service.EXPECT().SubmitRetrain(gomock.Any(), []domain.Sector{domain.SectorConstruction}).Return(job, nil)
		s.service.EXPECT().Wait(gomock.Any(), "job-1").Return(&models.RetrainJob{ID: "job-1", Status: models.JobSucceeded}, nil)

		rr := s.do(tu.NewJSONRequest(s.T(), http.MethodPost, "/retrain/construction?wait=true", nil))

		tu.AssertStatus(s.T(), rr, http.StatusOK)
		tu.AssertJSONContains(s.T(), rr, "message", "Models for construction retrained successfully")
	})

	s.Run("wait timeout returns the running job", func() {
		s.SetupTest()
		running := &models.RetrainJob{ID: "job-1", Status: models.JobRunning}
		s.service.EXPECT().SubmitRetrain(gomock.Any(), gomock.Nil()).Return(job, nil)
		s.service.EXPECT().Wait(gomock.Any(), "job-1").DoAndReturn(func(ctx context.Context, _ string) (*models.RetrainJob, error) {
			<-ctx.Done()
			return running, ctx.Err()
		})

		rr := s.do(tu.NewJSONRequest(s.T(), http.MethodPost, "/retrain?wait=true", nil))

		tu.AssertStatus(s.T(), rr, http.StatusAccepted)
		resp := tu.UnmarshalResponse[RetrainResponse](s.T(), rr)
		s.Equal(models.JobRunning, resp.Job.Status)
	})

	s.Run("invalid domain", func() {
		s.SetupTest()
		rr := s.do(tu.NewJSONRequest(s.T(), http.MethodPost, "/retrain/mining", nil))
		tu.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("invalid wait flag", func() {
		s.SetupTest()
		rr := s.do(tu.NewJSONRequest(s.T(), http.MethodPost, "/retrain?wait=soon", nil))
		tu.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("full queue conflicts", func() {
		s.SetupTest()
		s.service.EXPECT().SubmitRetrain(gomock.Any(), gomock.Nil()).Return(nil, dErrors.New(dErrors.CodeConflict, "retrain queue is full, try again later"))
		rr := s.do(tu.NewJSONRequest(s.T(), http.MethodPost, "/retrain", nil))
		tu.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})
}

func (s *HandlerSuite) TestGetJob() {
	s.Run("found", func() {
		s.SetupTest()
		s.service.EXPECT().Job(gomock.Any(), "job-9").Return(&models.RetrainJob{ID: "job-9", Status: models.JobSucceeded}, nil)
		rr := s.do(tu.NewJSONRequest(s.T(), http.MethodGet, "/retrain/jobs/job-9", nil))
		tu.AssertStatus(s.T(), rr, http.StatusOK)
		tu.AssertJSONContains(s.T(), rr, "status", "succeeded")
	})

	s.Run("not found", func() {
		s.SetupTest()
		s.service.EXPECT().Job(gomock.Any(), "nope").Return(nil, dErrors.New(dErrors.CodeNotFound, "retrain job nope not found"))
		rr := s.do(tu.NewJSONRequest(s.T(), http.MethodGet, "/retrain/jobs/nope", nil))
		tu.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func (s *HandlerSuite) TestHistory() {
	s.Run("passes the limit", func() {
		s.SetupTest()
		recs := []models.PredictionRecord{{ID: "a", Sector: domain.SectorTransport, Input: 3}}
		s.service.EXPECT().History(gomock.Any(), "transport", 5).Return(recs, nil)

		rr := s.do(tu.NewJSONRequest(s.T(), http.MethodGet, "/history/transport?limit=5", nil))

		tu.AssertStatus(s.T(), rr, http.StatusOK)
		resp := tu.UnmarshalResponse[HistoryResponse](s.T(), rr)
		s.Equal(domain.SectorTransport, resp.Domain)
		s.Len(resp.Records, 1)
	})

	s.Run("default limit", func() {
		s.SetupTest()
		s.service.EXPECT().History(gomock.Any(), "transport", 0).Return([]models.PredictionRecord{}, nil)
		rr := s.do(tu.NewJSONRequest(s.T(), http.MethodGet, "/history/transport", nil))
		tu.AssertStatus(s.T(), rr, http.StatusOK)
	})

	s.Run("bad limit", func() {
		s.SetupTest()
		rr := s.do(tu.NewJSONRequest(s.T(), http.MethodGet, "/history/transport?limit=-1", nil))
		tu.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}
