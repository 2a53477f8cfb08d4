package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboncast/pkg/platform/httputil"
	"carboncast/pkg/platform/middleware/metadata"
	"carboncast/pkg/testutil"
)

type echoModule struct{}

func (echoModule) Register(r chi.Router) {
	r.Get("/echo", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"request_id": middleware.GetReqID(r.Context()),
			"client_ip":  metadata.GetClientIP(r.Context()),
		})
	})
	r.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func newTestRouter(t *testing.T) (http.Handler, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(logger, reg, echoModule{}), reg
}

func TestRouter_MountsModulesBehindMiddleware(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	body := testutil.UnmarshalResponse[map[string]string](t, rr)
	assert.NotEmpty(t, (*body)["request_id"])
	assert.Equal(t, "203.0.113.9", (*body)["client_ip"])
}

func TestRouter_JSONFallbacks(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/nope", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	rr = testutil.DoRequest(router, httptest.NewRequest(http.MethodPost, "/echo", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusMethodNotAllowed, "method_not_allowed")
}

func TestRouter_RecoversPanics(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRouter_ServesMetrics(t *testing.T) {
	router, reg := newTestRouter(t)
	promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "carboncast_router_test_total",
		Help: "test counter",
	}).Inc()

	rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "carboncast_router_test_total 1")
}
