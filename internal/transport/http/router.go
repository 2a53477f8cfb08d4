package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformmw "carboncast/internal/platform/middleware"
	dErrors "carboncast/pkg/domain-errors"
	"carboncast/pkg/platform/httputil"
	"carboncast/pkg/platform/middleware/metadata"
)

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter builds the public router: request IDs, panic recovery, client
// metadata and access logging on every route, plus /metrics served from
// gatherer.
func NewRouter(logger *slog.Logger, gatherer prometheus.Gatherer, modules ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metadata.ClientMetadata)
	r.Use(platformmw.AccessLog(logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "endpoint not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorResponse{
			Error: "method not allowed",
			Code:  "method_not_allowed",
		})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	for _, m := range modules {
		m.Register(r)
	}
	return r
}
