package testutil

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// WithRequestID adds a request ID to the request context.
// This simulates what the RequestID middleware does for routed requests.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.RequestIDKey, requestID)
	return req.WithContext(ctx)
}
