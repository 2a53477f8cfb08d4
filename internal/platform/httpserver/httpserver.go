package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server. writeTimeout must exceed the longest blocking
// handler, which is a retrain request with ?wait=true.
func New(addr string, handler http.Handler, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
