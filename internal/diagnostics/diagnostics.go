package diagnostics

import (
	"net/http"

	"pubharness/pkg/healthcheck"
)

// NewRouter mounts /healthz and, when metricsHandler is not nil, /metrics.
func NewRouter(metricsHandler http.Handler, options ...healthcheck.Option) http.Handler {
	router := http.NewServeMux()
	router.Handle("GET /healthz", healthcheck.Handler(options...))
	if metricsHandler != nil {
		router.Handle("GET /metrics", metricsHandler)
	}
	return router
}
