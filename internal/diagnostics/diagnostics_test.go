package diagnostics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"pubharness/internal/metrics"
	"pubharness/pkg/healthcheck"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRouter(t *testing.T) {
	failed := healthcheck.CheckerFunc(func(ctx context.Context) healthcheck.HealthResult {
		return healthcheck.HealthResult{Status: healthcheck.Unhealthy, Description: "exited"}
	})

	t.Run("healthz reports checkers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewRouter(nil, healthcheck.WithChecker("p1", failed)).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"p1"`)
	})

	t.Run("metrics disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("metrics enabled", func(t *testing.T) {
		handler, err := metrics.SetupPrometheus("pubharness-test")
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		NewRouter(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "go_goroutines")
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, 0, NewRouter(nil)) }()
	cancel()
	assert.NoError(t, <-errCh)
}
