package healthcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	healthy := CheckerFunc(func(ctx context.Context) HealthResult { return HealthyResult })
	exited := CheckerFunc(func(ctx context.Context) HealthResult {
		return HealthResult{Status: Degraded, Description: "publisher exited"}
	})
	failed := CheckerFunc(func(ctx context.Context) HealthResult {
		return HealthResult{Status: Unhealthy, Description: "publisher failed"}
	})
	slow := CheckerFunc(func(ctx context.Context) HealthResult {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return HealthyResult
	})

	tests := []struct {
		name       string
		opts       []Option
		wantCode   int
		wantChecks map[string]HealthResult
	}{
		{"no checkers", nil, http.StatusOK, nil},
		{"all healthy", []Option{WithChecker("p1", healthy)}, http.StatusOK,
			map[string]HealthResult{"p1": HealthyResult}},
		{"degraded is not a failure", []Option{WithChecker("p1", healthy), WithChecker("p2", exited)}, http.StatusOK,
			map[string]HealthResult{"p1": HealthyResult, "p2": {Status: Degraded, Description: "publisher exited"}}},
		{"one failed", []Option{WithChecker("p1", healthy), WithChecker("p2", failed)}, http.StatusServiceUnavailable,
			map[string]HealthResult{"p1": HealthyResult, "p2": {Status: Unhealthy, Description: "publisher failed"}}},
		{"checker timeout", []Option{WithChecker("p1", slow), WithTimeout(10 * time.Millisecond)}, http.StatusServiceUnavailable,
			map[string]HealthResult{"p1": {Status: Unhealthy, Description: "check timed out"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandlerFunc(tt.opts...)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tt.wantCode, rec.Code)

			var body struct {
				Status string `json:"status"`
				Checks map[string]struct {
					Status      string `json:"status"`
					Description string `json:"description"`
				} `json:"checks"`
			}
			require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, http.StatusText(tt.wantCode), body.Status)
			require.Len(t, body.Checks, len(tt.wantChecks))
			for name, want := range tt.wantChecks {
				assert.Equal(t, want.Status.String(), body.Checks[name].Status, name)
				assert.Equal(t, want.Description, body.Checks[name].Description, name)
			}
		})
	}
}

func TestHealthStatusString(t *testing.T) {
	assert.Equal(t, "healthy", Healthy.String())
	assert.Equal(t, "degraded", Degraded.String())
	assert.Equal(t, "unhealthy", Unhealthy.String())
}
