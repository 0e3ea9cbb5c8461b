package healthcheck

import (
	"context"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"
)

const defaultCheckTimeout = 5 * time.Second

type report struct {
	Status string                  `json:"status"`
	Checks map[string]HealthResult `json:"checks,omitempty"`
}

type handler struct {
	checkers map[string]HealthChecker
	timeout  time.Duration
}

type Option func(*handler)

// WithChecker registers a named check, e.g. "publisher/p1" or "clients".
func WithChecker(name string, c HealthChecker) Option {
	return func(h *handler) {
		h.checkers[name] = c
	}
}

// WithTimeout bounds every individual check. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(h *handler) {
		h.timeout = timeout
	}
}

// Handler serves the aggregated result of all registered checkers. The
// response is 503 as soon as one checker is unhealthy.
func Handler(opts ...Option) http.Handler {
	h := &handler{
		checkers: map[string]HealthChecker{},
		timeout:  defaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func HandlerFunc(opts ...Option) http.HandlerFunc {
	return Handler(opts...).ServeHTTP
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	results := h.runChecks(r.Context())

	code := http.StatusOK
	for _, res := range results {
		if res.Status == Unhealthy {
			code = http.StatusServiceUnavailable
			break
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = jsoniter.NewEncoder(w).Encode(report{
		Status: http.StatusText(code),
		Checks: results,
	})
}

func (h *handler) runChecks(ctx context.Context) map[string]HealthResult {
	var (
		mu      sync.Mutex
		results = make(map[string]HealthResult, len(h.checkers))
		g       errgroup.Group
	)
	for name, c := range h.checkers {
		g.Go(func() error {
			res := h.check(ctx, c)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (h *handler) check(ctx context.Context, c HealthChecker) HealthResult {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	out := make(chan HealthResult, 1)
	go func() { out <- c.IsHealthy(ctx) }()
	select {
	case res := <-out:
		return res
	case <-ctx.Done():
		return HealthResult{Status: Unhealthy, Description: "check timed out"}
	}
}
