package healthcheck

import "context"

// HealthChecker is implemented by anything the /healthz endpoint can check:
// messaging clients and running publishers.
type HealthChecker interface {
	IsHealthy(ctx context.Context) HealthResult
}

type CheckerFunc func(ctx context.Context) HealthResult

func (c CheckerFunc) IsHealthy(ctx context.Context) HealthResult {
	return c(ctx)
}

type HealthStatus int

const (
	Unhealthy HealthStatus = iota
	// Degraded does not fail /healthz; an exited publisher or a gossip client
	// without peers reports it.
	Degraded
	Healthy
)

func (s HealthStatus) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	default:
		return "unhealthy"
	}
}

func (s HealthStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type HealthResult struct {
	Status      HealthStatus `json:"status"`
	Description string       `json:"description,omitempty"`
}

var HealthyResult = HealthResult{Status: Healthy}
