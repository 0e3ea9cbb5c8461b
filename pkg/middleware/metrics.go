package middleware

import (
	"context"
	"time"

	"pubharness/internal/metrics"
	"pubharness/pkg/messaging"
)

// PublisherMetrics records how long the rest of the chain took per envelope.
func PublisherMetrics() messaging.Middleware {
	return func(next messaging.Handler) messaging.Handler {
		return func(ctx context.Context, env *messaging.MessageEnvelope) error {
			started := time.Now()
			err := next(ctx, env)
			metrics.DefaultPublisherMetrics().RecordPublishDuration(ctx, env.Subject, err == nil, time.Since(started))
			return err
		}
	}
}
