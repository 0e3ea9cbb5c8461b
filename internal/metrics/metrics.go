package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type publisherMetrics struct {
	publishCount    metric.Int64Counter
	failureCount    metric.Int64Counter
	publishDuration metric.Int64Histogram
}

var (
	initOnce sync.Once
	s        *publisherMetrics
)

func DefaultPublisherMetrics() *publisherMetrics {
	initOnce.Do(func() {
		s = newPublisherMetrics()
	})
	return s
}

func newPublisherMetrics() *publisherMetrics {
	meter := otel.Meter("pubharness/publisher")

	publishCount, _ := meter.Int64Counter("harness.publish.count",
		metric.WithDescription("The number of publish events observed per publisher"))
	failureCount, _ := meter.Int64Counter("harness.publish.failures",
		metric.WithDescription("The number of failed publish attempts per publisher"))
	publishDuration, _ := meter.Int64Histogram("harness.publish.duration",
		metric.WithDescription("The duration of an in-process publish call"),
		metric.WithUnit("ms"))

	return &publisherMetrics{
		publishCount:    publishCount,
		failureCount:    failureCount,
		publishDuration: publishDuration,
	}
}

func (s *publisherMetrics) RecordPublished(ctx context.Context, publisherID, stream, variant string) {
	s.publishCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("publisher", publisherID),
		attribute.String("stream", stream),
		attribute.String("variant", variant),
	))
}

func (s *publisherMetrics) RecordPublishFailure(ctx context.Context, publisherID, stream string, fatal bool) {
	s.failureCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("publisher", publisherID),
		attribute.String("stream", stream),
		attribute.Bool("fatal", fatal),
	))
}

func (s *publisherMetrics) RecordPublishDuration(ctx context.Context, stream string, success bool, elapsed time.Duration) {
	s.publishDuration.Record(ctx, elapsed.Milliseconds(), metric.WithAttributes(
		attribute.String("stream", stream),
		attribute.Bool("success", success),
	))
}
