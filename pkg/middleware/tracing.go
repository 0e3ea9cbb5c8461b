package middleware

import (
	"context"

	"pubharness/pkg/messaging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

const tracerName = "pubharness/publisher"

// PublisherTracing opens a producer span per envelope and writes the span
// context into the envelope headers before handing it on.
func PublisherTracing() messaging.Middleware {
	tracer := otel.Tracer(tracerName)

	return func(next messaging.Handler) messaging.Handler {
		return func(ctx context.Context, env *messaging.MessageEnvelope) error {
			ctx, span := tracer.Start(ctx, env.Subject+" publish",
				trace.WithSpanKind(trace.SpanKindProducer),
				trace.WithAttributes(
					semconv.MessagingDestinationNameKey.String(env.Subject),
					semconv.MessagingMessageIDKey.String(env.Id),
					attribute.String("harness.publisher", env.Headers[messaging.PublisherIDHeader]),
					attribute.String("harness.sequence", env.Headers[messaging.SequenceHeader]),
				))
			defer span.End()

			if env.Headers == nil {
				env.Headers = map[string]string{}
			}
			otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(env.Headers))

			err := next(ctx, env)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				klog.V(4).InfoS("Publish span failed", "stream", env.Subject, "id", env.Id, "err", err)
				return err
			}
			span.SetStatus(codes.Ok, "")
			return nil
		}
	}
}
