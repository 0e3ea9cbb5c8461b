// Package tracing installs the global tracer provider used by the publisher
// middleware.
package tracing

import (
	"context"
	"os"

	"github.com/pkg/errors"
	jaegerpropagator "go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"k8s.io/klog/v2"
)

// ShutdownFunc flushes pending spans and releases the exporter.
type ShutdownFunc func(ctx context.Context)

// Setup exports spans over OTLP/gRPC to endpoint (host:port, plaintext).
func Setup(ctx context.Context, serviceName, endpoint string) (ShutdownFunc, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, errors.Wrapf(err, "trace exporter for %s", endpoint)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.AlwaysSample())),
		tracesdk.WithResource(newResource(serviceName)),
		tracesdk.WithBatcher(exporter),
	)
	Install(tp)
	klog.InfoS("Tracing enabled", "endpoint", endpoint)

	return func(ctx context.Context) {
		if err := tp.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "Error shutting down tracer provider")
		}
	}, nil
}

// Install registers tp globally along with W3C, baggage and jaeger
// propagation, so uber-trace-id headers are written next to traceparent.
func Install(tp *tracesdk.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
		jaegerpropagator.Jaeger{},
	))
}

func newResource(serviceName string) *resource.Resource {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(serviceName)}
	if host, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostNameKey.String(host))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}
