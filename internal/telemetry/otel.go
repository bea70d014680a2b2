// Package telemetry sets up OpenTelemetry trace export for the CLI.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName is reported as service.name on every span.
const ServiceName = "labbook"

// Setup installs a tracer provider exporting to endpoint over OTLP/HTTP and
// returns a tracer plus the shutdown function that flushes pending spans.
// An empty endpoint leaves the global provider untouched and returns a no-op
// shutdown.
func Setup(ctx context.Context, endpoint string) (trace.Tracer, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if endpoint == "" {
		return otel.Tracer(ServiceName), noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, noop, fmt.Errorf("otlp exporter: %w", err)
	}
	return install(ctx, sdktrace.WithBatcher(exporter))
}

// install builds the provider around the given span processor option.
func install(ctx context.Context, processor sdktrace.TracerProviderOption) (trace.Tracer, func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(ServiceName)))
	if err != nil {
		return nil, func(context.Context) error { return nil }, fmt.Errorf("otel resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Tracer(ServiceName), tp.Shutdown, nil
}
