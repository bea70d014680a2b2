package telemetry

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupNoopWhenEndpointEmpty(t *testing.T) {
	tracer, shutdown, err := Setup(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tracer == nil {
		t.Fatalf("expected a tracer")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupWithUnreachableEndpoint(t *testing.T) {
	// Non-routable address; nothing is exported because no span is ended.
	_, shutdown, err := Setup(context.Background(), "http://192.0.2.1:4318")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestInstallRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer, shutdown, err := install(context.Background(), sdktrace.WithSpanProcessor(recorder))
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	_, span := tracer.Start(context.Background(), "probe")
	span.End()
	ended := recorder.Ended()
	if len(ended) != 1 || ended[0].Name() != "probe" {
		t.Fatalf("unexpected spans %+v", ended)
	}
	var service string
	for _, kv := range ended[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	if service != ServiceName {
		t.Fatalf("service.name = %q", service)
	}
}
