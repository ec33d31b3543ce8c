package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestStartSpanAndTraceID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "stdout" // need a real exporter for a valid span context
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), "test_tracer", "test_span")
	defer span.End()

	if TraceID(context.Background()) != "" {
		t.Error("expected empty trace ID for a context with no span")
	}
	if TraceID(ctx) == "" {
		t.Error("expected a trace ID once a span is attached to the context")
	}
}

func TestRecordErrorNilSafe(t *testing.T) {
	RecordError(nil, errors.New("boom"))
	RecordErrorf(nil, "boom %d", 1)
	SetSpanOK(nil)
	AddSpanEvent(nil, "event")
}

func TestRecordErrorSetsStatus(t *testing.T) {
	_, span := StartSpan(context.Background(), "test_tracer", "test_span")
	defer span.End()

	RecordError(span, errors.New("boom"))
	SetSpanOK(span)
	AddSpanEvent(span, "recovered")
}
