package observability

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	prev := otel.GetTracerProvider()
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestFinishSpanStatus(t *testing.T) {
	rec := useRecorder(t)
	ctx := context.Background()

	_, span := StartSpan(ctx, "db.fail")
	FinishSpan(span, errors.New("boom"))
	_, span = StartSpan(ctx, "db.missing")
	FinishSpan(span, sql.ErrNoRows)
	_, span = StartSpan(ctx, "db.ok")
	FinishSpan(span, nil)

	ended := rec.Ended()
	if len(ended) != 3 {
		t.Fatalf("expected 3 ended spans, got %d", len(ended))
	}
	want := map[string]codes.Code{"db.fail": codes.Error, "db.missing": codes.Ok, "db.ok": codes.Ok}
	for _, s := range ended {
		if got := s.Status().Code; got != want[s.Name()] {
			t.Fatalf("span %s: expected status %v, got %v", s.Name(), want[s.Name()], got)
		}
	}
	if len(ended[0].Events()) == 0 {
		t.Fatalf("expected the error to be recorded as an event")
	}
}

func TestSetupTracingStdoutExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := SetupTracing("stdout", "conduit-test", &buf)
	if err != nil {
		t.Fatalf("SetupTracing() error: %v", err)
	}
	_, span := StartSpan(context.Background(), "articles.list")
	FinishSpan(span, nil)
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "articles.list") || !strings.Contains(out, "conduit-test") {
		t.Fatalf("expected exported span with service name, got %q", out)
	}
}

func TestSetupTracingNoneInstallsProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := SetupTracing("none", "conduit", nil)
	if err != nil {
		t.Fatalf("SetupTracing() error: %v", err)
	}
	defer shutdown(context.Background())
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("expected an sdk tracer provider, got %T", otel.GetTracerProvider())
	}
}

func TestSetupTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := SetupTracing("zipkin", "conduit", nil); err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}
