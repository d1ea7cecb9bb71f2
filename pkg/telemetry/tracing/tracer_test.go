package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/docguard/pkg/config"
	"mercator-hq/docguard/pkg/model"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		config      *config.TracingConfig
		wantErr     bool
		wantEnabled bool
	}{
		{name: "nil config", wantErr: true},
		{name: "disabled", config: &config.TracingConfig{ServiceName: "docguard"}},
		{
			name:    "unsupported exporter",
			config:  &config.TracingConfig{Enabled: true, Exporter: "zipkin", ServiceName: "docguard"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(context.Background(), tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tr.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", tr.Enabled(), tt.wantEnabled)
			}
			if err := tr.Shutdown(context.Background()); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}

func TestNewWithExporter(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tr := NewWithExporter(&config.TracingConfig{ServiceName: "docguard", SampleRatio: 1}, "test", exporter)
	if !tr.Enabled() {
		t.Fatal("Enabled() = false")
	}

	_, span := StartStage(context.Background(), tr.Tracer(), "run-1", model.StageExtract)
	End(span, nil)
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "stage.extract" {
		t.Fatalf("exported spans = %v", spans)
	}
}

func TestRunSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	run := &model.Run{
		RunID:         "run-1",
		DocumentID:    "nda.md",
		PolicySetID:   "default",
		Status:        model.StatusAwaitingHITL,
		CurrentStage:  model.StageExtract,
		PendingHITLID: "h1",
	}
	ctx, runSpan := StartRun(context.Background(), tracer, run)
	_, stageSpan := StartStage(ctx, tracer, run.RunID, model.StageClassify)
	End(stageSpan, model.NewStageError(model.StageClassify, errors.New("boom")))
	EndRun(runSpan, run, nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended %d spans, want 2", len(spans))
	}

	stage, advance := spans[0], spans[1]
	if stage.Parent().SpanID() != advance.SpanContext().SpanID() {
		t.Error("stage span is not a child of the run span")
	}
	if stage.Status().Code != codes.Error {
		t.Errorf("stage status = %v, want error", stage.Status())
	}
	if !hasAttr(stage.Attributes(), attribute.String(AttrErrorType, "stage")) {
		t.Errorf("stage attributes = %v, want error type stage", stage.Attributes())
	}
	if advance.Status().Code != codes.Ok {
		t.Errorf("run status = %v, want ok", advance.Status())
	}
	for _, want := range []attribute.KeyValue{
		attribute.String(AttrRunID, "run-1"),
		attribute.String(AttrStatus, "awaiting_hitl"),
		attribute.String(AttrHITLID, "h1"),
	} {
		if !hasAttr(advance.Attributes(), want) {
			t.Errorf("run span missing %v in %v", want, advance.Attributes())
		}
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{model.NewConflictError("run", "r1", "version mismatch"), "conflict"},
		{model.NewInputError("doc", "not utf-8", nil), "input"},
		{model.NewStageError(model.StageReview, errors.New("x")), "stage"},
		{errors.New("disk full"), "internal"},
	}
	for _, tt := range tests {
		if got := errorType(tt.err); got != tt.want {
			t.Errorf("errorType(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func hasAttr(attrs []attribute.KeyValue, want attribute.KeyValue) bool {
	for _, a := range attrs {
		if a == want {
			return true
		}
	}
	return false
}
