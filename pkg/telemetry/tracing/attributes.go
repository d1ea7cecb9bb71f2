package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/docguard/pkg/model"
)

// Attribute keys set on pipeline spans.
const (
	AttrRunID       = "docguard.run_id"
	AttrDocumentID  = "docguard.document_id"
	AttrPolicySetID = "docguard.policy_set_id"
	AttrStage       = "docguard.stage"
	AttrStatus      = "docguard.run.status"
	AttrHITLID      = "docguard.hitl_id"
	AttrErrorType   = "docguard.error.type"
)

// StartRun opens the span covering one advance of a run.
func StartRun(ctx context.Context, tracer trace.Tracer, run *model.Run) (context.Context, trace.Span) {
	return tracer.Start(ctx, "run.advance",
		trace.WithAttributes(
			attribute.String(AttrRunID, run.RunID),
			attribute.String(AttrDocumentID, run.DocumentID),
			attribute.String(AttrPolicySetID, run.PolicySetID),
		),
	)
}

// EndRun records where the run stopped and ends the span. run may be nil
// when the advance failed before the run was saved.
func EndRun(span trace.Span, run *model.Run, err error) {
	if run != nil {
		span.SetAttributes(
			attribute.String(AttrStatus, string(run.Status)),
			attribute.String(AttrStage, string(run.CurrentStage)),
		)
		if run.PendingHITLID != "" {
			span.SetAttributes(attribute.String(AttrHITLID, run.PendingHITLID))
		}
	}
	End(span, err)
}

// StartStage opens the span covering one stage execution.
func StartStage(ctx context.Context, tracer trace.Tracer, runID string, stage model.StageName) (context.Context, trace.Span) {
	return tracer.Start(ctx, "stage."+string(stage),
		trace.WithAttributes(
			attribute.String(AttrRunID, runID),
			attribute.String(AttrStage, string(stage)),
		),
	)
}

// End marks the span failed when err is set and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrErrorType, errorType(err)))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func errorType(err error) string {
	var ie *model.InputError
	var se *model.StageError
	switch {
	case model.IsConflict(err):
		return "conflict"
	case errors.As(err, &ie):
		return "input"
	case errors.As(err, &se):
		return "stage"
	default:
		return "internal"
	}
}
