package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	// RunIDKey is the context key for run IDs.
	RunIDKey contextKey = "run_id"

	// StageKey is the context key for the active stage.
	StageKey contextKey = "stage"

	// HITLIDKey is the context key for HITL batch IDs.
	HITLIDKey contextKey = "hitl_id"

	// ActorKey is the context key for the acting user or worker.
	ActorKey contextKey = "actor"
)

var contextKeys = []contextKey{RunIDKey, StageKey, HITLIDKey, ActorKey}

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithStage adds a stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}

// WithHITLID adds a HITL batch ID to the context.
func WithHITLID(ctx context.Context, hitlID string) context.Context {
	return context.WithValue(ctx, HITLIDKey, hitlID)
}

// WithActor adds an actor to the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	return get(ctx, RunIDKey)
}

// GetActor retrieves the actor from the context.
func GetActor(ctx context.Context) string {
	return get(ctx, ActorKey)
}

func get(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// contextAttrs returns the non-empty context fields as attributes.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, key := range contextKeys {
		if v := get(ctx, key); v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}
