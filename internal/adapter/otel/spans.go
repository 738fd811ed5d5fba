package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "vitalis"

// StartGenerationSpan starts a span covering the full generate-evaluate-deploy
// pipeline for a user.
func StartGenerationSpan(ctx context.Context, userID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "generation",
		trace.WithAttributes(
			attribute.String("user.id", userID),
		),
	)
}

// StartRunSpan starts a span for a single agent task execution.
func StartRunSpan(ctx context.Context, traceID, userID string, configVersion int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "run",
		trace.WithAttributes(
			attribute.String("trace.id", traceID),
			attribute.String("user.id", userID),
			attribute.Int("config.version", configVersion),
		),
	)
}

// StartToolCallSpan starts a span for a tool invocation within a run.
func StartToolCallSpan(ctx context.Context, actionID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("action.id", actionID),
			attribute.String("action.tool", tool),
		),
	)
}

// StartRevisionSpan starts a span for an RLAIF revision cycle.
func StartRevisionSpan(ctx context.Context, userID string, fromVersion int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "revision",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("config.from_version", fromVersion),
		),
	)
}
