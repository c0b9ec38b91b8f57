// Package telemetry wires OpenTelemetry spans around engine iterations and
// tool dispatch (SPEC_FULL.md §4.G: "additionally traced with OpenTelemetry
// spans"), grounded on nevindra-oasis's observer/tracer.go pattern of a thin
// wrapper over the global TracerProvider.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/relayagent/agentd"

// Tracer starts spans under the agentd scope. The zero value is safe to
// use: Start on an unconfigured TracerProvider yields a no-op span.
type Tracer struct {
	inner trace.Tracer
}

// NewTracer returns a Tracer backed by the global TracerProvider. Setup
// installs an SDK TracerProvider (with no exporter) so spans are
// recorded; without it spans are no-ops.
func NewTracer() Tracer {
	return Tracer{inner: otel.Tracer(scopeName)}
}

// tracer returns the wrapped tracer, or the global TracerProvider's
// tracer for the zero value.
func (t Tracer) tracer() trace.Tracer {
	if t.inner == nil {
		return otel.Tracer(scopeName)
	}
	return t.inner
}

// StartIteration opens a span for one engine iteration (§4.G step 3).
func (t Tracer) StartIteration(ctx context.Context, taskID string, iteration int) (context.Context, trace.Span) {
	return t.tracer().Start(ctx, "engine.iteration", trace.WithAttributes(
		attribute.String("task_id", taskID),
		attribute.Int("iteration", iteration),
	))
}

// StartToolDispatch opens a span nested under the current iteration span
// for a single tool execution (§4.G step f).
func (t Tracer) StartToolDispatch(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return t.tracer().Start(ctx, "coordinator.execute", trace.WithAttributes(
		attribute.String("tool_name", toolName),
	))
}

// RecordOutcome sets a span's status from a success flag and, on failure,
// records the error message.
func RecordOutcome(span trace.Span, success bool, errMsg string) {
	if success {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.SetStatus(codes.Error, errMsg)
}
