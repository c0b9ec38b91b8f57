package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Setup installs a process-wide TracerProvider so the spans a Tracer
// starts are recorded instead of no-ops; no exporter is attached. Returns a shutdown func to call on exit.
// Grounded on nevindra-oasis's observer.Init, trimmed to the trace-only
// subset this module's go.mod carries (no OTLP metric/log exporters).
func Setup(_ context.Context) (shutdown func(context.Context) error, err error) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
