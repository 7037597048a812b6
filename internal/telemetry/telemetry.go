// Package telemetry wires up OpenTelemetry tracing for encode/decode runs:
// StartOperation opens one span per call, and StartPhase opens a child span
// for one phase (preparing, database, blobs, finalizing). The CLI opens only
// the per-call span; it does not call StartPhase. The trace IDs recorded here are the same ones
// internal/metrics attaches to Prometheus counters as exemplars, so a
// metric spike and its trace line up in Grafana/Tempo.
//
// go.mod already carries the otel SDK and both exporters for this reason;
// this package is what finally calls them.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config selects where spans are exported.
type Config struct {
	// Enabled turns on span export. When false, Setup installs a no-op
	// tracer provider so callers never need a nil check.
	Enabled bool
	// ServiceName tags every span's resource attributes.
	ServiceName string
	// OTLPEndpoint, if set, exports via OTLP/gRPC to this collector
	// address. Takes precedence over UseStdout.
	OTLPEndpoint string
	// UseStdout is not read by Setup: an enabled config with no
	// OTLPEndpoint always exports spans as JSON to stdout.
	UseStdout bool
}

// Shutdown flushes and stops the tracer provider installed by Setup.
type Shutdown func(context.Context) error

// Setup installs a global TracerProvider per cfg and returns a Shutdown
// func the caller must defer.
func Setup(ctx context.Context, cfg Config) (Shutdown, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if cfg.OTLPEndpoint != "" {
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("telemetry: building OTLP exporter: %w", err)
		}
		return exp, nil
	}

	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: building stdout exporter: %w", err)
	}
	return exp, nil
}

// Tracer returns the package-level tracer used for encode/decode spans.
func Tracer() trace.Tracer {
	return otel.Tracer("github.com/kenneth/rbuvault")
}

// StartOperation opens the root span for one encode or decode call.
func StartOperation(ctx context.Context, operation string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, operation)
}

// StartPhase opens a child span for one phase of an encode or decode call
// (preparing, database, blobs, finalizing).
func StartPhase(ctx context.Context, phase string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "phase:"+phase)
}
