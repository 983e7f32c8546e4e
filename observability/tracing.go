// Package observability wires huddle into OpenTelemetry and renders the
// end-of-run summary.
//
// Includes trace-aware logging, span export, a Prometheus view of the call
// metrics registry and the console report.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/scttfrdmn/agenkit/huddle-go/agents"
)

// InitTracing installs a global tracer provider. Spans go to the OTLP gRPC
// endpoint when one is given and, when console is non-nil, pretty printed
// to it. The caller must Shutdown the provider to flush spans.
func InitTracing(ctx context.Context, serviceName, otlpEndpoint string, console io.Writer) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if otlpEndpoint != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(otlpEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	if console != nil {
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(console),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

// TracingAnalyzer wraps an analyzer with a span per Analyze call.
type TracingAnalyzer struct {
	analyzer agents.Analyzer
	spanName string
	tracer   trace.Tracer
}

var _ agents.Analyzer = (*TracingAnalyzer)(nil)

// NewTracingAnalyzer wraps a. A nil tracer uses the global provider.
func NewTracingAnalyzer(a agents.Analyzer, tracer trace.Tracer) *TracingAnalyzer {
	if tracer == nil {
		tracer = otel.Tracer("huddle/agents")
	}
	return &TracingAnalyzer{
		analyzer: a,
		spanName: fmt.Sprintf("agent.%s.analyze", a.Name()),
		tracer:   tracer,
	}
}

// TraceAnalyzers wraps every analyzer in as.
func TraceAnalyzers(as []agents.Analyzer, tracer trace.Tracer) []agents.Analyzer {
	out := make([]agents.Analyzer, len(as))
	for i, a := range as {
		out[i] = NewTracingAnalyzer(a, tracer)
	}
	return out
}

// Name returns the wrapped analyzer's name.
func (t *TracingAnalyzer) Name() string {
	return t.analyzer.Name()
}

// Analyze runs the wrapped analyzer inside a span. Error results mark the
// span as failed.
func (t *TracingAnalyzer) Analyze(ctx context.Context, diner, reservation json.RawMessage) agents.Result {
	ctx, span := t.tracer.Start(ctx, t.spanName, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	span.SetAttributes(
		attribute.String("agent.name", t.analyzer.Name()),
		attribute.Int("input.diner_bytes", len(diner)),
		attribute.Int("input.reservation_bytes", len(reservation)),
	)

	result := t.analyzer.Analyze(ctx, diner, reservation)
	if agents.IsError(result) {
		msg, _ := result["error"].(string)
		span.SetStatus(codes.Error, msg)
		return result
	}
	span.SetStatus(codes.Ok, "")
	return result
}
