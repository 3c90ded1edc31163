// Package telemetry configures OpenTelemetry tracing for the service and
// provides an instrumented transport for calls to resolution backends.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Supported exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

const instrumentationName = "github.com/mccutchen/directlink"

// Options configures tracing.
type Options struct {
	ServiceName  string
	Exporter     string
	OTLPEndpoint string
}

// Init installs a global tracer provider according to opts and returns a
// function that flushes and stops it. With ExporterNone, or an empty
// exporter, tracing stays disabled and the returned function is a no-op.
func Init(ctx context.Context, opts Options) (func(context.Context) error, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch opts.Exporter {
	case "", ExporterNone:
		return func(context.Context) error { return nil }, nil
	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
	case ExporterOTLP:
		clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if opts.OTLPEndpoint != "" {
			clientOpts = append(clientOpts, otlptracegrpc.WithEndpoint(opts.OTLPEndpoint))
		}
		exporter, err = otlptracegrpc.New(ctx, clientOpts...)
	default:
		return nil, fmt.Errorf("unknown telemetry exporter %q", opts.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("error initializing %s exporter: %w", opts.Exporter, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
