// Package telemetry configures OpenTelemetry tracing for the CLI.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName     = "domains"
	defaultEndpoint = "localhost:4317"
)

// Setup initializes tracing from the environment and installs the global
// tracer provider.
//
//	OTEL_EXPORTER  "none" (default), "console", "otlp" or "both"
//	OTEL_ENDPOINT  OTLP gRPC endpoint (default localhost:4317)
//	OTEL_INSECURE  "false" enables TLS towards the OTLP endpoint
//
// Console traces go to stderr so they never mix with synthesized output.
func Setup(ctx context.Context, version string) (trace.Tracer, func(context.Context) error, error) {
	exporterType := strings.ToLower(os.Getenv("OTEL_EXPORTER"))
	if exporterType == "" {
		exporterType = "none"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporters []sdktrace.SpanExporter
	switch exporterType {
	case "none":
	case "console":
		exp, err := newConsoleExporter()
		if err != nil {
			return nil, nil, err
		}
		exporters = append(exporters, exp)
	case "otlp":
		exp, err := newOTLPExporter(ctx)
		if err != nil {
			return nil, nil, err
		}
		exporters = append(exporters, exp)
	case "both":
		console, err := newConsoleExporter()
		if err != nil {
			return nil, nil, err
		}
		otlp, err := newOTLPExporter(ctx)
		if err != nil {
			return nil, nil, err
		}
		exporters = append(exporters, console, otlp)
	default:
		return nil, nil, fmt.Errorf("unsupported OTEL_EXPORTER %q, must be one of none, console, otlp, both", exporterType)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, exp := range exporters {
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return tp.Tracer(serviceName), tp.Shutdown, nil
}

func newConsoleExporter() (sdktrace.SpanExporter, error) {
	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create console exporter: %w", err)
	}
	return exp, nil
}

func newOTLPExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	endpoint := os.Getenv("OTEL_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if !strings.EqualFold(os.Getenv("OTEL_INSECURE"), "false") {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter for %s: %w", endpoint, err)
	}
	return exp, nil
}
