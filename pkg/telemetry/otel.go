package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"
)

// defaultServiceName identifies SDK spans when the host application does
// not override it.
const defaultServiceName = "axonflow-client"

// TraceConfig describes OTLP export for the SDK's request spans.
type TraceConfig struct {
	// ServiceName defaults to "axonflow-client".
	ServiceName string

	// Endpoint is the OTLP gRPC collector address (host:port). Empty
	// disables export; request spans still propagate to whatever tracer
	// provider the host application installed.
	Endpoint string

	// Environment tags exported spans with deployment.environment, e.g.
	// the client's operating mode (production, sandbox).
	Environment string

	// SampleRatio in (0,1) samples that fraction of new traces. Zero or
	// one samples everything. Sampling decisions of a calling service
	// are always honored.
	SampleRatio float64

	// Insecure disables TLS on the collector connection.
	Insecure bool

	// Headers are added to every export request (collector auth tokens).
	Headers map[string]string
}

// SetupProvider installs a tracer provider exporting the SDK's spans to the
// configured collector and returns a shutdown function that flushes buffered
// spans; callers run it during graceful termination. The exporter dials
// lazily, so construction never blocks on collector availability.
func SetupProvider(ctx context.Context, cfg TraceConfig) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	} else {
		clientOpts = append(clientOpts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(clientOpts...))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
