package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/polisai/errorflow/pkg/config"
	"github.com/polisai/errorflow/pkg/disclosure"
	"github.com/polisai/errorflow/pkg/domain"
)

// TracerName is the instrumentation scope used for errorflow spans.
const TracerName = "github.com/polisai/errorflow"

const (
	exportTimeout  = 10 * time.Second
	batchSize      = 100
	batchTimeout   = 5 * time.Second
	defaultService = "errorflow"
)

// Provider owns the tracer provider built from configuration. A Provider without
// an OTLP endpoint exports nothing and leaves the global provider untouched.
type Provider struct {
	sdk *sdktrace.TracerProvider
}

// SetupProvider builds an OTLP/gRPC tracer provider for cfg, installs it as the
// global provider and returns it. Call Shutdown to flush buffered spans.
func SetupProvider(ctx context.Context, cfg config.TelemetryConfig, environment string) (*Provider, error) {
	if cfg.OTLPEndpoint == "" {
		return &Provider{}, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	exporter, err := otlptrace.New(dialCtx, otlptracegrpc.NewClient(exporterOptions(cfg)...))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter for %s: %w", cfg.OTLPEndpoint, err)
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(resourceAttributes(cfg, environment)...),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(batchSize),
			sdktrace.WithBatchTimeout(batchTimeout),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(sdk)

	return &Provider{sdk: sdk}, nil
}

// TracerProvider returns the configured provider, or the global one when
// exporting is disabled.
func (p *Provider) TracerProvider() trace.TracerProvider {
	if p.sdk == nil {
		return otel.GetTracerProvider()
	}
	return p.sdk
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.sdk != nil
}

// Shutdown flushes and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}

func exporterOptions(cfg config.TelemetryConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithDialOption(
			grpc.WithReturnConnectionError(), //nolint:staticcheck // Surfaces dial errors without grpc.WithBlock.
		),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return opts
}

// sampler keeps the parent's decision and samples root spans at ratio. A
// non-positive ratio samples everything.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func resourceAttributes(cfg config.TelemetryConfig, environment string) []attribute.KeyValue {
	name := cfg.ServiceName
	if name == "" {
		name = defaultService
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(environment))
	}
	for k, v := range cfg.ResourceAttributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

// Tracer returns the errorflow tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// ErrorAttributes lists the span attributes describing a generated error. Message
// text and debug information are never included.
func ErrorAttributes(e domain.AppError) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("errorflow.error.id", e.ID),
		attribute.String("errorflow.error.category", string(e.Category)),
		attribute.String("errorflow.error.severity", e.Severity.String()),
		attribute.Int("errorflow.error.code", e.Code),
	}
}

// AnnotateError attaches the public identity of e to span.
func AnnotateError(span trace.Span, e domain.AppError) {
	if span == nil || !span.IsRecording() {
		return
	}
	span.SetAttributes(ErrorAttributes(e)...)
}

// RecordDisclosure adds a disclosure decision event to span.
func RecordDisclosure(span trace.Span, decision disclosure.Decision) {
	if span == nil || !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("disclosure.allowed", decision.Allow),
	}
	if decision.Reason != "" {
		attrs = append(attrs, attribute.String("disclosure.reason", decision.Reason))
	}
	span.AddEvent("disclosure.decision", trace.WithAttributes(attrs...))
}
