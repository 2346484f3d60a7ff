package telemetry

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/polisai/errorflow/pkg/config"
	"github.com/polisai/errorflow/pkg/disclosure"
	"github.com/polisai/errorflow/pkg/domain"
)

func sampleError() domain.AppError {
	return domain.AppError{
		ID:          "err-1",
		Code:        503,
		Category:    domain.CategorySystem,
		Severity:    domain.SeverityHigh,
		UserMessage: "The service is temporarily unavailable.",
		DebugInfo: domain.DebugInfo{
			TechnicalMessage: "ECONNREFUSED: Connection refused at 10.0.0.5:5432",
			RequestID:        "req_1_abc",
			StackTrace:       "at connect (pool.js:12:3)",
			Context:          map[string]string{"ip": "192.168.1.xxx"},
		},
	}
}

func TestRecordGenerated(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
	})

	ResetMetricsForTest()

	RecordGenerated(ctx, sampleError(), 300*time.Millisecond)
	RecordDisclosureDecision(ctx, false)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	metrics := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			metrics[m.Name] = m
		}
	}

	generated, ok := metrics["errorflow.errors.generated"]
	if !ok {
		t.Fatalf("missing errorflow.errors.generated metric")
	}
	genData, ok := generated.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type for generated metric")
	}
	if len(genData.DataPoints) != 1 || genData.DataPoints[0].Value != 1 {
		t.Fatalf("expected a single datapoint with value 1, got %+v", genData.DataPoints)
	}
	dp := genData.DataPoints[0]
	if value, ok := dp.Attributes.Value(attribute.Key("category")); !ok || value.AsString() != "system" {
		t.Fatalf("expected category attribute system, got %v", value)
	}
	if value, ok := dp.Attributes.Value(attribute.Key("code")); !ok || value.AsInt64() != 503 {
		t.Fatalf("expected code attribute 503, got %v", value)
	}
	for _, kv := range dp.Attributes.ToSlice() {
		if kv.Value.AsString() == sampleError().UserMessage {
			t.Fatalf("message text leaked into metric attribute %s", kv.Key)
		}
	}

	decisions, ok := metrics["errorflow.disclosure.decisions"]
	if !ok {
		t.Fatalf("missing errorflow.disclosure.decisions metric")
	}
	decData := decisions.Data.(metricdata.Sum[int64])
	if value, ok := decData.DataPoints[0].Attributes.Value(attribute.Key("allowed")); !ok || value.AsBool() {
		t.Fatalf("expected allowed=false attribute, got %v", value)
	}

	hist, ok := metrics["errorflow.generation.duration_ms"]
	if !ok {
		t.Fatalf("missing errorflow.generation.duration_ms metric")
	}
	histData := hist.Data.(metricdata.Histogram[float64])
	if histData.DataPoints[0].Sum != 300 {
		t.Fatalf("expected histogram sum 300, got %v", histData.DataPoints[0].Sum)
	}
}

func TestSpanAnnotationsExcludeDebugInfo(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(recorder)
	tracer := tp.Tracer("test")

	appErr := sampleError()
	_, span := tracer.Start(context.Background(), "generate")
	AnnotateError(span, appErr)
	RecordDisclosure(span, disclosure.Decision{Allow: true, Reason: "debug info disclosed on request"})
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	attrs := attribute.NewSet(spans[0].Attributes()...)
	if value, ok := attrs.Value(attribute.Key("errorflow.error.category")); !ok || value.AsString() != "system" {
		t.Fatalf("expected category attribute, got %v", value)
	}
	if value, ok := attrs.Value(attribute.Key("errorflow.error.severity")); !ok || value.AsString() != "high" {
		t.Fatalf("expected severity attribute, got %v", value)
	}

	forbidden := []string{
		appErr.DebugInfo.TechnicalMessage,
		appErr.DebugInfo.RequestID,
		appErr.DebugInfo.StackTrace,
		appErr.UserMessage,
	}
	check := func(kvs []attribute.KeyValue) {
		for _, kv := range kvs {
			for _, f := range forbidden {
				if kv.Value.Emit() == f {
					t.Fatalf("attribute %s carries debug content", kv.Key)
				}
			}
		}
	}
	check(spans[0].Attributes())

	events := spans[0].Events()
	if len(events) != 1 || events[0].Name != "disclosure.decision" {
		t.Fatalf("expected one disclosure.decision event, got %+v", events)
	}
	check(events[0].Attributes)
	eventAttrs := attribute.NewSet(events[0].Attributes...)
	if value, ok := eventAttrs.Value(attribute.Key("disclosure.allowed")); !ok || !value.AsBool() {
		t.Fatalf("expected disclosure.allowed true")
	}

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown tracer provider: %v", err)
	}
}

func TestSetupProviderWithoutEndpointIsNoop(t *testing.T) {
	global := otel.GetTracerProvider()

	provider, err := SetupProvider(context.Background(), config.TelemetryConfig{ServiceName: "errorflow"}, "development")
	if err != nil {
		t.Fatalf("setup provider: %v", err)
	}
	if provider.Enabled() {
		t.Fatal("expected export to be disabled without an endpoint")
	}
	if provider.TracerProvider() != global {
		t.Fatal("expected the global tracer provider to be left in place")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestResourceAttributesDefaultServiceName(t *testing.T) {
	cfg := config.TelemetryConfig{ResourceAttributes: map[string]string{"team": "ux"}}
	set := attribute.NewSet(resourceAttributes(cfg, "staging")...)

	if value, ok := set.Value(attribute.Key("service.name")); !ok || value.AsString() != "errorflow" {
		t.Fatalf("expected default service name, got %v", value)
	}
	if value, ok := set.Value(attribute.Key("deployment.environment")); !ok || value.AsString() != "staging" {
		t.Fatalf("expected environment attribute, got %v", value)
	}
	if value, ok := set.Value(attribute.Key("team")); !ok || value.AsString() != "ux" {
		t.Fatalf("expected resource attribute, got %v", value)
	}
}

func TestExporterOptionsFollowConfig(t *testing.T) {
	secure := exporterOptions(config.TelemetryConfig{OTLPEndpoint: "collector:4317"})
	insecure := exporterOptions(config.TelemetryConfig{
		OTLPEndpoint: "collector:4317",
		Insecure:     true,
		Headers:      map[string]string{"x-api-key": "k"},
	})

	// endpoint, dial option, transport credentials, and headers when present
	if len(secure) != 3 {
		t.Fatalf("expected 3 secure options, got %d", len(secure))
	}
	if len(insecure) != 4 {
		t.Fatalf("expected 4 insecure options with headers, got %d", len(insecure))
	}
}

func TestSamplerRatio(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := sampler(tt.ratio).Description()
		if !strings.HasPrefix(desc, "ParentBased{root:"+tt.want) {
			t.Fatalf("ratio %v: expected root sampler %q, got %q", tt.ratio, tt.want, desc)
		}
	}
}
