package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/polisai/errorflow/pkg/domain"
)

var (
	metricsOnce                sync.Once
	metricsInitErr             error
	errorsGeneratedCounter     metric.Int64Counter
	disclosureDecisionCounter  metric.Int64Counter
	generationLatencyHistogram metric.Float64Histogram
)

// RecordGenerated counts one generated error. duration is the time the caller
// spent producing it, including any simulated latency; zero skips the histogram.
func RecordGenerated(ctx context.Context, e domain.AppError, duration time.Duration) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("category", string(e.Category)),
		attribute.String("severity", e.Severity.String()),
		attribute.Int("code", e.Code),
	)

	errorsGeneratedCounter.Add(ctx, 1, attrs)
	if duration > 0 {
		generationLatencyHistogram.Record(ctx, float64(duration)/float64(time.Millisecond), attrs)
	}
}

// RecordDisclosureDecision counts a disclosure policy outcome.
func RecordDisclosureDecision(ctx context.Context, allowed bool) {
	if err := ensureMetrics(); err != nil {
		return
	}
	disclosureDecisionCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("allowed", allowed)))
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(TracerName)

		errorsGeneratedCounter, metricsInitErr = meter.Int64Counter(
			"errorflow.errors.generated",
			metric.WithDescription("Simulated errors generated, partitioned by category"),
			metric.WithUnit("{error}"),
		)
		if metricsInitErr != nil {
			return
		}

		disclosureDecisionCounter, metricsInitErr = meter.Int64Counter(
			"errorflow.disclosure.decisions",
			metric.WithDescription("Debug disclosure decisions by outcome"),
			metric.WithUnit("{decision}"),
		)
		if metricsInitErr != nil {
			return
		}

		generationLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"errorflow.generation.duration_ms",
			metric.WithDescription("Observed time to produce a simulated error"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}
