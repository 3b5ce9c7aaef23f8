package fare

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/chauffeurline/fareengine/internal/fare"

// Metrics holds the engine's OpenTelemetry instruments.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	quotesTotal    metric.Int64Counter
	degradedTotal  metric.Int64Counter
	unresolvedLegs metric.Int64Counter
	quoteDuration  metric.Float64Histogram
}

// NewMetrics creates the engine instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	quotesTotal, err := meter.Int64Counter(
		"fare.quotes.total",
		metric.WithDescription("Total number of computed quotes"),
		metric.WithUnit("{quote}"),
	)
	if err != nil {
		return nil, err
	}

	degradedTotal, err := meter.Int64Counter(
		"fare.quotes.degraded",
		metric.WithDescription("Quotes computed with fallback pricing or unresolved legs"),
		metric.WithUnit("{quote}"),
	)
	if err != nil {
		return nil, err
	}

	unresolvedLegs, err := meter.Int64Counter(
		"fare.legs.unresolved",
		metric.WithDescription("Legs skipped because their distance could not be resolved"),
		metric.WithUnit("{leg}"),
	)
	if err != nil {
		return nil, err
	}

	quoteDuration, err := meter.Float64Histogram(
		"fare.quote.duration",
		metric.WithDescription("Duration of quote computation in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		quotesTotal:    quotesTotal,
		degradedTotal:  degradedTotal,
		unresolvedLegs: unresolvedLegs,
		quoteDuration:  quoteDuration,
	}, nil
}

func (m *Metrics) recordQuote(ctx context.Context, q *Quote, elapsed time.Duration) {
	if m == nil || q == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("vehicle", string(q.Selection.Vehicle)),
		attribute.String("service_type", string(q.ServiceType)),
		attribute.String("pricing_source", string(q.PricingSource)),
	)
	m.quotesTotal.Add(ctx, 1, attrs)
	m.quoteDuration.Record(ctx, elapsed.Seconds(), attrs)
	if q.Degraded {
		m.degradedTotal.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) recordUnresolved(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.unresolvedLegs.Add(ctx, int64(n))
}
