package o11y

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Meter wraps otel/metric instruments for per-operation duration and
// error counts.
type Meter struct {
	requests metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMeter creates a Meter under the given instrumentation name,
// falling back to the global otel meter provider if mp is nil.
func NewMeter(name string, mp metric.MeterProvider) (*Meter, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := mp.Meter(name)

	requests, err := m.Int64Counter(name + ".requests")
	if err != nil {
		return nil, err
	}
	errs, err := m.Int64Counter(name + ".errors")
	if err != nil {
		return nil, err
	}
	duration, err := m.Float64Histogram(name + ".duration_ms")
	if err != nil {
		return nil, err
	}

	return &Meter{requests: requests, errors: errs, duration: duration}, nil
}

// RecordRequest records one successful call to op taking durationMs.
func (m *Meter) RecordRequest(ctx context.Context, op string, durationMs float64) {
	attrs := metric.WithAttributes(attribute.String("op", op))
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, durationMs, attrs)
}

// RecordError records one failed call to op classified as kind.
func (m *Meter) RecordError(ctx context.Context, op, kind string) {
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("kind", kind),
	))
}
