package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the otel meter provider. Instruments are exported
// through the default prometheus registry next to the promauto metrics.
type Observability struct {
	meterProvider  *metric.MeterProvider
	submitCounter  otelmetric.Int64Counter
	submitDuration otelmetric.Float64Histogram
	jobCounter     otelmetric.Int64Counter
}

// New returns a working Observability, or an inert one when the exporter
// cannot be created.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	submitCounter, _ := meter.Int64Counter(
		"wizard.submissions",
		otelmetric.WithDescription("Loan application submissions"),
	)

	submitDuration, _ := meter.Float64Histogram(
		"wizard.submit.duration",
		otelmetric.WithDescription("Loan application endpoint latency"),
		otelmetric.WithUnit("ms"),
	)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)

	return &Observability{
		meterProvider:  provider,
		submitCounter:  submitCounter,
		submitDuration: submitDuration,
		jobCounter:     jobCounter,
	}, nil
}

func (o *Observability) RecordSubmission(ctx context.Context, duration time.Duration, outcome, tenantID string) {
	attrs := otelmetric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("tenant_id", tenantID),
	)
	if o.submitCounter != nil {
		o.submitCounter.Add(ctx, 1, attrs)
	}
	if o.submitDuration != nil {
		o.submitDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, jobType, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("job_type", jobType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o.meterProvider == nil {
		return nil
	}
	return o.meterProvider.Shutdown(ctx)
}
