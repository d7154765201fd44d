package gfdb

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/gf3d/gf3dserver/internal/gfdb"

// callMetrics records duration and outcome of library calls.
type callMetrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
}

func newCallMetrics() *callMetrics {
	m, err := newCallMetricsFrom(otel.Meter(meterName))
	if err != nil {
		otel.Handle(err)
		m, _ = newCallMetricsFrom(noop.NewMeterProvider().Meter(meterName))
	}
	return m
}

func newCallMetricsFrom(meter metric.Meter) (*callMetrics, error) {
	duration, err := meter.Float64Histogram(
		"gfdb.call.duration",
		metric.WithDescription("Duration of database library calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	total, err := meter.Int64Counter(
		"gfdb.call.total",
		metric.WithDescription("Total number of database library calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	return &callMetrics{duration: duration, total: total}, nil
}

// record is called with the start time of operation and its result.
func (m *callMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("gfdb.operation", operation),
		attribute.Bool("error", err != nil),
	}
	// The request context may already be canceled; metrics are still wanted.
	ctx = context.WithoutCancel(ctx)
	m.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
	m.total.Add(ctx, 1, metric.WithAttributes(attrs...))
}
