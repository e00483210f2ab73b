package hub

import (
	"context"

	"github.com/brianly1003/wahub/internal/domain/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/brianly1003/wahub/internal/hub"

// Metric names.
const (
	MetricPublished   = "wahub.hub.events_published"
	MetricDeliveries  = "wahub.hub.deliveries"
	MetricAsyncFailed = "wahub.hub.async_failures"
)

// Metrics holds the delivery counters exported through OpenTelemetry.
// With no MeterProvider installed the global provider is a no-op.
type Metrics struct {
	published   metric.Int64Counter
	outcomes    metric.Int64Counter
	asyncFailed metric.Int64Counter
}

// NewMetrics creates delivery counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	published, err := meter.Int64Counter(
		MetricPublished,
		metric.WithDescription("Events published through the hub"),
	)
	if err != nil {
		return nil, err
	}
	outcomes, err := meter.Int64Counter(
		MetricDeliveries,
		metric.WithDescription("Per-subscriber delivery outcomes"),
	)
	if err != nil {
		return nil, err
	}
	asyncFailed, err := meter.Int64Counter(
		MetricAsyncFailed,
		metric.WithDescription("Async invocations that returned an error after being initiated"),
	)
	if err != nil {
		return nil, err
	}
	return &Metrics{published: published, outcomes: outcomes, asyncFailed: asyncFailed}, nil
}

// defaultMetrics uses the global meter provider.
func defaultMetrics() *Metrics {
	m, err := NewMetrics(otel.Meter(meterName))
	if err != nil {
		return nil
	}
	return m
}

func (m *Metrics) recordPublished(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.published.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *Metrics) recordOutcome(ctx context.Context, subscriberID string, status ports.DeliveryStatus) {
	if m == nil {
		return
	}
	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("subscriber_id", subscriberID),
		attribute.String("status", string(status)),
	))
}

func (m *Metrics) recordAsyncFailure(ctx context.Context, subscriberID string) {
	if m == nil {
		return
	}
	m.asyncFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("subscriber_id", subscriberID)))
}
