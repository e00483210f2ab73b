package hub

import (
	"context"
	"testing"
	"time"

	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/testutil"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newMeteredHub(t *testing.T) (*Hub, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return newStartedHub(t, WithMetrics(m)), reader
}

// counterValue sums the data points of an int64 counter whose attribute key
// equals value. An empty key matches every point.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name, key, value string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is %T, want Sum[int64]", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if key != "" {
					v, ok := dp.Attributes.Value(attribute.Key(key))
					if !ok || v.AsString() != value {
						continue
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetrics_CountsPublishAndOutcomes(t *testing.T) {
	h, reader := newMeteredHub(t)

	failing := testutil.NewMockSubscriber("failing")
	failing.SetDeliverError(errTestDeliverFailed)
	h.Subscribe(testutil.NewMockSubscriber("good"))
	h.Subscribe(failing)

	for i := 0; i < 2; i++ {
		h.Publish(context.Background(), events.NewEvent(events.EventTypeNewMessage, nil))
	}

	if got := counterValue(t, reader, MetricPublished, "event_type", string(events.EventTypeNewMessage)); got != 2 {
		t.Errorf("%s = %d, want 2", MetricPublished, got)
	}
	if got := counterValue(t, reader, MetricDeliveries, "status", "delivered"); got != 2 {
		t.Errorf("delivered = %d, want 2", got)
	}
	if got := counterValue(t, reader, MetricDeliveries, "status", "failed"); got != 2 {
		t.Errorf("failed = %d, want 2", got)
	}
	if got := counterValue(t, reader, MetricDeliveries, "subscriber_id", "good"); got != 2 {
		t.Errorf("deliveries for good = %d, want 2", got)
	}
}

func TestMetrics_AsyncFailureSeparateCounter(t *testing.T) {
	h, reader := newMeteredHub(t)

	done := make(chan struct{})
	h.Subscribe(NewAsyncCallback("async", func(context.Context, events.Event) error {
		defer close(done)
		return errTestDeliverFailed
	}))

	h.Publish(context.Background(), events.NewEvent(events.EventTypeNewMessage, nil))
	<-done

	deadline := time.Now().Add(time.Second)
	for counterValue(t, reader, MetricAsyncFailed, "", "") != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("%s never reached 1", MetricAsyncFailed)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := counterValue(t, reader, MetricDeliveries, "", ""); got != 1 {
		t.Errorf("deliveries = %d, want exactly 1 outcome", got)
	}
}
