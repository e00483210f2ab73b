package hub

import (
	"context"
	"testing"

	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/brianly1003/wahub/internal/testutil"
)

func TestFilteredSubscriber_ForwardsAllByDefault(t *testing.T) {
	inner := testutil.NewMockSubscriber("inner")
	f := NewFilteredSubscriber(inner)

	if f.IsFiltering() {
		t.Error("new filter without types should not be filtering")
	}

	_ = f.Deliver(context.Background(), events.NewEvent(events.EventTypeNewMessage, nil))
	_ = f.Deliver(context.Background(), events.NewEvent(events.EventTypeMessageSent, nil))

	if inner.EventCount() != 2 {
		t.Errorf("inner received %d events, want 2", inner.EventCount())
	}
}

func TestFilteredSubscriber_FiltersByType(t *testing.T) {
	inner := testutil.NewMockSubscriber("inner")
	f := NewFilteredSubscriber(inner, events.EventTypeNewMessage)

	_ = f.Deliver(context.Background(), events.NewEvent(events.EventTypeNewMessage, nil))
	_ = f.Deliver(context.Background(), events.NewEvent(events.EventTypeMessageSent, nil))

	if inner.EventCount() != 1 {
		t.Fatalf("inner received %d events, want 1", inner.EventCount())
	}
	if inner.Events()[0].Type() != events.EventTypeNewMessage {
		t.Errorf("inner received %s, want new_message", inner.Events()[0].Type())
	}

	f.Allow(events.EventTypeMessageSent)
	_ = f.Deliver(context.Background(), events.NewEvent(events.EventTypeMessageSent, nil))
	if inner.EventCount() != 2 {
		t.Errorf("inner received %d events after Allow, want 2", inner.EventCount())
	}

	f.Disallow(events.EventTypeMessageSent)
	_ = f.Deliver(context.Background(), events.NewEvent(events.EventTypeMessageSent, nil))
	if inner.EventCount() != 2 {
		t.Errorf("inner received %d events after Disallow, want 2", inner.EventCount())
	}

	f.AllowAll()
	if f.IsFiltering() {
		t.Error("AllowAll should clear the filter")
	}
}

func TestFilteredSubscriber_DelegatesIdentityAndMode(t *testing.T) {
	inner := testutil.NewAsyncMockSubscriber("inner")
	f := NewFilteredSubscriber(inner)

	if f.ID() != "inner" {
		t.Errorf("ID() = %s, want inner", f.ID())
	}
	if f.Mode() != ports.InvokeAsync {
		t.Errorf("Mode() = %s, want async", f.Mode())
	}

	_ = f.Close()
	if !inner.IsClosed() {
		t.Error("Close should close the inner subscriber")
	}
	select {
	case <-f.Done():
	default:
		t.Error("Done() should follow the inner subscriber")
	}

	plain := NewFilteredSubscriber(NewChannelSubscriber("plain", 1))
	if plain.Mode() != ports.InvokeBlocking {
		t.Errorf("Mode() = %s, want blocking", plain.Mode())
	}
}
