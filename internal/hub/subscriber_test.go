package hub

import (
	"context"
	"errors"
	"testing"

	"github.com/brianly1003/wahub/internal/domain"
	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
)

func TestCallbackSubscriber(t *testing.T) {
	var got events.Event
	sub := NewBlockingCallback("cb", func(_ context.Context, e events.Event) error {
		got = e
		return nil
	})

	if sub.ID() != "cb" {
		t.Errorf("ID() = %s, want cb", sub.ID())
	}
	if sub.Mode() != ports.InvokeBlocking {
		t.Errorf("Mode() = %s, want blocking", sub.Mode())
	}

	event := events.NewEvent(events.EventTypeNewMessage, nil)
	if err := sub.Deliver(context.Background(), event); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if got == nil || got.ID() != event.ID() {
		t.Error("callback did not receive the event")
	}
}

func TestCallbackSubscriber_Async(t *testing.T) {
	sub := NewAsyncCallback("cb", nil)
	if sub.Mode() != ports.InvokeAsync {
		t.Errorf("Mode() = %s, want async", sub.Mode())
	}
	if err := sub.Deliver(context.Background(), events.NewEvent(events.EventTypeNewMessage, nil)); err != nil {
		t.Errorf("nil callback should be a no-op, got %v", err)
	}
}

func TestCallbackSubscriber_Close(t *testing.T) {
	calls := 0
	sub := NewBlockingCallback("cb", func(context.Context, events.Event) error {
		calls++
		return nil
	})

	_ = sub.Close()
	_ = sub.Close()

	select {
	case <-sub.Done():
	default:
		t.Error("Done() should be closed")
	}

	err := sub.Deliver(context.Background(), events.NewEvent(events.EventTypeNewMessage, nil))
	if !errors.Is(err, domain.ErrSubscriberClosed) {
		t.Errorf("Deliver() after Close = %v, want ErrSubscriberClosed", err)
	}
	if calls != 0 {
		t.Error("callback ran after Close")
	}
}

func TestChannelSubscriber(t *testing.T) {
	sub := NewChannelSubscriber("ch", 2)
	ctx := context.Background()

	e1 := events.NewEvent(events.EventTypeNewMessage, nil)
	e2 := events.NewEvent(events.EventTypeNewMessage, nil)
	e3 := events.NewEvent(events.EventTypeNewMessage, nil)

	if err := sub.Deliver(ctx, e1); err != nil {
		t.Fatalf("Deliver(e1) error = %v", err)
	}
	if err := sub.Deliver(ctx, e2); err != nil {
		t.Fatalf("Deliver(e2) error = %v", err)
	}
	if err := sub.Deliver(ctx, e3); !errors.Is(err, domain.ErrEventDropped) {
		t.Errorf("Deliver() on full buffer = %v, want ErrEventDropped", err)
	}

	if got := <-sub.Events(); got.ID() != e1.ID() {
		t.Error("events should be received in order")
	}
}

func TestChannelSubscriber_Close(t *testing.T) {
	sub := NewChannelSubscriber("ch", 1)
	_ = sub.Close()
	_ = sub.Close()

	err := sub.Deliver(context.Background(), events.NewEvent(events.EventTypeNewMessage, nil))
	if !domain.IsConnectionClosed(err) {
		t.Errorf("Deliver() after Close = %v, want ConnectionClosedError", err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("Events() should be closed")
	}
}

func TestLogSubscriber(t *testing.T) {
	var logged []events.EventType
	sub := NewLogSubscriber("log", func(e events.Event) {
		logged = append(logged, e.Type())
	})

	_ = sub.Deliver(context.Background(), events.NewEvent(events.EventTypeNewMessage, nil))
	_ = sub.Deliver(context.Background(), events.NewEvent(events.EventTypeMessageSent, nil))

	if len(logged) != 2 || logged[1] != events.EventTypeMessageSent {
		t.Errorf("logged = %v", logged)
	}
	if sub.Mode() != ports.InvokeBlocking {
		t.Errorf("Mode() = %s, want blocking", sub.Mode())
	}
}
