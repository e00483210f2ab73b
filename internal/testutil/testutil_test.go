package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
)

// --- MockSubscriber Tests ---

func TestNewMockSubscriber(t *testing.T) {
	sub := NewMockSubscriber("test-sub")

	if sub.ID() != "test-sub" {
		t.Errorf("expected ID test-sub, got %s", sub.ID())
	}
	if sub.EventCount() != 0 {
		t.Errorf("expected 0 events, got %d", sub.EventCount())
	}
	if sub.IsClosed() {
		t.Error("expected subscriber to not be closed initially")
	}
	if sub.Mode() != ports.InvokeBlocking {
		t.Errorf("expected blocking mode, got %s", sub.Mode())
	}
	if NewAsyncMockSubscriber("a").Mode() != ports.InvokeAsync {
		t.Error("expected async mode")
	}
}

func TestMockSubscriber_Deliver(t *testing.T) {
	sub := NewMockSubscriber("test-sub")

	event := events.NewMessageEvent(map[string]string{"sender": "123"})
	if err := sub.Deliver(context.Background(), event); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	evts := sub.Events()
	if len(evts) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evts))
	}
	if evts[0].Get("sender") != "123" {
		t.Errorf("expected sender 123, got %q", evts[0].Get("sender"))
	}
}

func TestMockSubscriber_DeliverWithError(t *testing.T) {
	sub := NewMockSubscriber("test-sub")
	expectedErr := errors.New("deliver failed")
	sub.SetDeliverError(expectedErr)

	err := sub.Deliver(context.Background(), events.NewEvent(events.EventTypeNewMessage, nil))
	if err != expectedErr {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	// Event should not be recorded when error occurs
	if sub.EventCount() != 0 {
		t.Errorf("expected 0 events, got %d", sub.EventCount())
	}
}

func TestMockSubscriber_DeliverFunc(t *testing.T) {
	sub := NewMockSubscriber("test-sub")
	called := 0
	sub.SetDeliverFunc(func(context.Context, events.Event) error {
		called++
		return nil
	})

	_ = sub.Deliver(context.Background(), events.NewEvent(events.EventTypeNewMessage, nil))
	if called != 1 {
		t.Errorf("expected deliver func to be called once, got %d", called)
	}
	if sub.EventCount() != 1 {
		t.Errorf("expected 1 event, got %d", sub.EventCount())
	}
}

func TestMockSubscriber_Close(t *testing.T) {
	sub := NewMockSubscriber("test-sub")
	_ = sub.Close()
	_ = sub.Close()

	if !sub.IsClosed() {
		t.Error("expected subscriber to be closed")
	}
	if sub.CloseCount() != 2 {
		t.Errorf("expected 2 close calls, got %d", sub.CloseCount())
	}
	select {
	case <-sub.Done():
	default:
		t.Error("done channel should be closed")
	}
}

// --- MockEventHub Tests ---

func TestMockEventHub(t *testing.T) {
	h := NewMockEventHub()
	_ = h.Start()
	if !h.IsRunning() {
		t.Error("expected hub to be running")
	}

	handle := h.Subscribe(NewMockSubscriber("s1"))
	if h.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", h.SubscriberCount())
	}

	report := h.Publish(context.Background(), events.NewEvent(events.EventTypeNewMessage, nil))
	if report.Count(ports.StatusDelivered) != 1 {
		t.Errorf("expected 1 delivered outcome, got %d", report.Count(ports.StatusDelivered))
	}
	if len(h.PublishedEvents()) != 1 {
		t.Errorf("expected 1 published event, got %d", len(h.PublishedEvents()))
	}

	if !h.Unsubscribe(handle) {
		t.Error("expected first unsubscribe to succeed")
	}
	if h.Unsubscribe(handle) {
		t.Error("expected second unsubscribe to be a no-op")
	}

	_ = h.Stop()
	if h.IsRunning() {
		t.Error("expected hub to be stopped")
	}
}

// --- MockSender Tests ---

func TestMockSender(t *testing.T) {
	s := NewMockSender()
	res, err := s.Send(context.Background(), "123@s.whatsapp.net", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Error("expected success")
	}
	if got := s.Sent(); len(got) != 1 || got[0].Text != "hello" {
		t.Errorf("unexpected sent messages: %+v", got)
	}

	s.SetResult(ports.SendResult{}, errors.New("bridge down"))
	if _, err := s.Send(context.Background(), "x", "y"); err == nil {
		t.Error("expected error")
	}
	if len(s.Sent()) != 1 {
		t.Error("failed send should not be recorded")
	}
}

// --- Assertion helper Tests ---

func TestAssertHelpers(t *testing.T) {
	AssertEqual(t, 1, 1, "equal ints")
	AssertTrue(t, true, "true")
	AssertFalse(t, false, "false")
	AssertNoError(t, nil, "no error")
	AssertError(t, errors.New("x"), "error")
	AssertContains(t, "hello world", "world", "contains")
}
