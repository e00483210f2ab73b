// Package testutil provides shared test utilities and mocks for wahub tests.
package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
)

// MockSubscriber implements ports.ModalSubscriber for testing.
type MockSubscriber struct {
	id          string
	mode        ports.InvokeMode
	events      []events.Event
	mu          sync.Mutex
	closed      bool
	closeCount  int
	deliverErr  error
	deliverFunc func(context.Context, events.Event) error
	done        chan struct{}
}

// NewMockSubscriber creates a new blocking mock subscriber.
func NewMockSubscriber(id string) *MockSubscriber {
	return &MockSubscriber{
		id:     id,
		events: make([]events.Event, 0),
		done:   make(chan struct{}),
	}
}

// NewAsyncMockSubscriber creates a mock subscriber tagged as async.
func NewAsyncMockSubscriber(id string) *MockSubscriber {
	m := NewMockSubscriber(id)
	m.mode = ports.InvokeAsync
	return m
}

// ID returns the subscriber ID.
func (m *MockSubscriber) ID() string {
	return m.id
}

// Mode returns the invoke mode.
func (m *MockSubscriber) Mode() ports.InvokeMode {
	return m.mode
}

// Deliver records the event and returns any configured error. A custom
// deliver func runs without the lock held so it may block.
func (m *MockSubscriber) Deliver(ctx context.Context, e events.Event) error {
	m.mu.Lock()
	fn := m.deliverFunc
	err := m.deliverErr
	m.mu.Unlock()

	if fn != nil {
		if ferr := fn(ctx, e); ferr != nil {
			return ferr
		}
	} else if err != nil {
		return err
	}

	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
	return nil
}

// Close marks the subscriber as closed.
func (m *MockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCount++
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (m *MockSubscriber) Done() <-chan struct{} {
	return m.done
}

// Events returns all received events.
func (m *MockSubscriber) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

// EventCount returns the number of received events.
func (m *MockSubscriber) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// IsClosed returns whether the subscriber was closed.
func (m *MockSubscriber) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CloseCount returns how many times Close was called.
func (m *MockSubscriber) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount
}

// SetDeliverError configures an error to return on Deliver.
func (m *MockSubscriber) SetDeliverError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliverErr = err
}

// SetDeliverFunc sets a custom function for Deliver behavior. The event is
// recorded only when fn returns nil.
func (m *MockSubscriber) SetDeliverFunc(fn func(context.Context, events.Event) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliverFunc = fn
}

// ClearEvents removes all recorded events.
func (m *MockSubscriber) ClearEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = m.events[:0]
}

// Ensure MockSubscriber implements ports.ModalSubscriber.
var _ ports.ModalSubscriber = (*MockSubscriber)(nil)

// MockEventHub implements ports.EventHub for testing.
type MockEventHub struct {
	events      []events.Event
	subscribers []ports.Subscriber
	seq         uint64
	mu          sync.Mutex
	started     bool
	stopped     bool
}

// NewMockEventHub creates a new mock event hub.
func NewMockEventHub() *MockEventHub {
	return &MockEventHub{
		events:      make([]events.Event, 0),
		subscribers: make([]ports.Subscriber, 0),
	}
}

// Start marks the hub as started.
func (m *MockEventHub) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

// Stop marks the hub as stopped.
func (m *MockEventHub) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

// Publish records the event and reports every subscriber as delivered
// without invoking it.
func (m *MockEventHub) Publish(_ context.Context, e events.Event) ports.DeliveryReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)

	report := ports.DeliveryReport{EventID: e.ID()}
	for _, sub := range m.subscribers {
		report.Outcomes = append(report.Outcomes, ports.DeliveryOutcome{
			SubscriberID: sub.ID(),
			Status:       ports.StatusDelivered,
		})
	}
	return report
}

// Subscribe records the subscriber.
func (m *MockEventHub) Subscribe(sub ports.Subscriber) ports.SubscriptionHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.subscribers = append(m.subscribers, sub)
	return ports.NewSubscriptionHandle(m.seq, sub.ID())
}

// Unsubscribe removes a subscriber by the handle's subscriber ID.
func (m *MockEventHub) Unsubscribe(h ports.SubscriptionHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sub := range m.subscribers {
		if sub.ID() == h.SubscriberID() {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			return true
		}
	}
	return false
}

// SubscriberCount returns the number of subscribers.
func (m *MockEventHub) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// IsRunning returns true if the hub was started and not stopped.
func (m *MockEventHub) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && !m.stopped
}

// PublishedEvents returns all published events.
func (m *MockEventHub) PublishedEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

// Ensure MockEventHub implements ports.EventHub.
var _ ports.EventHub = (*MockEventHub)(nil)

// SentMessage is one call recorded by MockSender.
type SentMessage struct {
	Recipient string
	Text      string
}

// MockSender implements ports.Sender for testing.
type MockSender struct {
	mu     sync.Mutex
	sent   []SentMessage
	result ports.SendResult
	err    error
}

// NewMockSender creates a sender that reports success.
func NewMockSender() *MockSender {
	return &MockSender{result: ports.SendResult{Success: true, Status: "Message sent"}}
}

// Send records the message.
func (m *MockSender) Send(_ context.Context, recipient, text string) (ports.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return ports.SendResult{}, m.err
	}
	m.sent = append(m.sent, SentMessage{Recipient: recipient, Text: text})
	return m.result, nil
}

// SetResult configures the result returned by Send.
func (m *MockSender) SetResult(res ports.SendResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = res
	m.err = err
}

// Sent returns the recorded messages.
func (m *MockSender) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

var _ ports.Sender = (*MockSender)(nil)

// AssertEqual is a simple equality assertion helper.
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertTrue asserts that a condition is true.
func AssertTrue(t *testing.T, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Errorf("%s: expected true, got false", msg)
	}
}

// AssertFalse asserts that a condition is false.
func AssertFalse(t *testing.T, condition bool, msg string) {
	t.Helper()
	if condition {
		t.Errorf("%s: expected false, got true", msg)
	}
}

// AssertNoError asserts that an error is nil.
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError asserts that an error is not nil.
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error, got nil", msg)
	}
}

// AssertContains checks if a string contains a substring.
func AssertContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%s: string %q does not contain %q", msg, s, substr)
	}
}
