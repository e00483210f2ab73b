package hub

import (
	"context"
	"sync"

	"github.com/brianly1003/wahub/internal/domain"
	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
)

// CallbackFunc handles one event on behalf of a CallbackSubscriber.
type CallbackFunc func(ctx context.Context, event events.Event) error

// CallbackSubscriber is an in-process subscriber backed by a function. Its
// invoke mode is fixed when it is created.
type CallbackSubscriber struct {
	id   string
	fn   CallbackFunc
	mode ports.InvokeMode

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewCallbackSubscriber creates a callback subscriber with the given mode.
func NewCallbackSubscriber(id string, mode ports.InvokeMode, fn CallbackFunc) *CallbackSubscriber {
	return &CallbackSubscriber{
		id:   id,
		fn:   fn,
		mode: mode,
		done: make(chan struct{}),
	}
}

// NewBlockingCallback creates a callback the hub waits on.
func NewBlockingCallback(id string, fn CallbackFunc) *CallbackSubscriber {
	return NewCallbackSubscriber(id, ports.InvokeBlocking, fn)
}

// NewAsyncCallback creates a callback the hub starts and does not wait on.
func NewAsyncCallback(id string, fn CallbackFunc) *CallbackSubscriber {
	return NewCallbackSubscriber(id, ports.InvokeAsync, fn)
}

// ID returns the subscriber's unique identifier.
func (s *CallbackSubscriber) ID() string {
	return s.id
}

// Mode returns the invoke mode fixed at construction.
func (s *CallbackSubscriber) Mode() ports.InvokeMode {
	return s.mode
}

// Deliver runs the callback.
func (s *CallbackSubscriber) Deliver(ctx context.Context, event events.Event) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.ErrSubscriberClosed
	}
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, event)
}

// Close stops future deliveries. An invocation already running is not
// interrupted.
func (s *CallbackSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (s *CallbackSubscriber) Done() <-chan struct{} {
	return s.done
}

// ChannelSubscriber is a subscriber that sends events to a channel.
type ChannelSubscriber struct {
	id   string
	send chan events.Event

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewChannelSubscriber creates a new channel-based subscriber.
func NewChannelSubscriber(id string, bufferSize int) *ChannelSubscriber {
	return &ChannelSubscriber{
		id:   id,
		send: make(chan events.Event, bufferSize),
		done: make(chan struct{}),
	}
}

// ID returns the subscriber's unique identifier.
func (s *ChannelSubscriber) ID() string {
	return s.id
}

// Deliver queues the event without blocking. A full buffer drops the event.
func (s *ChannelSubscriber) Deliver(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.NewConnectionClosedError(s.id, nil)
	}

	select {
	case s.send <- event:
		return nil
	default:
		return domain.ErrEventDropped
	}
}

// Close closes the subscriber and its channel.
func (s *ChannelSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	close(s.send)
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (s *ChannelSubscriber) Done() <-chan struct{} {
	return s.done
}

// Events returns the channel to receive events from.
func (s *ChannelSubscriber) Events() <-chan events.Event {
	return s.send
}

// LogSubscriber is a subscriber that logs events (useful for debugging).
type LogSubscriber struct {
	*CallbackSubscriber
}

// NewLogSubscriber creates a new log subscriber.
func NewLogSubscriber(id string, logFn func(event events.Event)) *LogSubscriber {
	return &LogSubscriber{
		CallbackSubscriber: NewBlockingCallback(id, func(_ context.Context, event events.Event) error {
			if logFn != nil {
				logFn(event)
			}
			return nil
		}),
	}
}

var (
	_ ports.ModalSubscriber = (*CallbackSubscriber)(nil)
	_ ports.Subscriber      = (*ChannelSubscriber)(nil)
	_ ports.ModalSubscriber = (*LogSubscriber)(nil)
)
