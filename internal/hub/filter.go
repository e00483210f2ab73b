package hub

import (
	"context"
	"sync"

	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
)

// FilteredSubscriber wraps a subscriber and forwards only selected event types.
// If no types are selected, all events are forwarded.
type FilteredSubscriber struct {
	inner ports.Subscriber
	types map[events.EventType]bool
	mu    sync.RWMutex
}

// NewFilteredSubscriber creates a filtered subscriber that forwards the given
// event types.
func NewFilteredSubscriber(inner ports.Subscriber, types ...events.EventType) *FilteredSubscriber {
	f := &FilteredSubscriber{
		inner: inner,
		types: make(map[events.EventType]bool, len(types)),
	}
	for _, t := range types {
		f.types[t] = true
	}
	return f
}

// ID returns the wrapped subscriber's identifier.
func (f *FilteredSubscriber) ID() string {
	return f.inner.ID()
}

// Mode returns the wrapped subscriber's invoke mode.
func (f *FilteredSubscriber) Mode() ports.InvokeMode {
	if m, ok := f.inner.(ports.ModalSubscriber); ok {
		return m.Mode()
	}
	return ports.InvokeBlocking
}

// Deliver forwards the event if it passes the filter.
func (f *FilteredSubscriber) Deliver(ctx context.Context, event events.Event) error {
	if !f.shouldForward(event) {
		return nil
	}
	return f.inner.Deliver(ctx, event)
}

// Close closes the wrapped subscriber.
func (f *FilteredSubscriber) Close() error {
	return f.inner.Close()
}

// Done returns the wrapped subscriber's done channel.
func (f *FilteredSubscriber) Done() <-chan struct{} {
	return f.inner.Done()
}

// Allow adds an event type to the filter.
func (f *FilteredSubscriber) Allow(t events.EventType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types[t] = true
}

// Disallow removes an event type from the filter.
func (f *FilteredSubscriber) Disallow(t events.EventType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.types, t)
}

// AllowAll clears the filter.
func (f *FilteredSubscriber) AllowAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = make(map[events.EventType]bool)
}

// IsFiltering returns true if only some event types are forwarded.
func (f *FilteredSubscriber) IsFiltering() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.types) > 0
}

func (f *FilteredSubscriber) shouldForward(event events.Event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.types) == 0 {
		return true
	}
	return f.types[event.Type()]
}
