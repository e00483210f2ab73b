// Package hub implements the central event hub for wahub.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/brianly1003/wahub/internal/domain"
	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/brianly1003/wahub/internal/sync"
	"github.com/rs/zerolog/log"
)

// DispatchMode selects how one event is fanned out.
type DispatchMode string

const (
	// DispatchSequential invokes subscribers one after another in
	// registration order.
	DispatchSequential DispatchMode = "sequential"

	// DispatchConcurrent spawns one goroutine per subscriber in registration
	// order and waits for all of them. Only the spawn order is guaranteed; the
	// Deliver calls themselves may begin in any order.
	DispatchConcurrent DispatchMode = "concurrent"
)

// DefaultDeliveryTimeout bounds a single blocking invocation.
const DefaultDeliveryTimeout = 10 * time.Second

// Stats is a snapshot of the hub's delivery counters. Delivered, Failed and
// Dropped count one outcome per subscriber per event; an async delivery is
// counted as Delivered when it is initiated. AsyncFailed counts async
// invocations that later returned an error and is not part of that total.
type Stats struct {
	Published   int64 `json:"published"`
	Delivered   int64 `json:"delivered"`
	Failed      int64 `json:"failed"`
	Dropped     int64 `json:"dropped"`
	AsyncFailed int64 `json:"async_failed"`
	Subscribers int   `json:"subscribers"`
}

// Option configures a Hub.
type Option func(*Hub)

// WithDispatchMode sets the fan-out mode.
func WithDispatchMode(mode DispatchMode) Option {
	return func(h *Hub) {
		if mode == DispatchConcurrent {
			h.mode = DispatchConcurrent
		}
	}
}

// WithDeliveryTimeout sets the per-subscriber timeout. Zero disables it.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.timeout = d
	}
}

// WithMetrics replaces the default OpenTelemetry counters.
func WithMetrics(m *Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// Hub is the central event dispatcher that fans out events to all subscribers.
type Hub struct {
	registry *Registry
	mode     DispatchMode
	timeout  time.Duration
	metrics  *Metrics

	// mu protects running
	mu      sync.RWMutex
	running bool

	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	asyncFailed atomic.Int64
}

// New creates a new Hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		registry: NewRegistry(),
		mode:     DispatchSequential,
		timeout:  DefaultDeliveryTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = defaultMetrics()
	}
	return h
}

// Start marks the hub as accepting events.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}
	h.running = true

	log.Debug().
		Str("dispatch_mode", string(h.mode)).
		Dur("delivery_timeout", h.timeout).
		Msg("event hub started")
	return nil
}

// Stop stops the hub, closing and removing every subscriber.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	h.mu.Unlock()

	for _, e := range h.registry.Clear() {
		_ = e.Subscriber.Close()
	}

	log.Debug().Msg("event hub stopped")
	return nil
}

// IsRunning returns true if the hub is running.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Mode returns the dispatch mode.
func (h *Hub) Mode() DispatchMode {
	return h.mode
}

// Subscribe adds a subscriber. Subscribing an ID that is already registered
// returns the existing handle.
func (h *Hub) Subscribe(sub ports.Subscriber) ports.SubscriptionHandle {
	handle := h.registry.Subscribe(sub)
	log.Debug().
		Str("subscriber_id", sub.ID()).
		Uint64("seq", handle.Seq()).
		Msg("subscriber registered")
	return handle
}

// Unsubscribe removes and closes a subscriber. It returns false if the handle
// was already removed.
func (h *Hub) Unsubscribe(handle ports.SubscriptionHandle) bool {
	sub, ok := h.registry.Unsubscribe(handle)
	if !ok {
		return false
	}
	_ = sub.Close()
	log.Debug().Str("subscriber_id", handle.SubscriberID()).Msg("subscriber unregistered")
	return true
}

// UnsubscribeID removes and closes a subscriber by ID.
func (h *Hub) UnsubscribeID(id string) bool {
	sub, ok := h.registry.UnsubscribeID(id)
	if !ok {
		return false
	}
	_ = sub.Close()
	log.Debug().Str("subscriber_id", id).Msg("subscriber unregistered")
	return true
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	return h.registry.Len()
}

// SubscriberIDs returns the active subscriber IDs in delivery order.
func (h *Hub) SubscriberIDs() []string {
	return h.registry.IDs()
}

// Stats returns the delivery counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Published:   h.published.Load(),
		Delivered:   h.delivered.Load(),
		Failed:      h.failed.Load(),
		Dropped:     h.dropped.Load(),
		AsyncFailed: h.asyncFailed.Load(),
		Subscribers: h.registry.Len(),
	}
}

// Publish delivers event to every current subscriber and reports the outcome
// per subscriber. Subscriber failures never escape Publish.
func (h *Hub) Publish(ctx context.Context, event events.Event) ports.DeliveryReport {
	report := ports.DeliveryReport{EventID: event.ID()}

	if !h.IsRunning() {
		log.Warn().
			Err(domain.ErrHubNotRunning).
			Str("event_id", event.ID()).
			Str("event_type", string(event.Type())).
			Msg("event not published")
		return report
	}

	h.published.Add(1)
	h.metrics.recordPublished(ctx, string(event.Type()))

	entries := h.registry.Snapshot()
	report.Outcomes = make([]ports.DeliveryOutcome, len(entries))

	switch h.mode {
	case DispatchConcurrent:
		var wg sync.WaitGroup
		for i, e := range entries {
			wg.Add(1)
			go func(i int, e Entry) {
				defer wg.Done()
				report.Outcomes[i] = h.deliver(ctx, e, event)
			}(i, e)
		}
		wg.Wait()
	default:
		for i, e := range entries {
			report.Outcomes[i] = h.deliver(ctx, e, event)
		}
	}

	for i, o := range report.Outcomes {
		h.count(ctx, o)
		if o.Status == ports.StatusFailed && domain.IsConnectionClosed(o.Err) {
			h.Unsubscribe(entries[i].Handle)
		}
	}

	log.Trace().
		Str("event_id", event.ID()).
		Str("event_type", string(event.Type())).
		Int("subscribers", len(entries)).
		Msg("event published")

	return report
}

// deliver invokes one subscriber and classifies the result.
func (h *Hub) deliver(ctx context.Context, e Entry, event events.Event) ports.DeliveryOutcome {
	id := e.Subscriber.ID()

	if e.Mode == ports.InvokeAsync {
		// The publisher's context may end before the invocation does.
		actx := context.WithoutCancel(ctx)
		go func() {
			if err := h.invoke(actx, e.Subscriber, event); err != nil {
				h.asyncFailed.Add(1)
				h.metrics.recordAsyncFailure(actx, id)
				logDeliveryError(domain.NewSubscriberDeliveryError(id, event.ID(), err))
			}
		}()
		return ports.DeliveryOutcome{SubscriberID: id, Status: ports.StatusDelivered}
	}

	err := h.invoke(ctx, e.Subscriber, event)
	switch {
	case err == nil:
		return ports.DeliveryOutcome{SubscriberID: id, Status: ports.StatusDelivered}
	case errors.Is(err, domain.ErrEventDropped):
		log.Debug().
			Str("subscriber_id", id).
			Str("event_id", event.ID()).
			Msg("subscriber queue full, oldest event dropped")
		return ports.DeliveryOutcome{SubscriberID: id, Status: ports.StatusDropped, Err: err}
	default:
		derr := domain.NewSubscriberDeliveryError(id, event.ID(), err)
		logDeliveryError(derr)
		return ports.DeliveryOutcome{SubscriberID: id, Status: ports.StatusFailed, Err: derr}
	}
}

// invoke calls Deliver with panic recovery, bounded by the delivery timeout.
func (h *Hub) invoke(ctx context.Context, sub ports.Subscriber, event events.Event) error {
	if h.timeout <= 0 {
		return safeDeliver(ctx, sub, event)
	}

	tctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- safeDeliver(tctx, sub, event)
	}()

	select {
	case err := <-done:
		return err
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", domain.ErrDeliveryTimeout, h.timeout)
		}
		return tctx.Err()
	}
}

func safeDeliver(ctx context.Context, sub ports.Subscriber, event events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrSubscriberPanic, r)
		}
	}()
	return sub.Deliver(ctx, event)
}

func (h *Hub) count(ctx context.Context, o ports.DeliveryOutcome) {
	switch o.Status {
	case ports.StatusDelivered:
		h.delivered.Add(1)
	case ports.StatusDropped:
		h.dropped.Add(1)
	case ports.StatusFailed:
		h.failed.Add(1)
	}
	h.metrics.recordOutcome(ctx, o.SubscriberID, o.Status)
}

func logDeliveryError(err *domain.SubscriberDeliveryError) {
	ev := log.Warn()
	if domain.IsConnectionClosed(err) {
		ev = log.Debug()
	}
	ev.Err(err.Err).
		Str("subscriber_id", err.SubscriberID).
		Str("event_id", err.EventID).
		Bool("timeout", err.Timeout()).
		Msg("delivery to subscriber failed")
}
