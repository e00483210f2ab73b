package ports

import (
	"context"

	"github.com/brianly1003/wahub/internal/domain/events"
)

// Subscriber represents an event subscriber.
type Subscriber interface {
	// ID returns a unique identifier for this subscriber. Registration is
	// deduplicated by ID.
	ID() string

	// Deliver hands an event to this subscriber.
	// Returns error if the subscriber is closed or the delivery fails.
	Deliver(ctx context.Context, event events.Event) error

	// Close closes the subscriber.
	Close() error

	// Done returns a channel that's closed when the subscriber is done.
	Done() <-chan struct{}
}

// InvokeMode tells the delivery engine how to call a subscriber.
type InvokeMode int

const (
	// InvokeBlocking means the engine waits for Deliver to return.
	InvokeBlocking InvokeMode = iota

	// InvokeAsync means the engine starts Deliver and moves on.
	InvokeAsync
)

func (m InvokeMode) String() string {
	switch m {
	case InvokeAsync:
		return "async"
	default:
		return "blocking"
	}
}

// ModalSubscriber is implemented by subscribers that declare their invoke
// mode. Subscribers that don't implement it are treated as blocking.
type ModalSubscriber interface {
	Subscriber
	Mode() InvokeMode
}

// SubscriptionHandle identifies one registration in the hub.
type SubscriptionHandle struct {
	seq uint64
	id  string
}

// NewSubscriptionHandle builds a handle. Only registries should call it.
func NewSubscriptionHandle(seq uint64, subscriberID string) SubscriptionHandle {
	return SubscriptionHandle{seq: seq, id: subscriberID}
}

// Seq returns the registration sequence number.
func (h SubscriptionHandle) Seq() uint64 {
	return h.seq
}

// SubscriberID returns the ID of the registered subscriber.
func (h SubscriptionHandle) SubscriberID() string {
	return h.id
}

// IsZero reports whether the handle was never issued.
func (h SubscriptionHandle) IsZero() bool {
	return h.seq == 0
}

// EventHub defines the contract for event distribution.
type EventHub interface {
	// Start begins the event hub.
	Start() error

	// Stop gracefully stops the hub.
	Stop() error

	// Publish delivers an event to all current subscribers.
	Publish(ctx context.Context, event events.Event) DeliveryReport

	// Subscribe adds a new subscriber.
	Subscribe(sub Subscriber) SubscriptionHandle

	// Unsubscribe removes a subscription. Removing twice is a no-op.
	Unsubscribe(h SubscriptionHandle) bool

	// SubscriberCount returns the number of active subscribers.
	SubscriberCount() int
}
