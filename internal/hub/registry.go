package hub

import (
	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/brianly1003/wahub/internal/sync"
)

// Entry is one registration in the Registry.
type Entry struct {
	Handle     ports.SubscriptionHandle
	Subscriber ports.Subscriber
	Mode       ports.InvokeMode
}

// Registry is the ordered set of active subscribers. Insertion order is
// delivery order. Subscribers are deduplicated by ID.
type Registry struct {
	mu      sync.Mutex
	entries []Entry
	seq     uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Subscribe appends sub and returns its handle. If a subscriber with the same
// ID is already registered, the existing handle is returned and nothing is
// added.
func (r *Registry) Subscribe(sub ports.Subscriber) ports.SubscriptionHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.Subscriber.ID() == sub.ID() {
			return e.Handle
		}
	}

	r.seq++
	h := ports.NewSubscriptionHandle(r.seq, sub.ID())
	r.entries = append(r.entries, Entry{
		Handle:     h,
		Subscriber: sub,
		Mode:       modeOf(sub),
	})
	return h
}

// Unsubscribe removes the registration identified by h. It returns the removed
// subscriber and true, or nil and false if h was already removed.
func (r *Registry) Unsubscribe(h ports.SubscriptionHandle) (ports.Subscriber, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.Handle.Seq() == h.Seq() {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return e.Subscriber, true
		}
	}
	return nil, false
}

// UnsubscribeID removes the subscriber with the given ID.
func (r *Registry) UnsubscribeID(id string) (ports.Subscriber, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.Subscriber.ID() == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return e.Subscriber, true
		}
	}
	return nil, false
}

// Snapshot returns a point-in-time copy of the registrations.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Clear removes every registration and returns what was removed.
func (r *Registry) Clear() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.entries
	r.entries = nil
	return out
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IDs returns the subscriber IDs in delivery order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.Subscriber.ID()
	}
	return ids
}

func modeOf(sub ports.Subscriber) ports.InvokeMode {
	if m, ok := sub.(ports.ModalSubscriber); ok {
		return m.Mode()
	}
	return ports.InvokeBlocking
}
