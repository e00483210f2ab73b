// Package sse streams hub events to Server-Sent Events clients.
package sse

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/brianly1003/wahub/internal/clock"
	"github.com/brianly1003/wahub/internal/domain"
	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/brianly1003/wahub/internal/sync"
	"github.com/rs/zerolog/log"
)

// Defaults for Options.
const (
	DefaultQueueSize         = 64
	DefaultKeepAliveInterval = 30 * time.Second
)

// State is the lifecycle state of a Channel.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Registrar is the part of the hub a Channel registers with.
type Registrar interface {
	Subscribe(sub ports.Subscriber) ports.SubscriptionHandle
	Unsubscribe(h ports.SubscriptionHandle) bool
}

// Options configures a Channel.
type Options struct {
	// QueueSize bounds the outbound queue. When full the oldest event is
	// dropped.
	QueueSize int

	// KeepAlive is how long the channel may stay idle before it writes a
	// keepalive event.
	KeepAlive time.Duration

	// Clock drives the keepalive timer.
	Clock clock.Clock
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = DefaultKeepAliveInterval
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	return o
}

// Channel is one SSE client connection registered with the hub as a
// subscriber. Deliver only enqueues; Run owns the writer.
type Channel struct {
	id    string
	w     io.Writer
	flush func()
	opts  Options

	state atomic.Int32

	mu     sync.Mutex
	queue  []events.Event
	reg    Registrar
	handle ports.SubscriptionHandle

	notify chan struct{}
	done   chan struct{}

	sent    atomic.Int64
	dropped atomic.Int64
}

// NewChannel creates a channel writing SSE frames to w. flush is called after
// every frame and may be nil.
func NewChannel(id string, w io.Writer, flush func(), opts Options) *Channel {
	opts = opts.withDefaults()
	if flush == nil {
		flush = func() {}
	}
	return &Channel{
		id:     id,
		w:      w,
		flush:  flush,
		opts:   opts,
		queue:  make([]events.Event, 0, opts.QueueSize),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ID returns the client ID.
func (c *Channel) ID() string {
	return c.id
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Sent returns the number of frames written, keepalives included.
func (c *Channel) Sent() int64 {
	return c.sent.Load()
}

// Dropped returns the number of events evicted from a full queue.
func (c *Channel) Dropped() int64 {
	return c.dropped.Load()
}

// Register subscribes the channel with reg and remembers the handle so that
// closing the channel removes it again.
func (c *Channel) Register(reg Registrar) ports.SubscriptionHandle {
	h := reg.Subscribe(c)
	c.mu.Lock()
	c.reg = reg
	c.handle = h
	c.mu.Unlock()
	return h
}

// Deliver enqueues an event. When the queue is full the oldest queued event
// is evicted and ErrEventDropped is returned.
func (c *Channel) Deliver(_ context.Context, event events.Event) error {
	if c.State() == StateClosed {
		return domain.NewConnectionClosedError(c.id, nil)
	}

	c.mu.Lock()
	var err error
	if len(c.queue) >= c.opts.QueueSize {
		copy(c.queue, c.queue[1:])
		c.queue = c.queue[:len(c.queue)-1]
		c.dropped.Add(1)
		err = domain.ErrEventDropped
	}
	c.queue = append(c.queue, event)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return err
}

// Close moves the channel to CLOSED, releases its queue and removes it from
// the registrar. Only the first call has any effect.
func (c *Channel) Close() error {
	for {
		s := c.state.Load()
		if State(s) == StateClosed {
			return nil
		}
		if c.state.CompareAndSwap(s, int32(StateClosed)) {
			break
		}
	}

	close(c.done)

	c.mu.Lock()
	c.queue = nil
	reg, handle := c.reg, c.handle
	c.mu.Unlock()

	if reg != nil {
		reg.Unsubscribe(handle)
	}
	return nil
}

// Done returns a channel that's closed when the connection is closed.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Run opens the connection and writes frames until ctx ends, the channel is
// closed, or a write fails. It writes a connected event first, then queued
// events in order, and a keepalive event whenever the connection has been
// idle for the keepalive interval.
func (c *Channel) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		return domain.NewConnectionClosedError(c.id, nil)
	}
	defer c.Close()

	if err := c.writeEvent(events.NewConnectedEvent(c.id, c.opts.Clock.Now())); err != nil {
		return err
	}

	timer := c.opts.Clock.NewTimer(c.opts.KeepAlive)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("client_id", c.id).Msg("sse client disconnected")
			return nil

		case <-c.done:
			return nil

		case <-c.notify:
			for _, e := range c.drain() {
				if err := c.writeEvent(e); err != nil {
					return err
				}
			}
			resetTimer(timer, c.opts.KeepAlive)

		case <-timer.C():
			if err := c.writeEvent(events.NewKeepAliveEvent(c.opts.Clock.Now())); err != nil {
				return err
			}
			log.Trace().Str("client_id", c.id).Msg("sse keepalive sent")
			resetTimer(timer, c.opts.KeepAlive)
		}
	}
}

func (c *Channel) drain() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	out := make([]events.Event, len(c.queue))
	copy(out, c.queue)
	c.queue = c.queue[:0]
	return out
}

func (c *Channel) writeEvent(e events.Event) error {
	frame, err := Frame(e)
	if err != nil {
		log.Warn().Err(err).Str("client_id", c.id).Str("event_id", e.ID()).Msg("failed to encode sse frame")
		return nil
	}
	if _, err := c.w.Write(frame); err != nil {
		return domain.NewConnectionClosedError(c.id, err)
	}
	c.flush()
	c.sent.Add(1)
	return nil
}

// Frame renders an event as an SSE frame: "event: <type>\ndata: <json>\n\n".
// The data line is the event payload.
func Frame(e events.Event) ([]byte, error) {
	data, err := events.PayloadJSON(e)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type(), data)), nil
}

func resetTimer(t clock.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C():
		default:
		}
	}
	t.Reset(d)
}

var _ ports.Subscriber = (*Channel)(nil)
