package websocket

import (
	"context"

	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
)

// ClientSubscriber wraps a WebSocket client as a hub subscriber.
type ClientSubscriber struct {
	client *Client
}

// NewClientSubscriber creates a subscriber from a WebSocket client.
func NewClientSubscriber(client *Client) *ClientSubscriber {
	return &ClientSubscriber{client: client}
}

// ID returns the subscriber's unique identifier.
func (s *ClientSubscriber) ID() string {
	return s.client.ID()
}

// Deliver serializes the event and queues it on the client.
func (s *ClientSubscriber) Deliver(_ context.Context, event events.Event) error {
	data, err := event.ToJSON()
	if err != nil {
		return err
	}
	return s.client.Send(data)
}

// Close closes the client.
func (s *ClientSubscriber) Close() error {
	s.client.Close()
	return nil
}

// Done returns a channel that's closed when the client is done.
func (s *ClientSubscriber) Done() <-chan struct{} {
	return s.client.Done()
}

var _ ports.Subscriber = (*ClientSubscriber)(nil)
