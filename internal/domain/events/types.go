// Package events defines the event model used by wahub.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event.
type EventType string

const (
	// Inbound bridge events
	EventTypeNewMessage EventType = "new_message"

	// Outbound events
	EventTypeMessageSent EventType = "message_sent"

	// Stream control events (never published through the hub)
	EventTypeConnected EventType = "connected"
	EventTypeKeepAlive EventType = "keepalive"

	// Error events
	EventTypeError EventType = "error"
)

// Well-known payload keys of a new_message notification.
const (
	KeyMessageID = "message_id"
	KeyChatJID   = "chat_jid"
	KeySender    = "sender"
	KeyContent   = "content"
	KeyTimestamp = "timestamp"
	KeyMediaType = "media_type"
	KeyFilename  = "filename"
	KeyChatName  = "chat_name"
)

// MessageKeys lists the payload keys every new_message event carries.
// Absent keys are present with an empty value.
var MessageKeys = []string{
	KeyMessageID,
	KeyChatJID,
	KeySender,
	KeyContent,
	KeyTimestamp,
	KeyMediaType,
	KeyFilename,
	KeyChatName,
}

// Event is the read-only view subscribers receive.
type Event interface {
	// ID returns the unique event identifier.
	ID() string

	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event was created.
	Timestamp() time.Time

	// Get returns the payload value for key, or "" when absent.
	Get(key string) string

	// Payload returns a copy of the payload.
	Payload() map[string]string

	// ToJSON serializes the event to JSON.
	ToJSON() ([]byte, error)
}

// BaseEvent is the immutable Event implementation. Its fields are only set
// by the constructors below.
type BaseEvent struct {
	id        string
	eventType EventType
	eventTime time.Time
	payload   map[string]string
}

// wireEvent is the JSON form of an event.
type wireEvent struct {
	ID        string            `json:"id"`
	EventType EventType         `json:"event"`
	EventTime time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// NewEvent creates a new event with the given type and payload.
// The payload is copied.
func NewEvent(eventType EventType, payload map[string]string) *BaseEvent {
	return NewEventAt(eventType, payload, time.Now().UTC())
}

// NewEventAt creates a new event stamped with the given time.
func NewEventAt(eventType EventType, payload map[string]string, at time.Time) *BaseEvent {
	cp := make(map[string]string, len(payload))
	for k, v := range payload {
		cp[k] = v
	}
	return &BaseEvent{
		id:        uuid.New().String(),
		eventType: eventType,
		eventTime: at,
		payload:   cp,
	}
}

// NewMessageEvent creates a new_message event. Missing well-known keys are
// filled with empty strings.
func NewMessageEvent(payload map[string]string) *BaseEvent {
	full := make(map[string]string, len(payload)+len(MessageKeys))
	for _, k := range MessageKeys {
		full[k] = ""
	}
	for k, v := range payload {
		full[k] = v
	}
	return NewEvent(EventTypeNewMessage, full)
}

// ID returns the unique event identifier.
func (e *BaseEvent) ID() string {
	return e.id
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.eventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.eventTime
}

// Get returns the payload value for key.
func (e *BaseEvent) Get(key string) string {
	return e.payload[key]
}

// Payload returns a copy of the payload.
func (e *BaseEvent) Payload() map[string]string {
	cp := make(map[string]string, len(e.payload))
	for k, v := range e.payload {
		cp[k] = v
	}
	return cp
}

// ToJSON serializes the event to JSON.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		ID:        e.id,
		EventType: e.eventType,
		EventTime: e.eventTime,
		Payload:   e.payload,
	})
}

// PayloadJSON serializes only the payload. This is the SSE data line.
func PayloadJSON(e Event) ([]byte, error) {
	return json.Marshal(e.Payload())
}

// --- Message helpers ---

// Sender returns the sender of a message event.
func Sender(e Event) string {
	return e.Get(KeySender)
}

// ChatJID returns the chat the event belongs to.
func ChatJID(e Event) string {
	return e.Get(KeyChatJID)
}

// Content returns the text content of a message event.
func Content(e Event) string {
	return e.Get(KeyContent)
}

// MediaType returns the media type of a message event, empty for text.
func MediaType(e Event) string {
	return e.Get(KeyMediaType)
}

// --- Synthetic stream events ---

// NewConnectedEvent creates the event sent to a stream client once it is open.
func NewConnectedEvent(clientID string, at time.Time) *BaseEvent {
	return NewEventAt(EventTypeConnected, map[string]string{
		"client_id": clientID,
		"message":   "Connected to wahub event stream",
		"timestamp": at.UTC().Format(time.RFC3339Nano),
	}, at)
}

// NewKeepAliveEvent creates the idle keepalive event.
func NewKeepAliveEvent(at time.Time) *BaseEvent {
	return NewEventAt(EventTypeKeepAlive, map[string]string{
		"timestamp": at.UTC().Format(time.RFC3339Nano),
	}, at)
}

// NewMessageSentEvent creates the event broadcast after an outbound send.
func NewMessageSentEvent(recipient string, success bool, status string) *BaseEvent {
	ok := "false"
	if success {
		ok = "true"
	}
	return NewEvent(EventTypeMessageSent, map[string]string{
		"recipient": recipient,
		"success":   ok,
		"message":   status,
	})
}
