package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBaseEvent_Type(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
	}{
		{"new_message", EventTypeNewMessage},
		{"message_sent", EventTypeMessageSent},
		{"connected", EventTypeConnected},
		{"keepalive", EventTypeKeepAlive},
		{"error", EventTypeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewEvent(tt.eventType, nil)

			if event.Type() != tt.eventType {
				t.Errorf("Type() = %v, want %v", event.Type(), tt.eventType)
			}
			if event.ID() == "" {
				t.Error("ID() should not be empty")
			}
		})
	}
}

func TestBaseEvent_Timestamp(t *testing.T) {
	before := time.Now().UTC()
	event := NewEvent(EventTypeNewMessage, nil)
	after := time.Now().UTC()

	ts := event.Timestamp()

	if ts.Before(before) {
		t.Errorf("Timestamp() = %v, should be >= %v", ts, before)
	}
	if ts.After(after) {
		t.Errorf("Timestamp() = %v, should be <= %v", ts, after)
	}
}

func TestBaseEvent_Immutable(t *testing.T) {
	src := map[string]string{KeySender: "123"}
	event := NewEvent(EventTypeNewMessage, src)

	// Mutating the source map must not leak into the event.
	src[KeySender] = "mutated"
	if got := event.Get(KeySender); got != "123" {
		t.Errorf("Get(sender) = %q after source mutation, want %q", got, "123")
	}

	// Mutating the returned payload copy must not leak either.
	p := event.Payload()
	p[KeySender] = "mutated"
	if got := event.Get(KeySender); got != "123" {
		t.Errorf("Get(sender) = %q after payload mutation, want %q", got, "123")
	}
}

func TestBaseEvent_GetMissingKey(t *testing.T) {
	event := NewEvent(EventTypeNewMessage, nil)
	if got := event.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q, want empty", got)
	}
}

func TestNewMessageEvent_FillsKnownKeys(t *testing.T) {
	event := NewMessageEvent(map[string]string{KeySender: "555", KeyContent: "hello"})

	payload := event.Payload()
	for _, k := range MessageKeys {
		if _, ok := payload[k]; !ok {
			t.Errorf("payload missing key %q", k)
		}
	}
	if Sender(event) != "555" || Content(event) != "hello" {
		t.Errorf("unexpected payload: %v", payload)
	}
	if MediaType(event) != "" {
		t.Errorf("MediaType() = %q, want empty", MediaType(event))
	}
}

func TestBaseEvent_ToJSON(t *testing.T) {
	event := NewEvent(EventTypeNewMessage, map[string]string{"key": "value"})

	jsonBytes, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if parsed["event"] != "new_message" {
		t.Errorf("event = %v, want new_message", parsed["event"])
	}
	if parsed["id"] != event.ID() {
		t.Errorf("id = %v, want %v", parsed["id"], event.ID())
	}
	payload, ok := parsed["payload"].(map[string]interface{})
	if !ok {
		t.Fatalf("payload is not an object: %T", parsed["payload"])
	}
	if payload["key"] != "value" {
		t.Errorf("payload.key = %v, want value", payload["key"])
	}
}

func TestNewKeepAliveEvent(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	event := NewKeepAliveEvent(at)

	if event.Type() != EventTypeKeepAlive {
		t.Errorf("Type() = %v, want keepalive", event.Type())
	}
	if !event.Timestamp().Equal(at) {
		t.Errorf("Timestamp() = %v, want %v", event.Timestamp(), at)
	}
	if event.Get("timestamp") != "2026-01-02T03:04:05Z" {
		t.Errorf("timestamp payload = %q", event.Get("timestamp"))
	}
}

func TestNewMessageSentEvent(t *testing.T) {
	event := NewMessageSentEvent("555@s.whatsapp.net", true, "sent")
	if event.Get("success") != "true" {
		t.Errorf("success = %q, want true", event.Get("success"))
	}
	if event.Get("recipient") != "555@s.whatsapp.net" {
		t.Errorf("recipient = %q", event.Get("recipient"))
	}
}
