// Package ingest turns raw bridge notifications into hub events.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/brianly1003/wahub/internal/domain"
	"github.com/brianly1003/wahub/internal/domain/events"
)

// Discriminator and identifier fields of a notification. The first present
// key of each list wins.
var (
	typeKeys       = []string{"type", "event_type"}
	identifierKeys = []string{events.KeySender, events.KeyChatJID}
)

// Normalize parses a JSON notification body into an Event.
//
// The body must be a JSON object carrying a discriminator ("type" or
// "event_type") and a sender or chat identifier. Other well-known fields
// default to "" when absent. Scalars are stringified and nested values are
// ignored.
func Normalize(raw []byte) (events.Event, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, domain.NewMalformedEventError("empty body", nil)
	}
	if raw[0] != '{' {
		return nil, domain.NewMalformedEventError("body is not a JSON object", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, domain.NewMalformedEventError("invalid JSON", err)
	}
	if dec.More() {
		return nil, domain.NewMalformedEventError("trailing data after JSON object", nil)
	}
	return NormalizeMap(fields)
}

// NormalizeMap builds an Event from already decoded fields.
func NormalizeMap(fields map[string]any) (events.Event, error) {
	if fields == nil {
		return nil, domain.NewMalformedEventError("body is not a JSON object", nil)
	}

	payload := make(map[string]string, len(fields)+len(events.MessageKeys))
	for _, k := range events.MessageKeys {
		payload[k] = ""
	}
	for k, v := range fields {
		if isTypeKey(k) {
			continue
		}
		if s, ok := scalarString(v); ok {
			payload[k] = s
		}
	}

	eventType := firstNonEmpty(fields, typeKeys)
	if eventType == "" {
		return nil, domain.NewMalformedEventError("missing event type", nil)
	}

	if firstNonEmpty(fields, identifierKeys) == "" {
		return nil, domain.NewMalformedEventError("missing sender or chat_jid", nil)
	}

	// Replies go to chat_jid; fall back to the sender and vice versa.
	if payload[events.KeyChatJID] == "" {
		payload[events.KeyChatJID] = payload[events.KeySender]
	}
	if payload[events.KeySender] == "" {
		payload[events.KeySender] = payload[events.KeyChatJID]
	}

	return events.NewEvent(events.EventType(eventType), payload), nil
}

// IsMalformed reports whether err came from Normalize rejecting its input.
func IsMalformed(err error) bool {
	var me *domain.MalformedEventError
	return errors.As(err, &me)
}

func isTypeKey(k string) bool {
	for _, t := range typeKeys {
		if k == t {
			return true
		}
	}
	return false
}

func firstNonEmpty(fields map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := scalarString(fields[k]); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// scalarString renders a decoded JSON scalar. Objects and arrays are
// rejected. null renders as "".
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}
