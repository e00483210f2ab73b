// Package handlers holds the in-process subscribers that react to incoming
// WhatsApp messages: the keyword bot, the AI auto-reply and the history
// recorder.
package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/brianly1003/wahub/internal/hub"
)

// keyFromMe marks messages the account sent itself.
const keyFromMe = "is_from_me"

// replyTarget is where a reply to e goes: the chat, or the sender for
// notifications without a chat.
func replyTarget(e events.Event) string {
	if jid := e.Get(events.KeyChatJID); jid != "" {
		return jid
	}
	return e.Get(events.KeySender)
}

func isFromMe(e events.Event) bool {
	v, err := strconv.ParseBool(e.Get(keyFromMe))
	return err == nil && v
}

func promptFromEvent(e events.Event) ports.Prompt {
	return ports.Prompt{
		Sender:    e.Get(events.KeySender),
		ChatJID:   e.Get(events.KeyChatJID),
		Content:   e.Get(events.KeyContent),
		MediaType: e.Get(events.KeyMediaType),
		Filename:  e.Get(events.KeyFilename),
	}
}

// messageID is the bridge's message id, or the event id when the
// notification carried none.
func messageID(e events.Event) string {
	if id := e.Get(events.KeyMessageID); id != "" {
		return id
	}
	return e.ID()
}

func storedFromEvent(e events.Event) ports.StoredMessage {
	return ports.StoredMessage{
		ID:        messageID(e),
		ChatJID:   e.Get(events.KeyChatJID),
		Sender:    e.Get(events.KeySender),
		Content:   e.Get(events.KeyContent),
		MediaType: e.Get(events.KeyMediaType),
		Filename:  e.Get(events.KeyFilename),
		ChatName:  e.Get(events.KeyChatName),
		FromMe:    isFromMe(e),
		Timestamp: parseTimestamp(e.Get(events.KeyTimestamp), e.Timestamp()),
	}
}

// parseTimestamp accepts RFC 3339, "2006-01-02 15:04:05" and unix seconds.
func parseTimestamp(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC()
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Unix(0, int64(secs*float64(time.Second))).UTC()
	}
	return fallback
}

// messageOnly wraps a callback so it only sees new_message events.
func messageOnly(sub ports.Subscriber) *hub.FilteredSubscriber {
	return hub.NewFilteredSubscriber(sub, events.EventTypeNewMessage)
}
