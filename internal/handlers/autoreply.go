package handlers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/brianly1003/wahub/internal/hub"
	"github.com/rs/zerolog/log"
)

// AutoReplyID is the subscriber ID of the AI auto-reply handler.
const AutoReplyID = "auto-reply"

// DefaultHistoryLimit is how many stored messages are loaded as context.
const DefaultHistoryLimit = 5

// AutoReplyStats are the auto-reply counters.
type AutoReplyStats struct {
	Replies  int64 `json:"replies"`
	Skipped  int64 `json:"skipped"`
	Failures int64 `json:"failures"`
}

// AutoReplyHandler asks a Responder for a reply to every incoming message and
// sends it back to the chat. It runs asynchronously since responders may call
// remote models.
type AutoReplyHandler struct {
	responder    ports.Responder
	sender       ports.Sender
	store        ports.MessageStore
	historyLimit int

	replies  atomic.Int64
	skipped  atomic.Int64
	failures atomic.Int64
}

// NewAutoReplyHandler creates the handler. store may be nil, in which case
// prompts carry no history.
func NewAutoReplyHandler(responder ports.Responder, sender ports.Sender, store ports.MessageStore, historyLimit int) *AutoReplyHandler {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &AutoReplyHandler{
		responder:    responder,
		sender:       sender,
		store:        store,
		historyLimit: historyLimit,
	}
}

// Subscriber returns the handler as an async new_message subscriber.
func (h *AutoReplyHandler) Subscriber() ports.Subscriber {
	return messageOnly(hub.NewAsyncCallback(AutoReplyID, h.Handle))
}

// Handle replies to one incoming message.
func (h *AutoReplyHandler) Handle(ctx context.Context, e events.Event) error {
	p := promptFromEvent(e)
	if isFromMe(e) || (p.Content == "" && p.MediaType == "") {
		h.skipped.Add(1)
		return nil
	}

	p.History = h.history(ctx, p.ChatJID, messageID(e))

	reply, err := h.responder.Respond(ctx, p)
	if err != nil {
		h.failures.Add(1)
		return fmt.Errorf("%s responder: %w", h.responder.Name(), err)
	}
	if reply == "" {
		h.skipped.Add(1)
		return nil
	}

	target := replyTarget(e)
	res, err := h.sender.Send(ctx, target, reply)
	if err != nil {
		h.failures.Add(1)
		return fmt.Errorf("send auto-reply: %w", err)
	}
	h.replies.Add(1)

	log.Info().
		Str("event_id", e.ID()).
		Str("chat_jid", target).
		Str("responder", h.responder.Name()).
		Str("status", res.Status).
		Msg("auto-reply sent")

	if h.store != nil {
		own := ports.StoredMessage{
			ChatJID:   target,
			Sender:    "me",
			Content:   reply,
			FromMe:    true,
			Timestamp: time.Now().UTC(),
		}
		if err := h.store.Save(ctx, own); err != nil {
			log.Warn().Err(err).Str("chat_jid", target).Msg("failed to record auto-reply")
		}
	}
	return nil
}

// history loads recent messages of the chat, leaving out the message being
// answered.
func (h *AutoReplyHandler) history(ctx context.Context, chatJID, currentID string) []ports.StoredMessage {
	if h.store == nil || chatJID == "" {
		return nil
	}
	msgs, err := h.store.Recent(ctx, chatJID, h.historyLimit)
	if err != nil {
		log.Warn().Err(err).Str("chat_jid", chatJID).Msg("failed to load conversation history")
		return nil
	}
	out := msgs[:0]
	for _, m := range msgs {
		if currentID != "" && m.ID == currentID {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Stats returns the current counters.
func (h *AutoReplyHandler) Stats() AutoReplyStats {
	return AutoReplyStats{
		Replies:  h.replies.Load(),
		Skipped:  h.skipped.Load(),
		Failures: h.failures.Load(),
	}
}
