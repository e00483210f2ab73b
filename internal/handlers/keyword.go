package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/brianly1003/wahub/internal/hub"
	"github.com/rs/zerolog/log"
)

// KeywordID is the subscriber ID of the keyword bot.
const KeywordID = "keyword-bot"

const helpText = `Available commands:
/help - Show this help message
/status - Show bot status
/stats - Show message statistics
/time - Show current time
/block [jid] - Block a sender
/unblock [jid] - Unblock a sender`

// KeywordConfig configures the keyword bot.
type KeywordConfig struct {
	// Blocked senders are ignored.
	Blocked []string
	// Important senders are logged with a marker.
	Important []string
	// ForwardTo receives a copy of urgent messages. Empty disables forwarding.
	ForwardTo string
}

// KeywordStats are the keyword bot counters.
type KeywordStats struct {
	Processed int64 `json:"processed"`
	Replies   int64 `json:"replies"`
	Blocked   int   `json:"blocked_senders"`
	Important int   `json:"important_contacts"`
}

// KeywordHandler answers commands and keyword messages with a rule-based
// responder and sends the replies through the bridge.
type KeywordHandler struct {
	rules     ports.Responder
	sender    ports.Sender
	forwardTo string
	now       func() time.Time

	mu        sync.RWMutex
	blocked   map[string]bool
	important map[string]bool

	processed atomic.Int64
	replies   atomic.Int64
}

// NewKeywordHandler creates the keyword bot.
func NewKeywordHandler(rules ports.Responder, sender ports.Sender, cfg KeywordConfig) *KeywordHandler {
	h := &KeywordHandler{
		rules:     rules,
		sender:    sender,
		forwardTo: cfg.ForwardTo,
		now:       time.Now,
		blocked:   make(map[string]bool),
		important: make(map[string]bool),
	}
	for _, s := range cfg.Blocked {
		h.blocked[s] = true
	}
	for _, s := range cfg.Important {
		h.important[s] = true
	}
	return h
}

// Subscriber returns the handler as a blocking new_message subscriber.
func (h *KeywordHandler) Subscriber() ports.Subscriber {
	return messageOnly(hub.NewBlockingCallback(KeywordID, h.Handle))
}

// Handle reacts to one incoming message.
func (h *KeywordHandler) Handle(ctx context.Context, e events.Event) error {
	sender := e.Get(events.KeySender)
	content := strings.TrimSpace(e.Get(events.KeyContent))

	if isFromMe(e) {
		return nil
	}
	if h.IsBlocked(sender) {
		log.Debug().Str("sender", sender).Msg("ignoring message from blocked sender")
		return nil
	}
	h.processed.Add(1)

	if h.isImportant(sender) {
		log.Warn().
			Str("sender", sender).
			Str("chat_jid", e.Get(events.KeyChatJID)).
			Str("content", content).
			Msg("IMPORTANT MESSAGE")
	}

	if strings.Contains(strings.ToLower(content), "urgent") {
		if err := h.forwardUrgent(ctx, sender, content); err != nil {
			log.Warn().Err(err).Str("sender", sender).Msg("failed to forward urgent message")
		}
	}

	var reply string
	if strings.HasPrefix(content, "/") && e.Get(events.KeyMediaType) == "" {
		reply = h.command(sender, content)
	} else {
		var err error
		reply, err = h.rules.Respond(ctx, promptFromEvent(e))
		if err != nil {
			return fmt.Errorf("keyword reply: %w", err)
		}
	}
	if reply == "" {
		return nil
	}

	if _, err := h.sender.Send(ctx, replyTarget(e), reply); err != nil {
		return fmt.Errorf("send keyword reply: %w", err)
	}
	h.replies.Add(1)
	log.Info().Str("sender", sender).Str("event_id", e.ID()).Msg("keyword reply sent")
	return nil
}

func (h *KeywordHandler) forwardUrgent(ctx context.Context, sender, content string) error {
	text := fmt.Sprintf("URGENT from %s: %s", sender, content)
	if h.forwardTo == "" {
		log.Warn().Str("sender", sender).Msg(text)
		return nil
	}
	_, err := h.sender.Send(ctx, h.forwardTo, text)
	return err
}

func (h *KeywordHandler) command(sender, content string) string {
	fields := strings.Fields(content)
	cmd := strings.ToLower(fields[0])
	target := sender
	if len(fields) > 1 {
		target = fields[1]
	}

	switch cmd {
	case "/help":
		return helpText
	case "/status":
		return fmt.Sprintf("Bot Status: Online\nMessages processed: %d\nAuto-reply: Enabled", h.processed.Load())
	case "/stats":
		st := h.Stats()
		return fmt.Sprintf("Message Statistics:\nTotal processed: %d\nBlocked senders: %d\nImportant contacts: %d",
			st.Processed, st.Blocked, st.Important)
	case "/time":
		return "Current time: " + h.now().Format("2006-01-02 15:04:05")
	case "/block":
		h.Block(target)
		return fmt.Sprintf("Sender %s has been blocked.", target)
	case "/unblock":
		h.Unblock(target)
		return fmt.Sprintf("Sender %s has been unblocked.", target)
	default:
		return fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)
	}
}

// Block ignores future messages from sender.
func (h *KeywordHandler) Block(sender string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocked[sender] = true
}

// Unblock removes sender from the blocked list.
func (h *KeywordHandler) Unblock(sender string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.blocked, sender)
}

// IsBlocked reports whether sender is blocked.
func (h *KeywordHandler) IsBlocked(sender string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.blocked[sender]
}

// BlockedSenders returns the blocked senders, sorted.
func (h *KeywordHandler) BlockedSenders() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.blocked))
	for s := range h.blocked {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (h *KeywordHandler) isImportant(sender string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.important[sender]
}

// Stats returns the current counters.
func (h *KeywordHandler) Stats() KeywordStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return KeywordStats{
		Processed: h.processed.Load(),
		Replies:   h.replies.Load(),
		Blocked:   len(h.blocked),
		Important: len(h.important),
	}
}
