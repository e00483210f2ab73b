package ports

import (
	"context"
	"time"
)

// SendResult is what the WhatsApp bridge reports for an outbound message.
type SendResult struct {
	Success bool   `json:"success"`
	Status  string `json:"message"`
}

// Sender delivers an outbound text message to a recipient through the bridge.
// Subscribers call it as a side effect; the hub never does.
type Sender interface {
	Send(ctx context.Context, recipient, text string) (SendResult, error)
}

// StoredMessage is one message kept in the history store.
type StoredMessage struct {
	ID        string    `json:"id"`
	ChatJID   string    `json:"chat_jid"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	MediaType string    `json:"media_type,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	ChatName  string    `json:"chat_name,omitempty"`
	FromMe    bool      `json:"is_from_me"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSummary describes one chat of the history store and its latest message.
type ChatSummary struct {
	ChatJID       string    `json:"chat_jid"`
	ChatName      string    `json:"chat_name,omitempty"`
	MessageCount  int       `json:"message_count"`
	LastSender    string    `json:"last_sender"`
	LastContent   string    `json:"last_content"`
	LastFromMe    bool      `json:"last_is_from_me"`
	LastTimestamp time.Time `json:"last_timestamp"`
}

// MessageStore persists messages for conversation context.
type MessageStore interface {
	// Save stores a message. Saving the same ID twice keeps the first copy.
	Save(ctx context.Context, msg StoredMessage) error

	// Recent returns up to limit messages of a chat, oldest first.
	// An empty chatJID returns messages across all chats.
	Recent(ctx context.Context, chatJID string, limit int) ([]StoredMessage, error)

	// Chats summarizes up to limit chats, most recently active first. A
	// non-empty chatJID restricts the result to that chat.
	Chats(ctx context.Context, chatJID string, limit int) ([]ChatSummary, error)

	// Close releases the store.
	Close() error
}

// Prompt is the input to a Responder.
type Prompt struct {
	Sender    string
	ChatJID   string
	Content   string
	MediaType string
	Filename  string
	History   []StoredMessage
}

// Responder produces a reply for an incoming message.
type Responder interface {
	// Name identifies the strategy (rules, mock, gemini).
	Name() string

	// Respond returns the reply text. An empty reply means "do not answer".
	Respond(ctx context.Context, p Prompt) (string, error)
}
