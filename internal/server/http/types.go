package http

import "github.com/brianly1003/wahub/internal/domain/ports"

// NotificationRequest is the body accepted by the ingestion endpoint. Any
// other scalar fields are carried into the event payload.
type NotificationRequest struct {
	Type      string `json:"type" example:"new_message"`
	MessageID string `json:"message_id,omitempty" example:"3EB0C767D26A1D8E"`
	ChatJID   string `json:"chat_jid,omitempty" example:"15551234567@s.whatsapp.net"`
	Sender    string `json:"sender" example:"15551234567"`
	Content   string `json:"content,omitempty" example:"hello"`
	Timestamp string `json:"timestamp,omitempty" example:"2026-01-15T10:30:00Z"`
	MediaType string `json:"media_type,omitempty" example:"image"`
	Filename  string `json:"filename,omitempty" example:"photo.jpg"`
	ChatName  string `json:"chat_name,omitempty" example:"Alice"`
}

// ResultResponse is the {success, message} envelope used by the write
// endpoints.
type ResultResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Notification processed successfully"`
	EventID string `json:"event_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	Code    string `json:"code,omitempty" example:"MALFORMED_EVENT"`
}

// SendRequest is the body of POST /api/messages/send.
type SendRequest struct {
	Recipient string `json:"recipient" example:"15551234567@s.whatsapp.net"`
	Message   string `json:"message" example:"On my way"`
}

// MessagesResponse is the body of GET /api/messages.
type MessagesResponse struct {
	Success  bool                  `json:"success" example:"true"`
	Messages []ports.StoredMessage `json:"messages"`
	Count    int                   `json:"count" example:"2"`
}

// ChatsResponse is the body of GET /api/chats.
type ChatsResponse struct {
	Success bool                `json:"success" example:"true"`
	Chats   []ports.ChatSummary `json:"chats"`
	Count   int                 `json:"count" example:"1"`
}

// ChatResponse is the body of GET /api/chats/{chat_jid}.
type ChatResponse struct {
	Success bool              `json:"success" example:"true"`
	Chat    ports.ChatSummary `json:"chat"`
}

// InfoResponse is the body of GET /.
type InfoResponse struct {
	Name      string            `json:"name" example:"wahub"`
	Version   string            `json:"version" example:"1.0.0"`
	Endpoints map[string]string `json:"endpoints"`
}
