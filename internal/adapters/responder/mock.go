package responder

import (
	"context"
	"strings"

	"github.com/brianly1003/wahub/internal/domain/ports"
)

// MockResponder returns canned answers. It needs no network access and is
// the default provider.
type MockResponder struct{}

// NewMockResponder creates a mock responder.
func NewMockResponder() *MockResponder {
	return &MockResponder{}
}

// Name returns "mock".
func (MockResponder) Name() string {
	return ProviderMock
}

// Respond picks a canned answer from the message content.
func (MockResponder) Respond(_ context.Context, p ports.Prompt) (string, error) {
	content := strings.ToLower(p.Content)
	switch {
	case p.MediaType != "" && content == "":
		return "Thanks for sharing that " + p.MediaType + "!", nil
	case strings.Contains(content, "hello") || strings.Contains(content, "hi"):
		return "Hello! How can I help you today?", nil
	case strings.Contains(content, "how are you"):
		return "I'm doing well, thank you for asking! How are you?", nil
	case strings.Contains(content, "thank"):
		return "You're welcome! Is there anything else I can help you with?", nil
	case strings.Contains(content, "bye") || strings.Contains(content, "goodbye"):
		return "Goodbye! Have a great day!", nil
	default:
		return "Thank you for your message! I'm here to help if you need anything.", nil
	}
}
