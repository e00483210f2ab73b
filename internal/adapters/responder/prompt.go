package responder

import (
	"fmt"
	"strings"

	"github.com/brianly1003/wahub/internal/domain/ports"
)

// contextMessages is how many history messages go into a prompt.
const contextMessages = 3

// BuildPrompt renders the instruction text sent to a language model.
func BuildPrompt(p ports.Prompt) string {
	name := p.Sender
	if name == "" {
		name = p.ChatJID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful WhatsApp assistant responding to a message from %s (%s).\n", name, p.Sender)
	b.WriteString("\nRECENT CONVERSATION CONTEXT:\n")

	history := p.History
	if len(history) > contextMessages {
		history = history[len(history)-contextMessages:]
	}
	for _, m := range history {
		who := name
		if m.FromMe {
			who = "You"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, m.Content)
	}

	media := p.MediaType
	if media == "" {
		media = "text"
	}
	b.WriteString("\nCURRENT MESSAGE:\n")
	fmt.Fprintf(&b, "Content: %s\n", p.Content)
	fmt.Fprintf(&b, "Media type: %s\n", media)

	b.WriteString(`
INSTRUCTIONS:
- Generate a helpful, natural response
- Keep it conversational and concise (under 200 characters)
- If it's a greeting, respond warmly
- If it's a question, try to help or ask for clarification
- If it's media, acknowledge it appropriately
- Use the conversation context to make responses more relevant
- Be friendly but professional`)

	return b.String()
}
