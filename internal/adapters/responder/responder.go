// Package responder produces reply text for incoming messages. The strategy
// is chosen by configuration.
package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/brianly1003/wahub/internal/domain/ports"
)

// Providers.
const (
	ProviderRules  = "rules"
	ProviderMock   = "mock"
	ProviderGemini = "gemini"
)

// Config selects and configures a responder.
type Config struct {
	Provider  string
	RulesFile string
	Gemini    GeminiConfig
}

// New returns the responder named by cfg.Provider.
func New(ctx context.Context, cfg Config) (ports.Responder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderMock:
		return NewMockResponder(), nil
	case ProviderRules:
		return NewRulesResponder(cfg.RulesFile)
	case ProviderGemini:
		return NewGeminiResponder(ctx, cfg.Gemini)
	default:
		return nil, fmt.Errorf("unknown responder provider %q", cfg.Provider)
	}
}
