package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// ErrMissingAPIKey is returned when the Gemini provider has no API key.
var ErrMissingAPIKey = errors.New("gemini api key is not set")

// GeminiConfig configures the Gemini responder.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
}

// GeminiResponder generates replies with the Gemini API.
type GeminiResponder struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGeminiResponder creates a Gemini client.
func NewGeminiResponder(ctx context.Context, cfg GeminiConfig) (*GeminiResponder, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	log.Info().Str("model", cfg.Model).Msg("gemini responder ready")
	return &GeminiResponder{client: client, cfg: cfg}, nil
}

// Name returns "gemini".
func (g *GeminiResponder) Name() string {
	return ProviderGemini
}

// Respond asks the model for a reply to the prompt.
func (g *GeminiResponder) Respond(ctx context.Context, p ports.Prompt) (string, error) {
	gc := &genai.GenerateContentConfig{}
	if g.cfg.Temperature > 0 {
		gc.Temperature = genai.Ptr(g.cfg.Temperature)
	}
	if g.cfg.MaxTokens > 0 {
		gc.MaxOutputTokens = g.cfg.MaxTokens
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(BuildPrompt(p)), gc)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
