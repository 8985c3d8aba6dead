// Package llm provides chat-completion clients used to generate answers.
package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/insightbot/internal/config"
)

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator turns a chat transcript into the assistant's next message.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
	Model() string
	Close() error
}

// New creates the generator selected by cfg.Provider.
func New(cfg config.GenerationConfig, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		g   Generator
		err error
	)
	switch cfg.Provider {
	case "openai", "":
		g, err = NewOpenAIClient(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	case "ollama":
		g, err = NewOllamaClient(OllamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	default:
		logger.Error("unknown generation provider", zap.String("provider", cfg.Provider))
		return nil, fmt.Errorf("unknown generation provider: %s (supported: openai, ollama)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}
