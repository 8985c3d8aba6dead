package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig configures the Ollama chat client.
type OllamaConfig struct {
	BaseURL     string // e.g. http://localhost:11434
	Model       string
	Token       string // bearer token for hosted Ollama; empty means no auth
	Temperature float64
	Timeout     time.Duration
}

// OllamaClient calls the Ollama /api/chat endpoint without streaming.
type OllamaClient struct {
	baseURL     string
	model       string
	token       string
	temperature float64
	client      *http.Client
}

// NewOllamaClient creates an Ollama chat client.
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.Model == "" {
		return nil, errors.New("ollama chat: model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &OllamaClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		token:       cfg.Token,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Generate sends the messages and returns the complete response.
func (o *OllamaClient) Generate(ctx context.Context, messages []Message) (string, error) {
	payload := map[string]any{
		"model":    o.model,
		"messages": messages,
		"stream":   false,
		"options":  map[string]any{"temperature": o.temperature},
	}
	var resp struct {
		Message Message `json:"message"`
	}
	if err := postJSON(ctx, o.client, o.baseURL+"/api/chat", o.token, payload, &resp); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	if resp.Message.Content == "" {
		return "", errors.New("ollama chat: empty response")
	}
	return resp.Message.Content, nil
}

// Model returns the chat model identifier.
func (o *OllamaClient) Model() string {
	return o.model
}

// Close releases idle connections.
func (o *OllamaClient) Close() error {
	o.client.CloseIdleConnections()
	return nil
}
