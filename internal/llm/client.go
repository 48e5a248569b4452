package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Turn es un mensaje de la ventana de conversacion enviada al modelo.
type Turn struct {
	Role    string
	Content string
}

// Completer es la capacidad externa de completado: complete(systemContext, window) -> text.
type Completer interface {
	Complete(ctx context.Context, system string, window []Turn) (string, error)
}

var (
	ErrEmptyResponse = errors.New("llm empty response")
	ErrNotConfigured = errors.New("llm client not configured")
)

// Options agrupa los parametros del cliente OpenAI-compatible.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIClient implementa Completer usando la API de chat completions.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewOpenAIClient construye el cliente; devuelve nil si no hay API key configurada.
func NewOpenAIClient(opts Options, logger *zap.Logger) *OpenAIClient {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	clientCfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	model := opts.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		logger:      logger,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, system string, window []Turn) (string, error) {
	if c == nil || c.client == nil {
		return "", ErrNotConfigured
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(window)+1)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, t := range window {
		messages = append(messages, openai.ChatCompletionMessage{Role: toOpenAIRole(t.Role), Content: t.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			c.logger.Warn("llm api error", zap.Int("status", apiErr.HTTPStatusCode), zap.String("message", apiErr.Message))
		}
		return "", fmt.Errorf("create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func toOpenAIRole(role string) string {
	switch role {
	case "assistant":
		return openai.ChatMessageRoleAssistant
	case "system":
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
