package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"

	// LLM Provider integrations - easily switchable
	gemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"
)

// Config represents the configuration for the LLM integration
type Config struct {
	Provider string `json:"provider"` // only "gemini" for now
	Model    string `json:"model"`
}

// Service wraps chat model access. Because API keys rotate per call, chat
// models are built lazily per credential secret and reused afterwards.
type Service struct {
	config Config

	mu     sync.Mutex
	models map[string]model.BaseChatModel // keyed by credential secret
}

// NewService creates a new LLM service instance
func NewService(config Config) *Service {
	if config.Provider == "" {
		config.Provider = "gemini"
	}
	return &Service{config: config, models: make(map[string]model.BaseChatModel)}
}

// Generate formats the template with vars and runs one model round trip
// using the given credential secret. Returns the raw response text.
func (s *Service) Generate(ctx context.Context, secret string, template prompt.ChatTemplate, vars map[string]any) (string, error) {
	chatModel, err := s.modelFor(ctx, secret)
	if err != nil {
		return "", err
	}

	messages, err := template.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("failed to format prompt: %w", err)
	}

	response, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("model generation failed: %w", err)
	}
	if response == nil || response.Content == "" {
		return "", fmt.Errorf("model returned empty response")
	}
	return response.Content, nil
}

// modelFor returns the cached chat model for a secret, building it on first use.
func (s *Service) modelFor(ctx context.Context, secret string) (model.BaseChatModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.models[secret]; ok {
		return m, nil
	}

	m, err := s.buildChatModel(ctx, secret)
	if err != nil {
		return nil, err
	}
	s.models[secret] = m
	return m, nil
}

func (s *Service) buildChatModel(ctx context.Context, secret string) (model.BaseChatModel, error) {
	switch s.config.Provider {
	case "gemini":
		return s.buildGeminiModel(ctx, secret)
	default:
		return nil, fmt.Errorf("unsupported provider: %s. Supported: gemini", s.config.Provider)
	}
}

// buildGeminiModel sets up Google Gemini as the LLM provider
func (s *Service) buildGeminiModel(ctx context.Context, secret string) (model.BaseChatModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: secret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	geminiModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  s.config.Model, // e.g., "gemini-2.0-flash"
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini chat model: %w", err)
	}
	return geminiModel, nil
}
