package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-form-rag/internal/config"
)

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client calls a langchaingo chat model with fixed call options.
type Client struct {
	llm         llms.Model
	model       string
	temperature float64
}

// NewClient creates the chat model configured by cfg.Provider.
func NewClient(cfg *config.LLMConfig) (*Client, error) {
	log.Debug().Str("provider", cfg.Provider).Str("model", cfg.Model).Str("base_url", cfg.BaseURL).Msg("Creating llm client")

	var (
		llm llms.Model
		err error
	)
	switch cfg.Provider {
	case config.ProviderOllama:
		llm, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s client: %w", cfg.Provider, err)
	}
	return NewClientFromModel(llm, cfg.Model, cfg.Temperature), nil
}

// NewClientFromModel wraps an existing langchaingo model.
func NewClientFromModel(llm llms.Model, model string, temperature float64) *Client {
	return &Client{llm: llm, model: model, temperature: temperature}
}

// Generate sends prompt as one human message and returns the first choice.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	log.Debug().Str("model", c.model).Int("prompt_chars", len(prompt)).Msg("Generating content")
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return out, nil
}
