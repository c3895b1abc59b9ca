package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/errgroup"

	"pdf-form-rag/internal/config"
	"pdf-form-rag/internal/models"
)

// Embedder turns a text into a vector. *embeddings.EmbedderImpl satisfies it.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// New creates the embedder configured by cfg.Provider.
func New(cfg *config.LLMConfig) (Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(cfg)
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
}

// NewOllamaEmbedder creates an embedder backed by an Ollama server
func NewOllamaEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating ollama embedder")

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// NewOpenAIEmbedder creates an embedder backed by an OpenAI compatible API
func NewOpenAIEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating openai embedder")

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// GenerateEmbeddings embeds every chunk exactly once, at most concurrency at a
// time, and returns the vectors in chunk order. The first failure is reported
// as a *models.EmbeddingError carrying the chunk position.
func GenerateEmbeddings(ctx context.Context, embedder Embedder, chunks []models.TextChunk, concurrency int) ([]models.ChunkEmbedding, error) {
	if len(chunks) == 0 {
		return nil, models.ErrEmptyCorpus
	}
	if concurrency < 1 {
		concurrency = 1
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return &models.EmbeddingError{Position: i, Err: err}
			}
			vec, err := embedder.EmbedQuery(gctx, chunk.Content)
			if err != nil {
				return &models.EmbeddingError{Position: i, Err: err}
			}
			if len(vec) == 0 {
				return &models.EmbeddingError{Position: i, Err: errors.New("provider returned an empty vector")}
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(vectors[0])
	out := make([]models.ChunkEmbedding, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != dim {
			return nil, &models.EmbeddingError{
				Position: i,
				Err:      fmt.Errorf("vector dimension %d does not match %d", len(vectors[i]), dim),
			}
		}
		out[i] = models.ChunkEmbedding{Chunk: chunk, Embedding: vectors[i]}
	}

	log.Debug().Int("chunks", len(out)).Int("dimension", dim).Msg("Generated embeddings")
	return out, nil
}
