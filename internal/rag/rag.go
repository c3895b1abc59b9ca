package rag

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-form-rag/internal/chromemdb"
	"pdf-form-rag/internal/config"
	"pdf-form-rag/internal/embedding"
	"pdf-form-rag/internal/llmservice"
	"pdf-form-rag/internal/models"
	"pdf-form-rag/internal/parser"
)

// TextExtractor turns uploaded documents into one corpus.
type TextExtractor func(docs []models.Document) (string, error)

// RAG wires the providers to the indexing and answering pipeline. It holds no
// per-session state and is safe to share between sessions.
type RAG struct {
	embedder  embedding.Embedder
	generator llmservice.Generator
	extract   TextExtractor
	splitter  *parser.Splitter
	cfg       config.RAGConfig
}

type Option func(*RAG)

// WithExtractor replaces the PDF text extractor.
func WithExtractor(fn TextExtractor) Option {
	return func(r *RAG) { r.extract = fn }
}

func NewRAG(embedder embedding.Embedder, generator llmservice.Generator, cfg config.RAGConfig, opts ...Option) *RAG {
	if cfg.TopK <= 0 {
		cfg.TopK = models.DefaultTopK
	}
	r := &RAG{
		embedder:  embedder,
		generator: generator,
		extract:   parser.ExtractText,
		splitter:  parser.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap, cfg.Separator),
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BuildIndex runs extract -> chunk -> embed -> index for one document set.
func (r *RAG) BuildIndex(ctx context.Context, docs []models.Document) (*chromemdb.Index, error) {
	corpus, err := r.extract(docs)
	if err != nil {
		return nil, err
	}
	return r.BuildIndexFromText(ctx, corpus)
}

// BuildIndexFromText chunks and indexes an already extracted corpus.
func (r *RAG) BuildIndexFromText(ctx context.Context, corpus string) (*chromemdb.Index, error) {
	chunks, err := r.splitter.SplitText(corpus)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, models.ErrEmptyCorpus
	}
	log.Debug().Int("corpus_chars", len([]rune(corpus))).Int("chunks", len(chunks)).Msg("Split corpus")

	chunkEmbeddings, err := embedding.GenerateEmbeddings(ctx, r.embedder, chunks, r.cfg.EmbeddingConcurrency)
	if err != nil {
		return nil, err
	}
	return chromemdb.NewIndex(ctx, chunkEmbeddings, r.cfg.EmbeddingConcurrency)
}

// Query answers question against index, using and then extending conv. conv is
// only modified when the answer was generated.
func (r *RAG) Query(ctx context.Context, index *chromemdb.Index, conv *Conversation, question string) (*models.PromptResponse, error) {
	if index.Count() == 0 {
		return nil, &models.GenerationError{Stage: models.StageRetrieve, Err: models.ErrNoIndex}
	}

	chatHistory, err := conv.Buffer(ctx)
	if err != nil {
		return nil, &models.GenerationError{Stage: models.StageMemory, Err: err}
	}
	turns, err := conv.Len(ctx)
	if err != nil {
		return nil, &models.GenerationError{Stage: models.StageMemory, Err: err}
	}

	searchQuery := question
	if r.cfg.CondenseQuestion && chatHistory != "" {
		searchQuery, err = r.condense(ctx, chatHistory, question)
		if err != nil {
			return nil, err
		}
	}

	results, err := Retrieve(ctx, index, r.embedder, searchQuery, r.cfg.TopK)
	if err != nil {
		return nil, &models.GenerationError{Stage: models.StageRetrieve, Err: err}
	}

	prompt, err := BuildPrompt(results, chatHistory, question)
	if err != nil {
		return nil, &models.GenerationError{Stage: models.StagePrompt, Err: err}
	}

	answer, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Msg("LLM generation failed")
		return nil, &models.GenerationError{Stage: models.StageGenerate, Err: err}
	}

	if err := conv.Append(ctx, question, answer); err != nil {
		return nil, &models.GenerationError{Stage: models.StageMemory, Err: err}
	}

	log.Info().Int("sources", len(results)).Int("history_turns", turns+2).Int("answer_chars", len(answer)).Msg("Answered question")
	return &models.PromptResponse{
		Query:   question,
		Source:  results,
		Content: answer,
	}, nil
}

// condense rewrites a follow-up question into a standalone one for retrieval.
func (r *RAG) condense(ctx context.Context, chatHistory, question string) (string, error) {
	prompt, err := BuildCondensePrompt(chatHistory, question)
	if err != nil {
		return "", &models.GenerationError{Stage: models.StageCondense, Err: err}
	}
	standalone, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		return "", &models.GenerationError{Stage: models.StageCondense, Err: err}
	}
	standalone = strings.TrimSpace(standalone)
	if standalone == "" {
		return question, nil
	}
	log.Debug().Str("question", question).Str("standalone", standalone).Msg("Condensed question")
	return standalone, nil
}
