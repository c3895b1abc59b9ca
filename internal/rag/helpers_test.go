package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pdf-form-rag/internal/chromemdb"
	"pdf-form-rag/internal/config"
	"pdf-form-rag/internal/embedding"
	"pdf-form-rag/internal/models"
)

var errProviderDown = errors.New("provider down")

// scriptedGenerator records prompts and answers through reply.
type scriptedGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	n := len(g.prompts)
	g.mu.Unlock()
	if g.reply == nil {
		return "<form>answer " + string(rune('0'+n)) + "</form>", nil
	}
	return g.reply(prompt)
}

func (g *scriptedGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// blockingGenerator parks every call until release is closed.
type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *blockingGenerator) Generate(ctx context.Context, _ string) (string, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		return "<form>late</form>", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errProviderDown
}

// plainTextExtractor treats document bytes as already extracted text.
func plainTextExtractor(docs []models.Document) (string, error) {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = string(d.Data)
	}
	return strings.Join(parts, "\n"), nil
}

func textDocs(texts ...string) []models.Document {
	docs := make([]models.Document, len(texts))
	for i, t := range texts {
		docs[i] = models.Document{Name: "doc.pdf", Data: []byte(t)}
	}
	return docs
}

func testConfig() config.RAGConfig {
	return config.RAGConfig{
		ChunkSize:            40,
		ChunkOverlap:         10,
		Separator:            "\n",
		TopK:                 2,
		EmbeddingConcurrency: 4,
	}
}

func newTestRAG(gen *scriptedGenerator, cfg config.RAGConfig) *RAG {
	return NewRAG(embedding.NewMockEmbedder(256), gen, cfg, WithExtractor(plainTextExtractor))
}

// buildIndex indexes each text as its own chunk.
func buildIndex(t *testing.T, emb embedding.Embedder, texts ...string) *chromemdb.Index {
	t.Helper()
	chunks := make([]models.TextChunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.TextChunk{Content: text, SourceLength: len([]rune(text)), Index: i}
	}
	ctx := context.Background()
	items, err := embedding.GenerateEmbeddings(ctx, emb, chunks, 2)
	require.NoError(t, err)
	idx, err := chromemdb.NewIndex(ctx, items, 2)
	require.NoError(t, err)
	return idx
}
