package rag

import (
	"context"
	"fmt"

	"pdf-form-rag/internal/chromemdb"
	"pdf-form-rag/internal/embedding"
	"pdf-form-rag/internal/models"
)

// Retrieve embeds query and returns the k closest chunks of index, nearest
// first. It fails with models.ErrNoIndex when nothing has been indexed.
func Retrieve(ctx context.Context, index *chromemdb.Index, embedder embedding.Embedder, query string, k int) ([]models.SearchResult, error) {
	if index.Count() == 0 {
		return nil, models.ErrNoIndex
	}
	if k <= 0 {
		k = models.DefaultTopK
	}
	queryEmbedding, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return index.Search(ctx, queryEmbedding, k)
}
