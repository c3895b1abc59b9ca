package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdf-form-rag/internal/models"
)

const (
	collectionName = "documents"

	metaChunkIndex   = "chunk_index"
	metaSourceOffset = "source_offset"
	metaSourceLength = "source_length"
)

// Index is an in-memory vector index over one document set. It is built in
// full by NewIndex and never modified afterwards.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	chunks     []models.TextChunk
	dimension  int
}

// NewIndex builds a fresh chromem collection from precomputed embeddings.
// Nothing is returned unless every chunk was added.
func NewIndex(ctx context.Context, items []models.ChunkEmbedding, concurrency int) (*Index, error) {
	if len(items) == 0 {
		return nil, models.ErrEmptyCorpus
	}
	if concurrency < 1 {
		concurrency = 1
	}

	db := chromem.NewDB()
	// embeddings are always supplied by the caller
	noEmbed := func(context.Context, string) ([]float32, error) {
		return nil, errors.New("index only accepts precomputed embeddings")
	}
	collection, err := db.CreateCollection(collectionName, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	dimension := len(items[0].Embedding)
	chunks := make([]models.TextChunk, len(items))
	docs := make([]chromem.Document, len(items))
	for i, item := range items {
		if len(item.Embedding) != dimension {
			return nil, fmt.Errorf("chunk %d has dimension %d, index expects %d", i, len(item.Embedding), dimension)
		}
		chunk := item.Chunk
		chunk.Index = i
		chunks[i] = chunk
		docs[i] = chromem.Document{
			ID:        docID(i),
			Content:   chunk.Content,
			Metadata:  CreateMetadata(chunk),
			Embedding: item.Embedding,
		}
	}

	if err := collection.AddDocuments(ctx, docs, concurrency); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	log.Debug().Int("documents", collection.Count()).Int("dimension", dimension).Msg("Built vector index")
	return &Index{
		db:         db,
		collection: collection,
		chunks:     chunks,
		dimension:  dimension,
	}, nil
}

// CreateMetadata maps chunk positions to chromem metadata
func CreateMetadata(chunk models.TextChunk) map[string]string {
	return map[string]string{
		metaChunkIndex:   strconv.Itoa(chunk.Index),
		metaSourceOffset: strconv.Itoa(chunk.SourceOffset),
		metaSourceLength: strconv.Itoa(chunk.SourceLength),
	}
}

func docID(i int) string {
	return "chunk-" + strconv.Itoa(i)
}

// Count returns the number of indexed chunks; 0 for a nil index.
func (idx *Index) Count() int {
	if idx == nil || idx.collection == nil {
		return 0
	}
	return idx.collection.Count()
}

func (idx *Index) Dimension() int {
	if idx == nil {
		return 0
	}
	return idx.dimension
}

// Search returns up to k chunks by decreasing cosine similarity; equal
// similarities keep chunk order. A nil or empty index yields models.ErrNoIndex.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]models.SearchResult, error) {
	count := idx.Count()
	if count == 0 {
		return nil, models.ErrNoIndex
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), idx.dimension)
	}

	// query every document so ties at the k boundary resolve by chunk order
	results, err := idx.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: query,
		NResults:       count,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		pos, err := strconv.Atoi(r.Metadata[metaChunkIndex])
		if err != nil || pos < 0 || pos >= len(idx.chunks) {
			return nil, fmt.Errorf("document %s has invalid chunk index %q", r.ID, r.Metadata[metaChunkIndex])
		}
		out = append(out, models.SearchResult{
			Chunk:      idx.chunks[pos],
			Similarity: r.Similarity,
			Distance:   1 - r.Similarity,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Chunk.Index < out[j].Chunk.Index
	})
	return out[:min(k, len(out))], nil
}
