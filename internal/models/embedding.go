package models

// Document is one uploaded file, consumed by the text extractor.
type Document struct {
	Name string
	Data []byte
}

// TextChunk is a contiguous slice of the corpus. Offsets and lengths count runes.
type TextChunk struct {
	Content      string `json:"content"`
	SourceOffset int    `json:"source_offset"`
	SourceLength int    `json:"source_length"`
	Index        int    `json:"index"`
}

// ChunkEmbedding pairs a chunk with its vector.
type ChunkEmbedding struct {
	Chunk     TextChunk
	Embedding []float32
}

// SearchResult is a retrieved chunk. Distance is 1 - Similarity (cosine).
type SearchResult struct {
	Chunk      TextChunk `json:"chunk"`
	Similarity float32   `json:"similarity"`
	Distance   float32   `json:"distance"`
}

type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

// Turn is one message of the conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type PromptResponse struct {
	Query   string
	Source  []SearchResult
	Content string
}
