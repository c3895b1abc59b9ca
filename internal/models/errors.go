package models

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCorpus is returned when chunking yields nothing to index.
	ErrEmptyCorpus = errors.New("no text chunks to index")
	// ErrNoIndex is returned when a query arrives before any document set was indexed.
	ErrNoIndex = errors.New("no documents have been processed yet")
	// ErrConcurrentExchange is returned when an operation is already running for the session.
	ErrConcurrentExchange = errors.New("another request is already in progress for this session")
)

// ExtractionError reports an unreadable document. Page is 0 when the document could not be opened.
type ExtractionError struct {
	Document int
	Name     string
	Page     int
	Err      error
}

func (e *ExtractionError) Error() string {
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("#%d", e.Document+1)
	}
	if e.Page > 0 {
		return fmt.Sprintf("failed to extract text from document %s page %d: %v", name, e.Page, e.Err)
	}
	return fmt.Sprintf("failed to read document %s: %v", name, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError reports the chunk position whose embedding failed.
type EmbeddingError struct {
	Position int
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("failed to embed chunk %d: %v", e.Position, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Generation stages reported by GenerationError.
const (
	StageCondense = "condense"
	StageRetrieve = "retrieve"
	StagePrompt   = "prompt"
	StageGenerate = "generate"
	StageMemory   = "memory"
)

// GenerationError reports which stage of answering a question failed.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed at %s stage: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
