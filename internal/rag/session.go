package rag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"pdf-form-rag/internal/chromemdb"
	"pdf-form-rag/internal/models"
)

// Session owns the index and the conversation of one user. Only one document
// upload or question runs at a time; a second one is rejected with
// models.ErrConcurrentExchange instead of queueing.
type Session struct {
	ID        string
	CreatedAt time.Time

	rag *RAG

	// held for the whole of ProcessDocuments, AskQuestion and Reset
	busy sync.Mutex

	mu    sync.RWMutex
	index *chromemdb.Index
	conv  *Conversation
}

func NewSession(id string, r *RAG) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		rag:       r,
		conv:      NewConversation(),
	}
}

// ProcessDocuments indexes docs and, only on success, replaces the session's
// index and clears its conversation in one step.
func (s *Session) ProcessDocuments(ctx context.Context, docs []models.Document) (*chromemdb.Index, error) {
	if !s.busy.TryLock() {
		return nil, models.ErrConcurrentExchange
	}
	defer s.busy.Unlock()

	start := time.Now()
	index, err := s.rag.BuildIndex(ctx, docs)
	if err != nil {
		log.Error().Err(err).Str("session", s.ID).Int("documents", len(docs)).Msg("Error processing documents")
		return nil, err
	}

	s.mu.Lock()
	if err := s.conv.Reset(ctx); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to reset conversation: %w", err)
	}
	s.index = index
	s.mu.Unlock()

	log.Info().Str("session", s.ID).Int("documents", len(docs)).Int("chunks", index.Count()).
		Dur("took", time.Since(start)).Msg("Documents processed")
	return index, nil
}

// AskQuestion answers question and records the exchange.
func (s *Session) AskQuestion(ctx context.Context, question string) (*models.PromptResponse, error) {
	if !s.busy.TryLock() {
		return nil, models.ErrConcurrentExchange
	}
	defer s.busy.Unlock()

	s.mu.RLock()
	index, conv := s.index, s.conv
	s.mu.RUnlock()

	return s.rag.Query(ctx, index, conv, question)
}

// History returns the conversation oldest-first.
func (s *Session) History(ctx context.Context) ([]models.Turn, error) {
	s.mu.RLock()
	conv := s.conv
	s.mu.RUnlock()
	return conv.History(ctx)
}

// Reset drops the index and the conversation.
func (s *Session) Reset(ctx context.Context) error {
	if !s.busy.TryLock() {
		return models.ErrConcurrentExchange
	}
	defer s.busy.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conv.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset conversation: %w", err)
	}
	s.index = nil
	return nil
}

func (s *Session) HasIndex() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Count() > 0
}

// Index returns the current index, nil before the first successful upload.
func (s *Session) Index() *chromemdb.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}
