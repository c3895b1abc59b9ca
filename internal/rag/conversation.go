package rag

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/memory"

	"pdf-form-rag/internal/models"
)

// Conversation is the chat memory of one session. Turns are only ever added as
// a Human/AI pair, so the stored history always alternates and has even length.
type Conversation struct {
	mu      sync.RWMutex
	history *memory.ChatMessageHistory
}

func NewConversation() *Conversation {
	return &Conversation{history: memory.NewChatMessageHistory()}
}

// Append stores one completed exchange. Both turns are written in a single
// SetMessages call; on error the history is left as it was.
func (c *Conversation) Append(ctx context.Context, question, answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs, err := c.history.Messages(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chat history: %w", err)
	}
	next := make([]llms.ChatMessage, 0, len(msgs)+2)
	next = append(next, msgs...)
	next = append(next,
		llms.HumanChatMessage{Content: question},
		llms.AIChatMessage{Content: answer},
	)
	if err := c.history.SetMessages(ctx, next); err != nil {
		return fmt.Errorf("failed to store chat history: %w", err)
	}
	return nil
}

// History returns the turns oldest-first.
func (c *Conversation) History(ctx context.Context) ([]models.Turn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs, err := c.history.Messages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}
	turns := make([]models.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := models.RoleAI
		if m.GetType() == llms.ChatMessageTypeHuman {
			role = models.RoleHuman
		}
		turns = append(turns, models.Turn{Role: role, Content: m.GetContent()})
	}
	return turns, nil
}

// Buffer serialises the history as "Human: ...\nAssistant: ..." lines, most recent last.
func (c *Conversation) Buffer(ctx context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs, err := c.history.Messages(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read chat history: %w", err)
	}
	return llms.GetBufferString(msgs, models.HumanPrefix, models.AIPrefix)
}

// Len returns the number of stored turns.
func (c *Conversation) Len(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs, err := c.history.Messages(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read chat history: %w", err)
	}
	return len(msgs), nil
}

func (c *Conversation) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Clear(ctx)
}
