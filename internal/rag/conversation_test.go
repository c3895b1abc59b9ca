package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-form-rag/internal/models"
)

func TestConversation_AppendAlternates(t *testing.T) {
	ctx := context.Background()
	conv := NewConversation()

	for n := 1; n <= 3; n++ {
		require.NoError(t, conv.Append(ctx, "q", "a"))
		turns, err := conv.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2*n, turns)
	}

	turns, err := conv.History(ctx)
	require.NoError(t, err)
	for i, turn := range turns {
		want := models.RoleHuman
		if i%2 == 1 {
			want = models.RoleAI
		}
		assert.Equal(t, want, turn.Role, "turn %d", i)
	}
}

func TestConversation_HistoryIsChronological(t *testing.T) {
	ctx := context.Background()
	conv := NewConversation()
	require.NoError(t, conv.Append(ctx, "first question", "first answer"))
	require.NoError(t, conv.Append(ctx, "second question", "second answer"))

	turns, err := conv.History(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Turn{
		{Role: models.RoleHuman, Content: "first question"},
		{Role: models.RoleAI, Content: "first answer"},
		{Role: models.RoleHuman, Content: "second question"},
		{Role: models.RoleAI, Content: "second answer"},
	}, turns)

	buf, err := conv.Buffer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Human: first question\nAssistant: first answer\nHuman: second question\nAssistant: second answer", buf)
}

func TestConversation_Reset(t *testing.T) {
	ctx := context.Background()
	conv := NewConversation()
	require.NoError(t, conv.Append(ctx, "q", "a"))
	require.NoError(t, conv.Reset(ctx))

	turns, err := conv.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, turns)
	buf, err := conv.Buffer(ctx)
	require.NoError(t, err)
	assert.Empty(t, buf)
}
