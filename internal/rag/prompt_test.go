package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-form-rag/internal/models"
)

func TestBuildPrompt_Sections(t *testing.T) {
	results := []models.SearchResult{
		{Chunk: models.TextChunk{Content: "Step 1: Open the valve."}},
		{Chunk: models.TextChunk{Content: "Step 2: Start the pump."}},
	}
	prompt, err := BuildPrompt(results, "Human: hi\nAssistant: <form></form>", "Which steps remain?")
	require.NoError(t, err)

	assert.Contains(t, prompt, "Context: Step 1: Open the valve.\n---\nStep 2: Start the pump.\n")
	assert.Contains(t, prompt, "Chat history: Human: hi\nAssistant: <form></form>\n")
	assert.Contains(t, prompt, "Question: Which steps remain?\n")
	assert.Contains(t, prompt, "checkboxes")
	assert.Contains(t, prompt, "radio")
	assert.Contains(t, prompt, "console.log()")
	assert.NotContains(t, prompt, "{{")

	ctxAt := strings.Index(prompt, "Context:")
	histAt := strings.Index(prompt, "Chat history:")
	qAt := strings.Index(prompt, "Question:")
	assert.True(t, ctxAt < histAt && histAt < qAt)
}

func TestBuildPrompt_EmptyHistory(t *testing.T) {
	prompt, err := BuildPrompt(nil, "", "What is installed?")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Chat history: \n")
	assert.Contains(t, prompt, "Question: What is installed?")
}

func TestBuildCondensePrompt(t *testing.T) {
	prompt, err := BuildCondensePrompt("Human: install?\nAssistant: <form/>", "and after that?")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Chat History:\nHuman: install?\nAssistant: <form/>\n")
	assert.Contains(t, prompt, "Follow Up Input: and after that?")
	assert.True(t, strings.HasSuffix(prompt, "Standalone question:"))
}

func TestFormatContext(t *testing.T) {
	assert.Empty(t, FormatContext(nil))
	assert.Equal(t, "a\n---\nb", FormatContext([]models.SearchResult{
		{Chunk: models.TextChunk{Content: "a"}},
		{Chunk: models.TextChunk{Content: "b"}},
	}))
}
