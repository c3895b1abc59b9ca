package rag

import (
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"pdf-form-rag/internal/models"
)

var (
	formPrompt = prompts.PromptTemplate{
		Template:       models.FormPromptTemplate,
		InputVariables: []string{models.ContextKey, models.ChatHistoryKey, models.QuestionKey},
		TemplateFormat: prompts.TemplateFormatGoTemplate,
	}
	condensePrompt = prompts.PromptTemplate{
		Template:       models.CondenseQuestionTemplate,
		InputVariables: []string{models.ChatHistoryKey, models.QuestionKey},
		TemplateFormat: prompts.TemplateFormatGoTemplate,
	}
)

// FormatContext joins retrieved chunks, best match first.
func FormatContext(results []models.SearchResult) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Chunk.Content
	}
	return strings.Join(parts, models.ContextSeparator)
}

// BuildPrompt renders the form-generation prompt from its three sections.
func BuildPrompt(results []models.SearchResult, chatHistory, question string) (string, error) {
	return formPrompt.Format(map[string]any{
		models.ContextKey:     FormatContext(results),
		models.ChatHistoryKey: chatHistory,
		models.QuestionKey:    question,
	})
}

// BuildCondensePrompt asks for the follow-up question rewritten as a standalone one.
func BuildCondensePrompt(chatHistory, question string) (string, error) {
	return condensePrompt.Format(map[string]any{
		models.ChatHistoryKey: chatHistory,
		models.QuestionKey:    question,
	})
}
