package models

const (
	DefaultChunkSize    = 1000 // characters
	DefaultChunkOverlap = 200  // characters
	DefaultSeparator    = "\n"
	DefaultTopK         = 4

	ContextSeparator = "\n---\n"
	HumanPrefix      = "Human"
	AIPrefix         = "Assistant"

	// prompt template variables
	ContextKey     = "context"
	ChatHistoryKey = "chat_history"
	QuestionKey    = "question"
)

var (
	FormPromptTemplate = `You are a highly skilled form generator assistant.
Your task is to create an HTML form based on the provided context and chat history.
If the context holds no relevant details, say that you don't know and do not make up an answer.
If it does, the form should include appropriate input fields with labels and default values where applicable.

Context: {{.context}}

Chat history: {{.chat_history}}

Using the context and chat history, generate an HTML form that follows these rules:
1. Every input field has a label and an appropriate type (checkbox, radio button, text, ...).
2. Choose the field type from the content. When the content lists steps the user performs (installation steps,
   maintenance steps), use checkboxes. When the content asks whether steps were completed or not, use radio
   buttons with completed / not completed options.
3. Give each field a label, a default value and a placeholder where applicable, and mark required fields.
4. End the form with a submit button. Clicking it validates the form fields.
5. On submit, the form must console.log() the values entered by the user.
6. Style the form so it looks good. The form background and border must be transparent.
7. Do not add unrelated tags or elements. Output well-formed HTML following proper coding standards.

Question: {{.question}}

Generate the complete HTML form with a submit button, in this response format:
<!DOCTYPE html>
<html>
<head>
    <title>Form Title</title>
    <style>
        <!-- styles here; transparent form background and border -->
    </style>
</head>
<body>
    <h2>Form Title</h2>
    <p>Brief description of the form</p>
    <form id="generatedForm">
        <!-- fields populated from the context -->
    </form>
    <script>
        <!-- collect the submitted data and console.log it -->
    </script>
</body>
</html>
`

	CondenseQuestionTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
{{.chat_history}}
Follow Up Input: {{.question}}
Standalone question:`
)
