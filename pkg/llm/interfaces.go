// Package llm provides the SQL generators: an OpenAI-compatible client (also
// used for Ollama and vLLM endpoints) and an Anthropic client, plus the
// retry and circuit-breaker wrapper placed around either.
package llm

import (
	"context"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation sent to the generator.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage is shorthand for a single user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// GenerateResult contains the response content and token usage statistics.
type GenerateResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Generator produces text from a system prompt and a conversation.
// Output is untrusted: it must pass validation before it is executed.
// Use this interface for dependency injection to enable mocking in tests.
type Generator interface {
	// Generate returns the model's reply. Failures are *Error values.
	Generate(ctx context.Context, systemPrompt string, messages []Message) (*GenerateResult, error)

	// Model returns the configured model name.
	Model() string
}

// Ensure the generators implement Generator at compile time.
var (
	_ Generator = (*Client)(nil)
	_ Generator = (*AnthropicClient)(nil)
	_ Generator = (*GuardedGenerator)(nil)
)
