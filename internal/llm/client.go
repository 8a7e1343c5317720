package llm

import "context"

// ChatMessage is one role/content turn in an ordered chat completion request.
type ChatMessage struct {
	Role    string
	Content string
}

// LLMClient generates chat completions. Generate is a convenience for a
// single-turn prompt; GenerateChat carries the full ordered message list the
// prompt composer (C10) builds, so history and system instructions reach the
// model as distinct turns rather than one flattened string.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateChat(ctx context.Context, messages []ChatMessage) (string, error)
}

// EmbeddingClient produces a single embedding vector for a piece of text.
// Implemented by the same underlying client as LLMClient so C1's Provider
// can reuse one HTTP connection for both concerns, matching the teacher's
// llmClientWithEmbedding composition in narrative_service.go.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}
