package domain

import "context"

// KeyPrefix namespaces all backend keys owned by this engine.
const KeyPrefix = "cedrus:"

// EmbeddingResult is a vector plus the token usage the provider reported.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text. Implementations wrap upstream failures with
// ErrEmbeddingProvider; callers never retry internally.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}
