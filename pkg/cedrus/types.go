package cedrus

import (
	"context"

	domdoc "github.com/cedrus-db/cedrus/internal/domain/document"
	domsearch "github.com/cedrus-db/cedrus/internal/domain/search"
)

// Document is a unit of storage. ID may be empty; the store assigns one.
// Metadata values must be string, bool, or a numeric type. Embedding is
// optional; documents without one are vectorized via the configured
// embedder on add.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// EmbeddingResult is a vector plus the token usage the provider reported.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// SearchRequest describes a similarity search. Exactly one of Query and
// Vector must be set. TopK 0 uses the engine default; Threshold must lie
// in [0,1] (0 disables score filtering).
type SearchRequest struct {
	Query     string
	Vector    []float32
	TopK      int
	Threshold float64
	Filter    Filter
}

// SearchResult is a single search hit. Score is a similarity in [0,1],
// higher meaning more similar.
type SearchResult struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float64
}

// SchemaResult reports what EnsureSchema did. Warning is non-nil when a
// live index diverges from the configured schema.
type SchemaResult struct {
	Created bool
	Warning error
}

func toDomainDocument(d Document) (domdoc.Document, error) {
	doc, err := domdoc.New(d.ID, d.Content, d.Metadata)
	if err != nil {
		return domdoc.Document{}, err
	}
	if len(d.Embedding) > 0 {
		doc = doc.WithEmbedding(d.Embedding)
	}
	return doc, nil
}

func fromDomainDocument(doc domdoc.Document) Document {
	return Document{
		ID:        doc.ID(),
		Content:   doc.Content(),
		Metadata:  doc.Metadata(),
		Embedding: doc.Embedding(),
	}
}

func toSearchResults(scored []domsearch.Scored) []SearchResult {
	results := make([]SearchResult, len(scored))
	for i := range scored {
		doc := scored[i].Document()
		results[i] = SearchResult{
			ID:       doc.ID(),
			Content:  doc.Content(),
			Metadata: doc.Metadata(),
			Score:    scored[i].Score(),
		}
	}
	return results
}
