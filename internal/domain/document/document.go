package document

import (
	"fmt"
	"regexp"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxContentSize is the maximum document content size in bytes.
const MaxContentSize = 163840 // 160KB

// Document is an immutable stored unit: content, scalar metadata, and an
// optional embedding. There is no partial update; replace via delete + add.
type Document struct {
	id        string
	content   string
	metadata  map[string]any
	embedding []float32
}

// New validates and creates a Document.
// An empty ID is allowed; the store assigns one at add time.
// Metadata values must be string, bool, or a numeric type (stored as float64).
func New(id, content string, metadata map[string]any) (Document, error) {
	if id != "" {
		if len(id) > 256 {
			return Document{}, fmt.Errorf("document ID too long (max 256)")
		}
		if !idRegex.MatchString(id) {
			return Document{}, fmt.Errorf("document ID must be alphanumeric with underscores and hyphens")
		}
	}
	if content == "" {
		return Document{}, fmt.Errorf("content is required")
	}
	if len(content) > MaxContentSize {
		return Document{}, fmt.Errorf("content too large (max %d bytes)", MaxContentSize)
	}

	meta, err := normalizeMetadata(metadata)
	if err != nil {
		return Document{}, err
	}

	return Document{id: id, content: content, metadata: meta}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, content string, metadata map[string]any, embedding []float32) Document {
	return Document{id: id, content: content, metadata: metadata, embedding: embedding}
}

// ID returns the document identifier ("" until assigned).
func (d *Document) ID() string { return d.id }

// Content returns the document text content.
func (d *Document) Content() string { return d.content }

// Metadata returns the scalar metadata fields.
func (d *Document) Metadata() map[string]any { return d.metadata }

// Embedding returns the embedding vector (nil if not yet vectorized).
func (d *Document) Embedding() []float32 { return d.embedding }

// WithID returns a copy with the given identifier.
func (d *Document) WithID(id string) Document {
	return Document{id: id, content: d.content, metadata: d.metadata, embedding: d.embedding}
}

// WithEmbedding returns a copy with the given vector set.
func (d *Document) WithEmbedding(v []float32) Document {
	return Document{id: d.id, content: d.content, metadata: d.metadata, embedding: v}
}

// normalizeMetadata copies the map, coercing numeric values to float64 and
// rejecting non-scalar values.
func normalizeMetadata(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == "" {
			return nil, fmt.Errorf("metadata key must not be empty")
		}
		nv, ok := NormalizeScalar(v)
		if !ok {
			return nil, fmt.Errorf("metadata field %q: unsupported value type %T", k, v)
		}
		out[k] = nv
	}
	return out, nil
}

// NormalizeScalar coerces a supported scalar to its canonical form:
// string, bool, or float64. Returns false for anything else.
func NormalizeScalar(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return t, true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return nil, false
	}
}
