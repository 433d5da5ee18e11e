package chi

import (
	"encoding/json"
	"fmt"

	domdoc "github.com/cedrus-db/cedrus/internal/domain/document"
	domfilter "github.com/cedrus-db/cedrus/internal/domain/filter"
	domsearch "github.com/cedrus-db/cedrus/internal/domain/search"
)

// Wire DTOs for the JSON API.

type addDocumentsRequest struct {
	Documents []documentItem `json:"documents"`
}

type documentItem struct {
	ID        string         `json:"id,omitempty"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
}

type addDocumentsResponse struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

type deleteDocumentsRequest struct {
	IDs []string `json:"ids"`
}

type deleteDocumentsResponse struct {
	Deleted int `json:"deleted"`
}

type documentResponse struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
}

type ensureSchemaResponse struct {
	Created bool   `json:"created"`
	Warning string `json:"warning,omitempty"`
}

type dropSchemaResponse struct {
	Dropped bool `json:"dropped"`
}

type searchRequest struct {
	Query     string     `json:"query,omitempty"`
	Vector    []float32  `json:"vector,omitempty"`
	TopK      int        `json:"top_k,omitempty"`
	Threshold float64    `json:"threshold,omitempty"`
	Filter    *filterDTO `json:"filter,omitempty"`
}

type searchResponse struct {
	Items []searchResultItem `json:"items"`
	Total int                `json:"total"`
}

type searchResultItem struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// filterDTO is the recursive wire form of a filter expression.
// Comparisons carry field plus value or values; and/or carry operands.
type filterDTO struct {
	Op       string      `json:"op"`
	Field    string      `json:"field,omitempty"`
	Value    any         `json:"value,omitempty"`
	Values   []any       `json:"values,omitempty"`
	Operands []filterDTO `json:"operands,omitempty"`
}

func documentFromItem(item documentItem) (domdoc.Document, error) {
	doc, err := domdoc.New(item.ID, item.Content, item.Metadata)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("build document: %w", err)
	}
	if len(item.Embedding) > 0 {
		doc = doc.WithEmbedding(item.Embedding)
	}
	return doc, nil
}

func filterFromDTO(f *filterDTO) (domfilter.Expression, error) {
	if f == nil {
		return nil, nil
	}

	switch f.Op {
	case "and", "or":
		operands := make([]domfilter.Expression, 0, len(f.Operands))
		for i := range f.Operands {
			op, err := filterFromDTO(&f.Operands[i])
			if err != nil {
				return nil, err
			}
			operands = append(operands, op)
		}
		if f.Op == "and" {
			return domfilter.And(operands...)
		}
		return domfilter.Or(operands...)
	case "eq":
		return domfilter.Eq(f.Field, normalizeJSONValue(f.Value))
	case "ne":
		return domfilter.Ne(f.Field, normalizeJSONValue(f.Value))
	case "lt":
		return domfilter.Lt(f.Field, normalizeJSONValue(f.Value))
	case "lte":
		return domfilter.Lte(f.Field, normalizeJSONValue(f.Value))
	case "gt":
		return domfilter.Gt(f.Field, normalizeJSONValue(f.Value))
	case "gte":
		return domfilter.Gte(f.Field, normalizeJSONValue(f.Value))
	case "in":
		return domfilter.In(f.Field, normalizeJSONValues(f.Values)...)
	case "nin":
		return domfilter.Nin(f.Field, normalizeJSONValues(f.Values)...)
	default:
		return nil, fmt.Errorf("unknown filter op %q", f.Op)
	}
}

// normalizeJSONValue maps json.Number decoding artifacts to plain scalars.
func normalizeJSONValue(v any) any {
	if n, ok := v.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return v
}

func normalizeJSONValues(vs []any) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = normalizeJSONValue(v)
	}
	return out
}

func searchRequestFromWire(req searchRequest) (*domsearch.Request, error) {
	expr, err := filterFromDTO(req.Filter)
	if err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}

	r, err := domsearch.NewRequest(req.Query, req.Vector, req.TopK, req.Threshold, expr)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	return &r, nil
}

func searchResultToWire(r domsearch.Scored) searchResultItem {
	doc := r.Document()
	return searchResultItem{
		ID:       doc.ID(),
		Content:  doc.Content(),
		Metadata: doc.Metadata(),
		Score:    r.Score(),
	}
}

func documentToWire(doc domdoc.Document) documentResponse {
	return documentResponse{
		ID:        doc.ID(),
		Content:   doc.Content(),
		Metadata:  doc.Metadata(),
		Embedding: doc.Embedding(),
	}
}
