// Package search executes similarity queries against the backend index.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cedrus-db/cedrus/internal/db"
	"github.com/cedrus-db/cedrus/internal/domain"
	domdoc "github.com/cedrus-db/cedrus/internal/domain/document"
	domsearch "github.com/cedrus-db/cedrus/internal/domain/search"
	"github.com/cedrus-db/cedrus/internal/domain/schema"
	"github.com/cedrus-db/cedrus/internal/repository/document"
)

// store is the consumer interface for similarity search.
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements the similarity query contract for one collection schema.
type Repo struct {
	store store
	col   schema.Collection
}

// New creates a search repository.
func New(s store, col schema.Collection) *Repo {
	return &Repo{store: s, col: col}
}

// QuerySimilar runs the ANN search restricted by the compiled predicate and
// returns up to topK hits ordered by descending score. Result documents
// carry content and metadata but not the stored vector.
func (r *Repo) QuerySimilar(
	ctx context.Context, vector []float32, topK int, pred db.Predicate,
) ([]domsearch.Scored, error) {
	q := &db.KNNQuery{
		IndexName:    r.col.IndexName(),
		VectorField:  r.col.VectorPath(),
		Vector:       vector,
		K:            topK,
		Predicate:    pred,
		Metric:       metricToDistance(r.col.Metric()),
		ReturnFields: r.returnFields(),
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w: %w", r.col.Name(), domain.ErrStorageRead, err)
	}

	return r.parseResults(sr), nil
}

// returnFields asks for content plus every declared filterable field, in
// declaration order for deterministic queries.
func (r *Repo) returnFields() []string {
	fields := make([]string, 0, 1+len(r.col.Fields()))
	fields = append(fields, "__content")
	for _, f := range r.col.Fields() {
		fields = append(fields, f.Name())
	}
	return fields
}

func (r *Repo) parseResults(sr *db.SearchResult) []domsearch.Scored {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	prefix := document.CollectionPrefix(r.col.Name())
	results := make([]domsearch.Scored, 0, len(sr.Entries))

	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, prefix)

		var content string
		metadata := make(map[string]any, len(entry.Fields))
		for k, v := range entry.Fields {
			if k == "__content" {
				content = v
				continue
			}
			metadata[k] = decodeMetadataValue(k, v, r.col)
		}
		if len(metadata) == 0 {
			metadata = nil
		}

		doc := domdoc.Reconstruct(id, content, metadata, nil)
		results = append(results, domsearch.NewScored(doc, entry.Score))
	}

	return results
}

func decodeMetadataValue(field, raw string, col schema.Collection) any {
	if f, ok := col.FieldByName(field); ok && f.Kind() == schema.KindNumeric {
		if num, err := strconv.ParseFloat(raw, 64); err == nil {
			return num
		}
	}
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	return raw
}

func metricToDistance(m schema.Metric) db.DistanceMetric {
	switch m {
	case schema.MetricDotProduct:
		return db.DistanceIP
	case schema.MetricEuclidean:
		return db.DistanceL2
	default:
		return db.DistanceCosine
	}
}
