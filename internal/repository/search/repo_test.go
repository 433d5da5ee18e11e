package search

import (
	"context"
	"errors"
	"testing"

	"github.com/cedrus-db/cedrus/internal/db"
	"github.com/cedrus-db/cedrus/internal/domain"
	"github.com/cedrus-db/cedrus/internal/domain/schema"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchFn func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	lastQ    *db.KNNQuery
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.lastQ = q
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func testCol(t *testing.T) schema.Collection {
	t.Helper()
	category, err := schema.NewField("category", schema.KindTag)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	year, err := schema.NewField("year", schema.KindNumeric)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	col, err := schema.New("test", "embedding", "vector_index", 3,
		schema.MetricEuclidean, []schema.Field{category, year})
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	return col
}

func TestQuerySimilar_BuildsQuery(t *testing.T) {
	store := &mockStore{}
	repo := New(store, testCol(t))

	_, err := repo.QuerySimilar(context.Background(), []float32{1, 2, 3}, 7, nil)
	if err != nil {
		t.Fatalf("QuerySimilar: %v", err)
	}

	q := store.lastQ
	if q.IndexName != "vector_index" || q.VectorField != "embedding" {
		t.Errorf("query target = %q/%q", q.IndexName, q.VectorField)
	}
	if q.K != 7 {
		t.Errorf("K = %d, want 7", q.K)
	}
	if q.Metric != db.DistanceL2 {
		t.Errorf("metric = %q, want L2", q.Metric)
	}
	want := []string{"__content", "category", "year"}
	if len(q.ReturnFields) != len(want) {
		t.Fatalf("return fields = %v", q.ReturnFields)
	}
	for i, f := range want {
		if q.ReturnFields[i] != f {
			t.Errorf("return field %d = %q, want %q", i, q.ReturnFields[i], f)
		}
	}
}

func TestQuerySimilar_ParsesEntries(t *testing.T) {
	store := &mockStore{
		searchFn: func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
			return &db.SearchResult{
				Total: 2,
				Entries: []db.SearchEntry{
					{
						Key:   "cedrus:test:doc-1",
						Score: 0.9,
						Fields: map[string]string{
							"__content": "first",
							"category":  "books",
							"year":      "2021",
						},
					},
					{
						Key:    "cedrus:test:doc-2",
						Score:  0.4,
						Fields: map[string]string{"__content": "second"},
					},
				},
			}, nil
		},
	}
	repo := New(store, testCol(t))

	results, err := repo.QuerySimilar(context.Background(), []float32{1, 2, 3}, 10, nil)
	if err != nil {
		t.Fatalf("QuerySimilar: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	first := results[0].Document()
	if first.ID() != "doc-1" {
		t.Errorf("id = %q, key prefix should be stripped", first.ID())
	}
	if first.Content() != "first" {
		t.Errorf("content = %q", first.Content())
	}
	if v, ok := first.Metadata()["year"].(float64); !ok || v != 2021 {
		t.Errorf("year = %v (%T), want float64 2021", first.Metadata()["year"], first.Metadata()["year"])
	}
	if results[0].Score() != 0.9 {
		t.Errorf("score = %g", results[0].Score())
	}

	second := results[1].Document()
	if second.Metadata() != nil {
		t.Errorf("empty metadata should hydrate as nil, got %v", second.Metadata())
	}
}

func TestQuerySimilar_WrapsStorageRead(t *testing.T) {
	store := &mockStore{
		searchFn: func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
			return nil, errors.New("index gone")
		},
	}
	repo := New(store, testCol(t))

	_, err := repo.QuerySimilar(context.Background(), []float32{1, 2, 3}, 4, nil)
	if !errors.Is(err, domain.ErrStorageRead) {
		t.Errorf("expected ErrStorageRead, got %v", err)
	}
}

func TestQuerySimilar_EmptyResult(t *testing.T) {
	repo := New(&mockStore{}, testCol(t))

	results, err := repo.QuerySimilar(context.Background(), []float32{1, 2, 3}, 4, nil)
	if err != nil {
		t.Fatalf("QuerySimilar: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
