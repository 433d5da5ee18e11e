package search

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/cedrus-db/cedrus/internal/db"
	"github.com/cedrus-db/cedrus/internal/domain"
	domdoc "github.com/cedrus-db/cedrus/internal/domain/document"
	domfilter "github.com/cedrus-db/cedrus/internal/domain/filter"
	domsearch "github.com/cedrus-db/cedrus/internal/domain/search"
)

// --- Mocks ---

type mockRepo struct {
	results []domsearch.Scored
	err     error

	called     bool
	lastVector []float32
	lastTopK   int
	lastPred   db.Predicate
}

func (m *mockRepo) QuerySimilar(
	_ context.Context, vector []float32, topK int, pred db.Predicate,
) ([]domsearch.Scored, error) {
	m.called = true
	m.lastVector = vector
	m.lastTopK = topK
	m.lastPred = pred
	return m.results, m.err
}

type mockCompiler struct {
	pred   db.Predicate
	err    error
	called bool
}

func (m *mockCompiler) Compile(_ domfilter.Expression) (db.Predicate, error) {
	m.called = true
	return m.pred, m.err
}

type mockEmbedder struct {
	vec    []float32
	err    error
	called bool
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.called = true
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

func scored(t *testing.T, id string, score float64) domsearch.Scored {
	t.Helper()
	doc, err := domdoc.New(id, "content", nil)
	if err != nil {
		t.Fatalf("domdoc.New: %v", err)
	}
	return domsearch.NewScored(doc, score)
}

func textRequest(t *testing.T, topK int, threshold float64, f domfilter.Expression) *domsearch.Request {
	t.Helper()
	req, err := domsearch.NewRequest("find me", nil, topK, threshold, f)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return &req
}

func newService(repo *mockRepo, compiler *mockCompiler, embed *mockEmbedder) *Service {
	return New(repo, compiler, embed, zap.NewNop())
}

// --- Tests ---

func TestSearch_TextQueryEmbedsFirst(t *testing.T) {
	repo := &mockRepo{results: []domsearch.Scored{}}
	embed := &mockEmbedder{vec: []float32{0.1, 0.2}}
	svc := newService(repo, &mockCompiler{}, embed)

	results, err := svc.Search(context.Background(), textRequest(t, 5, 0, nil))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if !embed.called {
		t.Error("embedder should be called for text queries")
	}
	if len(repo.lastVector) != 2 {
		t.Errorf("repo got vector %v", repo.lastVector)
	}
	if repo.lastTopK != 5 {
		t.Errorf("topK = %d, want 5", repo.lastTopK)
	}
	if len(results) != 0 {
		t.Errorf("empty backend result should be empty success, got %d", len(results))
	}
}

func TestSearch_VectorQuerySkipsEmbedder(t *testing.T) {
	repo := &mockRepo{}
	embed := &mockEmbedder{}
	svc := newService(repo, &mockCompiler{}, embed)

	req, err := domsearch.NewRequest("", []float32{0.7, 0.8}, 4, 0, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if _, err := svc.Search(context.Background(), &req); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if embed.called {
		t.Error("embedder must not run when a vector was provided")
	}
	if repo.lastVector[0] != 0.7 {
		t.Error("query vector should pass through unchanged")
	}
}

func TestSearch_ZeroValueRequestRejected(t *testing.T) {
	svc := newService(&mockRepo{}, &mockCompiler{}, &mockEmbedder{})

	_, err := svc.Search(context.Background(), &domsearch.Request{})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestSearch_ThresholdCutsLowScores(t *testing.T) {
	repo := &mockRepo{results: []domsearch.Scored{
		scored(t, "a", 0.95),
		scored(t, "b", 0.80),
		scored(t, "c", 0.40),
	}}
	svc := newService(repo, &mockCompiler{}, &mockEmbedder{vec: []float32{1}})

	results, err := svc.Search(context.Background(), textRequest(t, 10, 0.8, nil))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results above threshold, got %d", len(results))
	}
	first, second := results[0].Document(), results[1].Document()
	if first.ID() != "a" || second.ID() != "b" {
		t.Error("order must be preserved through threshold filtering")
	}
}

func TestSearch_ThresholdOneKeepsExactMatches(t *testing.T) {
	repo := &mockRepo{results: []domsearch.Scored{
		scored(t, "exact", 1.0),
		scored(t, "near", 0.999),
	}}
	svc := newService(repo, &mockCompiler{}, &mockEmbedder{vec: []float32{1}})

	results, err := svc.Search(context.Background(), textRequest(t, 10, 1, nil))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected only the exact match, got %d results", len(results))
	}
	exact := results[0].Document()
	if exact.ID() != "exact" {
		t.Errorf("id = %q, want the 1.0-scored hit", exact.ID())
	}
}

func TestSearch_TruncatesToTopK(t *testing.T) {
	repo := &mockRepo{results: []domsearch.Scored{
		scored(t, "a", 0.9),
		scored(t, "b", 0.8),
		scored(t, "c", 0.7),
	}}
	svc := newService(repo, &mockCompiler{}, &mockEmbedder{vec: []float32{1}})

	results, err := svc.Search(context.Background(), textRequest(t, 2, 0, nil))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected topK results, got %d", len(results))
	}
	last := results[1].Document()
	if last.ID() != "b" {
		t.Error("truncation must keep the highest-scoring prefix")
	}
}

func TestSearch_CompilesFilter(t *testing.T) {
	pred := db.Equality{Field: "category", Value: db.StringScalar("books")}
	compiler := &mockCompiler{pred: pred}
	repo := &mockRepo{}
	svc := newService(repo, compiler, &mockEmbedder{vec: []float32{1}})

	f, err := domfilter.Eq("category", "books")
	if err != nil {
		t.Fatalf("Eq: %v", err)
	}
	if _, err := svc.Search(context.Background(), textRequest(t, 4, 0, f)); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if !compiler.called {
		t.Error("compiler should run for filtered requests")
	}
	if repo.lastPred == nil {
		t.Error("compiled predicate should reach the repository")
	}
}

func TestSearch_NoFilterSkipsCompiler(t *testing.T) {
	compiler := &mockCompiler{}
	svc := newService(&mockRepo{}, compiler, &mockEmbedder{vec: []float32{1}})

	if _, err := svc.Search(context.Background(), textRequest(t, 4, 0, nil)); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if compiler.called {
		t.Error("compiler must not run without a filter")
	}
}

func TestSearch_CompileErrorPropagates(t *testing.T) {
	compiler := &mockCompiler{err: domain.ErrUnsupportedField}
	repo := &mockRepo{}
	svc := newService(repo, compiler, &mockEmbedder{vec: []float32{1}})

	f, err := domfilter.Eq("color", "red")
	if err != nil {
		t.Fatalf("Eq: %v", err)
	}
	_, err = svc.Search(context.Background(), textRequest(t, 4, 0, f))
	if !errors.Is(err, domain.ErrUnsupportedField) {
		t.Errorf("expected ErrUnsupportedField, got %v", err)
	}
	if repo.called {
		t.Error("repository must not run after a compile failure")
	}
}

func TestSearch_EmbedderErrorPropagates(t *testing.T) {
	embed := &mockEmbedder{err: domain.ErrEmbeddingProvider}
	repo := &mockRepo{}
	svc := newService(repo, &mockCompiler{}, embed)

	_, err := svc.Search(context.Background(), textRequest(t, 4, 0, nil))
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Errorf("expected ErrEmbeddingProvider, got %v", err)
	}
	if repo.called {
		t.Error("repository must not run after an embedding failure")
	}
}

func TestSearch_RepoErrorPropagates(t *testing.T) {
	repo := &mockRepo{err: domain.ErrStorageRead}
	svc := newService(repo, &mockCompiler{}, &mockEmbedder{vec: []float32{1}})

	_, err := svc.Search(context.Background(), textRequest(t, 4, 0, nil))
	if !errors.Is(err, domain.ErrStorageRead) {
		t.Errorf("expected ErrStorageRead, got %v", err)
	}
}
