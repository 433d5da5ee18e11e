package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cedrus-db/cedrus/internal/db"
	"github.com/cedrus-db/cedrus/internal/domain"
	domdoc "github.com/cedrus-db/cedrus/internal/domain/document"
	domfilter "github.com/cedrus-db/cedrus/internal/domain/filter"
	"github.com/cedrus-db/cedrus/internal/domain/schema"
	domsearch "github.com/cedrus-db/cedrus/internal/domain/search"
	searchuc "github.com/cedrus-db/cedrus/internal/usecase/search"
	storeuc "github.com/cedrus-db/cedrus/internal/usecase/store"
)

// --- Mocks ---

type mockDocRepo struct {
	upsertErr error
	getDoc    domdoc.Document
	getErr    error
	deleteN   int
	deleteErr error
	upserted  []string
}

func (m *mockDocRepo) Upsert(_ context.Context, doc domdoc.Document) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, doc.ID())
	return nil
}

func (m *mockDocRepo) Get(_ context.Context, _ string) (domdoc.Document, error) {
	if m.getErr != nil {
		return domdoc.Document{}, m.getErr
	}
	return m.getDoc, nil
}

func (m *mockDocRepo) Delete(_ context.Context, ids []string) (int, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	if m.deleteN >= 0 {
		return m.deleteN, nil
	}
	return len(ids), nil
}

type mockBoot struct {
	result      schema.BootstrapResult
	err         error
	dropExisted bool
	dropErr     error
}

func (m *mockBoot) Ensure(_ context.Context, _ schema.Collection) (schema.BootstrapResult, error) {
	return m.result, m.err
}

func (m *mockBoot) Drop(_ context.Context, _ schema.Collection) (bool, error) {
	return m.dropExisted, m.dropErr
}

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type mockSearchRepo struct {
	results []domsearch.Scored
	err     error
}

func (m *mockSearchRepo) QuerySimilar(
	_ context.Context, _ []float32, _ int, _ db.Predicate,
) ([]domsearch.Scored, error) {
	return m.results, m.err
}

type mockCompiler struct {
	err error
}

func (m *mockCompiler) Compile(_ domfilter.Expression) (db.Predicate, error) {
	if m.err != nil {
		return nil, m.err
	}
	return db.Equality{Field: "category", Value: db.StringScalar("x")}, nil
}

type serverFixture struct {
	server   *Server
	docRepo  *mockDocRepo
	boot     *mockBoot
	embed    *mockEmbedder
	searchy  *mockSearchRepo
	compiler *mockCompiler
}

func newFixture(t *testing.T) *serverFixture {
	t.Helper()
	col, err := schema.New("test", "", "", 3, schema.MetricCosine, nil)
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}

	f := &serverFixture{
		docRepo:  &mockDocRepo{deleteN: -1},
		boot:     &mockBoot{},
		embed:    &mockEmbedder{vec: []float32{0.1, 0.2, 0.3}},
		searchy:  &mockSearchRepo{},
		compiler: &mockCompiler{},
	}

	logger := zap.NewNop()
	storeSvc := storeuc.New(f.docRepo, f.boot, f.embed, col, logger)
	searchSvc := searchuc.New(f.searchy, f.compiler, f.embed, logger)
	f.server = NewServer(storeSvc, searchSvc, nil, logger)
	return f
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func doWithID(t *testing.T, handler http.HandlerFunc, method, id string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/", nil)
	rctx := chirouter.NewRouteContext()
	rctx.URLParams.Add("id", id)
	req = req.WithContext(context.WithValue(req.Context(), chirouter.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// --- Tests ---

func TestAddDocuments_OK(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.server.AddDocuments, "POST",
		`{"documents":[{"id":"doc-1","content":"hello"},{"content":"anonymous"}]}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp addDocumentsResponse
	decodeBody(t, rr, &resp)
	if resp.Count != 2 || len(resp.IDs) != 2 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.IDs[0] != "doc-1" {
		t.Errorf("first id = %q", resp.IDs[0])
	}
	if resp.IDs[1] == "" {
		t.Error("second document should get a generated id")
	}
}

func TestAddDocuments_InvalidBody(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.server.AddDocuments, "POST", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestAddDocuments_EmptyBatch(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.server.AddDocuments, "POST", `{"documents":[]}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestAddDocuments_ValidationFailure(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.server.AddDocuments, "POST",
		`{"documents":[{"id":"bad id","content":"x"}]}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}

	var resp errorResponse
	decodeBody(t, rr, &resp)
	if resp.Code != codeValidationFailed {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestAddDocuments_EmbeddingFailure_502(t *testing.T) {
	f := newFixture(t)
	f.embed.err = domain.ErrEmbeddingProvider

	rr := doJSON(t, f.server.AddDocuments, "POST",
		`{"documents":[{"id":"doc-1","content":"hello"}]}`)
	if rr.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rr.Code)
	}
}

func TestAddDocuments_StorageFailure_503(t *testing.T) {
	f := newFixture(t)
	f.docRepo.upsertErr = domain.ErrStorageWrite

	rr := doJSON(t, f.server.AddDocuments, "POST",
		`{"documents":[{"id":"doc-1","content":"hello"}]}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestGetDocument_OK(t *testing.T) {
	f := newFixture(t)
	doc, _ := domdoc.New("doc-1", "hello", map[string]any{"category": "books"})
	f.docRepo.getDoc = doc.WithEmbedding([]float32{0.1, 0.2, 0.3})

	rr := doWithID(t, f.server.GetDocument, "GET", "doc-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp documentResponse
	decodeBody(t, rr, &resp)
	if resp.ID != "doc-1" || resp.Content != "hello" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Metadata["category"] != "books" {
		t.Errorf("metadata = %v", resp.Metadata)
	}
	if len(resp.Embedding) != 3 {
		t.Errorf("embedding = %v", resp.Embedding)
	}
}

func TestGetDocument_NotFound_404(t *testing.T) {
	f := newFixture(t)
	f.docRepo.getErr = domain.ErrDocumentNotFound

	rr := doWithID(t, f.server.GetDocument, "GET", "ghost")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}

	var resp errorResponse
	decodeBody(t, rr, &resp)
	if resp.Code != codeDocumentNotFound {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestDeleteDocuments_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.docRepo.deleteN = 0

	rr := doJSON(t, f.server.DeleteDocuments, "DELETE", `{"ids":["ghost"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp deleteDocumentsResponse
	decodeBody(t, rr, &resp)
	if resp.Deleted != 0 {
		t.Errorf("deleted = %d, want 0", resp.Deleted)
	}
}

func TestSearch_OK(t *testing.T) {
	f := newFixture(t)
	doc, _ := domdoc.New("doc-1", "found", map[string]any{"category": "books"})
	f.searchy.results = []domsearch.Scored{domsearch.NewScored(doc, 0.93)}

	rr := doJSON(t, f.server.Search, "POST", `{"query":"hello","top_k":4}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp searchResponse
	decodeBody(t, rr, &resp)
	if resp.Total != 1 || len(resp.Items) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	item := resp.Items[0]
	if item.ID != "doc-1" || item.Content != "found" || item.Score != 0.93 {
		t.Errorf("item = %+v", item)
	}
}

func TestSearch_EmptyResultIsOK(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.server.Search, "POST", `{"query":"nothing here"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp searchResponse
	decodeBody(t, rr, &resp)
	if resp.Total != 0 {
		t.Errorf("total = %d, want 0", resp.Total)
	}
}

func TestSearch_WithFilter(t *testing.T) {
	f := newFixture(t)

	body := `{
		"query": "hello",
		"filter": {
			"op": "and",
			"operands": [
				{"op": "eq", "field": "category", "value": "books"},
				{"op": "in", "field": "year", "values": [2020, 2021]}
			]
		}
	}`
	rr := doJSON(t, f.server.Search, "POST", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestSearch_UnknownFilterOp(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.server.Search, "POST",
		`{"query":"q","filter":{"op":"between","field":"year","value":5}}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestSearch_UnsupportedField_400(t *testing.T) {
	f := newFixture(t)
	f.compiler.err = domain.ErrUnsupportedField

	rr := doJSON(t, f.server.Search, "POST",
		`{"query":"q","filter":{"op":"eq","field":"color","value":"red"}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	var resp errorResponse
	decodeBody(t, rr, &resp)
	if resp.Code != codeUnsupportedField {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestSearch_MissingQueryAndVector_400(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.server.Search, "POST", `{"top_k":4}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestSearch_BadThreshold_400(t *testing.T) {
	f := newFixture(t)

	rr := doJSON(t, f.server.Search, "POST", `{"query":"q","threshold":1.5}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestSearch_StorageFailure_503(t *testing.T) {
	f := newFixture(t)
	f.searchy.err = domain.ErrStorageRead

	rr := doJSON(t, f.server.Search, "POST", `{"query":"q"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestEnsureSchema_Created(t *testing.T) {
	f := newFixture(t)
	f.boot.result = schema.BootstrapResult{Created: true}

	rr := doJSON(t, f.server.EnsureSchema, "POST", ``)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}

	var resp ensureSchemaResponse
	decodeBody(t, rr, &resp)
	if !resp.Created || resp.Warning != "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestEnsureSchema_MismatchWarning(t *testing.T) {
	f := newFixture(t)
	f.boot.result = schema.BootstrapResult{Warning: domain.ErrSchemaMismatch}

	rr := doJSON(t, f.server.EnsureSchema, "POST", ``)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp ensureSchemaResponse
	decodeBody(t, rr, &resp)
	if resp.Created || resp.Warning == "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestDropSchema_ReportsExistence(t *testing.T) {
	for _, existed := range []bool{true, false} {
		f := newFixture(t)
		f.boot.dropExisted = existed

		rr := doJSON(t, f.server.DropSchema, "DELETE", ``)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}

		var resp dropSchemaResponse
		decodeBody(t, rr, &resp)
		if resp.Dropped != existed {
			t.Errorf("dropped = %v, want %v", resp.Dropped, existed)
		}
	}
}

func TestDropSchema_StorageFailure_503(t *testing.T) {
	f := newFixture(t)
	f.boot.dropErr = domain.ErrStorageWrite

	rr := doJSON(t, f.server.DropSchema, "DELETE", ``)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}
