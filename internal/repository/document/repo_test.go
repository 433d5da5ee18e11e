package document

import (
	"context"
	"errors"
	"testing"

	"github.com/cedrus-db/cedrus/internal/domain"
	domdoc "github.com/cedrus-db/cedrus/internal/domain/document"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn    func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn func(ctx context.Context, key string) (map[string]string, error)
	delFn     func(ctx context.Context, keys ...string) (int, error)

	hsetKeys []string
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	m.hsetKeys = append(m.hsetKeys, key)
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) (int, error) {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return len(keys), nil
}

func testDoc(t *testing.T, id string) domdoc.Document {
	t.Helper()
	doc, err := domdoc.New(id, "content", map[string]any{"category": "books"})
	if err != nil {
		t.Fatalf("domdoc.New: %v", err)
	}
	return doc.WithEmbedding([]float32{0.1, 0.2, 0.3})
}

func TestUpsert_WritesUnderCollectionKey(t *testing.T) {
	store := &mockStore{}
	repo := New(store, testCollection(t))

	if err := repo.Upsert(context.Background(), testDoc(t, "doc-1")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if len(store.hsetKeys) != 1 || store.hsetKeys[0] != "cedrus:test:doc-1" {
		t.Errorf("hset keys = %v", store.hsetKeys)
	}
}

func TestUpsert_WrapsStorageWrite(t *testing.T) {
	store := &mockStore{
		hsetFn: func(context.Context, string, map[string]string) error {
			return errors.New("connection reset")
		},
	}
	repo := New(store, testCollection(t))

	err := repo.Upsert(context.Background(), testDoc(t, "doc-1"))
	if !errors.Is(err, domain.ErrStorageWrite) {
		t.Errorf("expected ErrStorageWrite, got %v", err)
	}
}

func TestGet_MissingDocument(t *testing.T) {
	repo := New(&mockStore{}, testCollection(t))

	_, err := repo.Get(context.Background(), "nope")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestGet_Hydrates(t *testing.T) {
	store := &mockStore{
		hgetAllFn: func(_ context.Context, _ string) (map[string]string, error) {
			return map[string]string{
				contentField: "stored text",
				"category":   "books",
			}, nil
		},
	}
	repo := New(store, testCollection(t))

	doc, err := repo.Get(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Content() != "stored text" {
		t.Errorf("content = %q", doc.Content())
	}
	if doc.Metadata()["category"] != "books" {
		t.Errorf("metadata = %v", doc.Metadata())
	}
}

func TestDelete_ReturnsCount(t *testing.T) {
	store := &mockStore{
		delFn: func(_ context.Context, keys ...string) (int, error) {
			if len(keys) != 2 {
				t.Errorf("expected 2 keys, got %v", keys)
			}
			return 1, nil
		},
	}
	repo := New(store, testCollection(t))

	count, err := repo.Delete(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestDelete_EmptyIsNoop(t *testing.T) {
	store := &mockStore{
		delFn: func(_ context.Context, _ ...string) (int, error) {
			t.Error("Del should not be called for an empty batch")
			return 0, nil
		},
	}
	repo := New(store, testCollection(t))

	count, err := repo.Delete(context.Background(), nil)
	if err != nil || count != 0 {
		t.Errorf("Delete(nil) = %d, %v", count, err)
	}
}

func TestDelete_WrapsStorageWrite(t *testing.T) {
	store := &mockStore{
		delFn: func(_ context.Context, _ ...string) (int, error) {
			return 0, errors.New("down")
		},
	}
	repo := New(store, testCollection(t))

	_, err := repo.Delete(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrStorageWrite) {
		t.Errorf("expected ErrStorageWrite, got %v", err)
	}
}
