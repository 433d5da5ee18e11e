// Package document persists documents as backend hashes.
package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/cedrus-db/cedrus/internal/db"
	"github.com/cedrus-db/cedrus/internal/domain"
	domdoc "github.com/cedrus-db/cedrus/internal/domain/document"
	"github.com/cedrus-db/cedrus/internal/domain/schema"
)

// store is the consumer interface for document persistence.
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) (int, error)
}

// Repo implements the document storage contract for one collection schema.
type Repo struct {
	store store
	col   schema.Collection
}

// New creates a document repository.
func New(s store, col schema.Collection) *Repo {
	return &Repo{store: s, col: col}
}

// Upsert writes a document. Atomic for the single document; the caller owns
// batch semantics.
func (r *Repo) Upsert(ctx context.Context, doc domdoc.Document) error {
	key := r.docKey(doc.ID())
	fields := buildHashFields(&doc, r.col)

	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w: %w", key, domain.ErrStorageWrite, err)
	}
	return nil
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, id string) (domdoc.Document, error) {
	key := r.docKey(id)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domdoc.Document{}, domain.ErrDocumentNotFound
		}
		return domdoc.Document{}, fmt.Errorf("hgetall %s: %w: %w", key, domain.ErrStorageRead, err)
	}
	if len(fields) == 0 {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return parseHashFields(id, fields, r.col), nil
}

// Delete removes the given documents and returns how many existed.
// Absent ids are not an error; repeating a delete yields count 0.
func (r *Repo) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(id)
	}

	count, err := r.store.Del(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("del %d keys: %w: %w", len(keys), domain.ErrStorageWrite, err)
	}
	return count, nil
}

func (r *Repo) docKey(id string) string {
	return docKey(r.col.Name(), id)
}

func docKey(collection, id string) string {
	return fmt.Sprintf("%s%s:%s", domain.KeyPrefix, collection, id)
}

// CollectionPrefix is the key prefix shared by all documents of a collection,
// used when creating the index.
func CollectionPrefix(collection string) string {
	return fmt.Sprintf("%s%s:", domain.KeyPrefix, collection)
}
