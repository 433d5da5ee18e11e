// Package store implements document persistence with automatic vectorization.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cedrus-db/cedrus/internal/domain"
	domdoc "github.com/cedrus-db/cedrus/internal/domain/document"
	"github.com/cedrus-db/cedrus/internal/domain/schema"
)

// Service is the document store: batch add with embedding, idempotent
// delete, and schema bootstrap. Stateless per call; safe for concurrent use.
type Service struct {
	repo   Repository
	boot   Bootstrapper
	embed  domain.Embedder
	col    schema.Collection
	logger *zap.Logger
}

// New creates a document store service.
func New(repo Repository, boot Bootstrapper, embed domain.Embedder, col schema.Collection, logger *zap.Logger) *Service {
	return &Service{repo: repo, boot: boot, embed: embed, col: col, logger: logger}
}

// Add persists documents in order. Documents without an embedding are
// vectorized first; documents without an ID get a generated one. Each
// document is written atomically, but the batch is NOT transactional: on
// failure the already-written prefix stays written and the returned ids
// cover exactly those documents. Callers retry with stable ids.
func (s *Service) Add(ctx context.Context, docs []domdoc.Document) ([]string, error) {
	ids := make([]string, 0, len(docs))

	for i, doc := range docs {
		if doc.ID() == "" {
			doc = doc.WithID(uuid.NewString())
		}

		if len(doc.Embedding()) == 0 {
			result, err := s.embed.Embed(ctx, doc.Content())
			if err != nil {
				return ids, fmt.Errorf("vectorize document %d: %w", i, err)
			}
			doc = doc.WithEmbedding(result.Embedding)
		}

		if len(doc.Embedding()) != s.col.Dimensions() {
			return ids, fmt.Errorf(
				"document %q: got %d dimensions, want %d: %w",
				doc.ID(), len(doc.Embedding()), s.col.Dimensions(), domain.ErrDimensionMismatch,
			)
		}

		if err := s.repo.Upsert(ctx, doc); err != nil {
			return ids, fmt.Errorf("add document %q: %w", doc.ID(), err)
		}
		ids = append(ids, doc.ID())
	}

	s.logger.Debug("Documents added",
		zap.String("collection", s.col.Name()),
		zap.Int("count", len(ids)),
	)
	return ids, nil
}

// Get returns a stored document by id.
func (s *Service) Get(ctx context.Context, id string) (domdoc.Document, error) {
	if id == "" {
		return domdoc.Document{}, fmt.Errorf("%w: document id is required", domain.ErrInvalidRequest)
	}

	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document %q: %w", id, err)
	}
	return doc, nil
}

// Delete removes documents by id and returns how many existed. Absent ids
// are not an error, so a repeated delete reports zero and succeeds.
func (s *Service) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	unique := dedupe(ids)
	count, err := s.repo.Delete(ctx, unique)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}

	s.logger.Debug("Documents deleted",
		zap.String("collection", s.col.Name()),
		zap.Int("requested", len(unique)),
		zap.Int("deleted", count),
	)
	return count, nil
}

// EnsureSchema bootstraps the collection index. Callers serialize this per
// collection; it is intended for a run-once at startup.
func (s *Service) EnsureSchema(ctx context.Context) (schema.BootstrapResult, error) {
	result, err := s.boot.Ensure(ctx, s.col)
	if err != nil {
		return schema.BootstrapResult{}, fmt.Errorf("ensure schema: %w", err)
	}
	return result, nil
}

// DropSchema removes the collection index and reports whether it existed.
// Documents are untouched; a later EnsureSchema rebuilds the index over them.
func (s *Service) DropSchema(ctx context.Context) (bool, error) {
	existed, err := s.boot.Drop(ctx, s.col)
	if err != nil {
		return false, fmt.Errorf("drop schema: %w", err)
	}

	s.logger.Info("Schema dropped",
		zap.String("collection", s.col.Name()),
		zap.Bool("existed", existed),
	)
	return existed, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
