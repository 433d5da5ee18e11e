// Package search orchestrates the similarity search pipeline: vector
// resolution, filter compilation, backend query, and post-processing.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cedrus-db/cedrus/internal/db"
	"github.com/cedrus-db/cedrus/internal/domain"
	domsearch "github.com/cedrus-db/cedrus/internal/domain/search"
)

// Service executes similarity searches. Stateless per call; every stage
// propagates its typed error unchanged and nothing is retried internally.
type Service struct {
	repo     Repository
	compiler FilterCompiler
	embed    domain.Embedder
	logger   *zap.Logger
}

// New creates a search service.
func New(repo Repository, compiler FilterCompiler, embed domain.Embedder, logger *zap.Logger) *Service {
	return &Service{repo: repo, compiler: compiler, embed: embed, logger: logger}
}

// Search runs one request through the pipeline and returns up to topK hits
// ordered by descending score, all scoring at or above the threshold.
// An empty result is success, not an error.
func (s *Service) Search(ctx context.Context, req *domsearch.Request) ([]domsearch.Scored, error) {
	if req == nil || req.TopK() <= 0 {
		return nil, fmt.Errorf("%w: request was not constructed via NewRequest", domain.ErrInvalidRequest)
	}

	vector, err := s.resolveVector(ctx, req)
	if err != nil {
		return nil, err
	}

	var pred db.Predicate
	if req.Filter() != nil {
		pred, err = s.compiler.Compile(req.Filter())
		if err != nil {
			return nil, err
		}
	}

	results, err := s.repo.QuerySimilar(ctx, vector, req.TopK(), pred)
	if err != nil {
		return nil, err
	}

	results = applyThreshold(results, req.Threshold())
	if len(results) > req.TopK() {
		results = results[:req.TopK()]
	}

	s.logger.Debug("Search completed",
		zap.Int("top_k", req.TopK()),
		zap.Float64("threshold", req.Threshold()),
		zap.Bool("filtered", req.Filter() != nil),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// resolveVector uses the request vector when given, otherwise embeds the
// query text. Provider failures propagate untouched.
func (s *Service) resolveVector(ctx context.Context, req *domsearch.Request) ([]float32, error) {
	if v := req.QueryVector(); len(v) > 0 {
		return v, nil
	}

	result, err := s.embed.Embed(ctx, req.QueryText())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	return result.Embedding, nil
}

// applyThreshold drops hits below the cutoff, preserving descending order.
func applyThreshold(results []domsearch.Scored, threshold float64) []domsearch.Scored {
	if threshold <= 0 {
		return results
	}
	kept := results[:0]
	for _, r := range results {
		if r.Score() >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}
