// Package schema bootstraps the collection's vector index.
package schema

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cedrus-db/cedrus/internal/db"
	"github.com/cedrus-db/cedrus/internal/domain"
	domschema "github.com/cedrus-db/cedrus/internal/domain/schema"
	"github.com/cedrus-db/cedrus/internal/repository/document"
)

// HNSWConfig holds index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// store is the consumer interface for index lifecycle.
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexInfo(ctx context.Context, name string) (*db.IndexAttributes, error)
}

// Repo performs idempotent schema bootstrap. Not safe to call concurrently
// for the same collection; run once at startup.
type Repo struct {
	store  store
	hnsw   HNSWConfig
	logger *zap.Logger
}

// New creates a schema bootstrap repository.
func New(s store, hnsw HNSWConfig, logger *zap.Logger) *Repo {
	return &Repo{store: s, hnsw: hnsw, logger: logger}
}

// Ensure creates the collection's vector index if it does not exist. An
// existing index is never recreated or altered; if its dimensionality
// differs from the schema, the result carries an ErrSchemaMismatch warning.
func (r *Repo) Ensure(ctx context.Context, col domschema.Collection) (domschema.BootstrapResult, error) {
	exists, err := r.store.IndexExists(ctx, col.IndexName())
	if err != nil {
		return domschema.BootstrapResult{}, fmt.Errorf("probe index %s: %w: %w", col.IndexName(), domain.ErrStorageRead, err)
	}

	if exists {
		return r.checkExisting(ctx, col)
	}

	def, err := buildIndex(col, r.hnsw)
	if err != nil {
		return domschema.BootstrapResult{}, fmt.Errorf("build index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			// Lost a bootstrap race; treat as found-existing.
			return r.checkExisting(ctx, col)
		}
		return domschema.BootstrapResult{}, fmt.Errorf("create index %s: %w: %w", col.IndexName(), domain.ErrStorageWrite, err)
	}

	r.logger.Info("Vector index created",
		zap.String("index", col.IndexName()),
		zap.String("collection", col.Name()),
		zap.Int("dimensions", col.Dimensions()),
		zap.String("metric", string(col.Metric())),
	)
	return domschema.BootstrapResult{Created: true}, nil
}

// Drop removes the collection's vector index and reports whether it
// existed. Documents stay in place; only the index is dropped.
func (r *Repo) Drop(ctx context.Context, col domschema.Collection) (bool, error) {
	if err := r.store.DropIndex(ctx, col.IndexName()); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("drop index %s: %w: %w", col.IndexName(), domain.ErrStorageWrite, err)
	}

	r.logger.Info("Vector index dropped",
		zap.String("index", col.IndexName()),
		zap.String("collection", col.Name()),
	)
	return true, nil
}

// checkExisting compares the live index against the configured schema and
// reports a non-fatal warning on divergence.
func (r *Repo) checkExisting(ctx context.Context, col domschema.Collection) (domschema.BootstrapResult, error) {
	result := domschema.BootstrapResult{Created: false}

	info, err := r.store.IndexInfo(ctx, col.IndexName())
	if err != nil {
		return domschema.BootstrapResult{}, fmt.Errorf("inspect index %s: %w: %w", col.IndexName(), domain.ErrStorageRead, err)
	}

	if info.VectorDim > 0 && info.VectorDim != col.Dimensions() {
		result.Warning = fmt.Errorf(
			"%w: index %s has dimension %d, configuration says %d",
			domain.ErrSchemaMismatch, col.IndexName(), info.VectorDim, col.Dimensions(),
		)
		r.logger.Warn("Existing vector index diverges from configuration",
			zap.String("index", col.IndexName()),
			zap.Int("index_dim", info.VectorDim),
			zap.Int("config_dim", col.Dimensions()),
		)
	}

	return result, nil
}

// buildIndex maps the collection schema onto an index definition: one TAG or
// NUMERIC field per filterable field, plus the HNSW vector field.
func buildIndex(col domschema.Collection, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	b := db.NewIndex(col.IndexName()).
		Prefix(document.CollectionPrefix(col.Name()))

	for _, f := range col.Fields() {
		switch f.Kind() {
		case domschema.KindTag:
			b.Tag(f.Name())
		case domschema.KindNumeric:
			b.Numeric(f.Name())
		default:
			return nil, fmt.Errorf("unknown field kind %q for %q", f.Kind(), f.Name())
		}
	}

	b.VectorHNSW(col.VectorPath(), col.Dimensions(), metricToDistance(col.Metric()), hnsw.M, hnsw.EFConstruct)

	return b.Build()
}

func metricToDistance(m domschema.Metric) db.DistanceMetric {
	switch m {
	case domschema.MetricDotProduct:
		return db.DistanceIP
	case domschema.MetricEuclidean:
		return db.DistanceL2
	default:
		return db.DistanceCosine
	}
}
