// Package db defines the backend-agnostic storage contract: narrow store
// interfaces, the vector index definition model, and the compiled filter
// predicate consumed by backend implementations.
package db

import (
	"context"
	"time"
)

// Store is the database facade combining all sub-interfaces. Consumers
// depend on the narrow sub-interfaces, never on Store directly.
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based document storage. Each HSet is atomic for
// its key; nothing here is transactional across keys.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) (int, error)
}

// KVStore provides plain key-value operations (embedding cache).
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// IndexAttributes describes a live vector index as reported by the backend.
type IndexAttributes struct {
	VectorDim    int
	VectorMetric DistanceMetric
}

// IndexManager provides vector index lifecycle operations. Creation is not
// concurrent-safe for the same index name; callers serialize bootstrap.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexInfo(ctx context.Context, name string) (*IndexAttributes, error)
}

// Searcher executes approximate-nearest-neighbor queries.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}
