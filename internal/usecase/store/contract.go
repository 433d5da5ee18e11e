package store

import (
	"context"

	domdoc "github.com/cedrus-db/cedrus/internal/domain/document"
	"github.com/cedrus-db/cedrus/internal/domain/schema"
)

// Repository defines the storage contract for document operations.
type Repository interface {
	Upsert(ctx context.Context, doc domdoc.Document) error
	Get(ctx context.Context, id string) (domdoc.Document, error)
	Delete(ctx context.Context, ids []string) (int, error)
}

// Bootstrapper performs idempotent schema initialization and teardown.
type Bootstrapper interface {
	Ensure(ctx context.Context, col schema.Collection) (schema.BootstrapResult, error)
	Drop(ctx context.Context, col schema.Collection) (bool, error)
}
