package search

import (
	"context"

	"github.com/cedrus-db/cedrus/internal/db"
	domfilter "github.com/cedrus-db/cedrus/internal/domain/filter"
	domsearch "github.com/cedrus-db/cedrus/internal/domain/search"
)

// Repository defines the storage contract for similarity queries.
type Repository interface {
	QuerySimilar(ctx context.Context, vector []float32, topK int, pred db.Predicate) ([]domsearch.Scored, error)
}

// FilterCompiler translates a filter expression into a backend predicate.
type FilterCompiler interface {
	Compile(expr domfilter.Expression) (db.Predicate, error)
}
