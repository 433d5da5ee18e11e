package search

import (
	"fmt"

	"github.com/cedrus-db/cedrus/internal/domain"
	"github.com/cedrus-db/cedrus/internal/domain/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed query text length.
	MaxQueryLength = 4096
	// DefaultTopK is used when the caller does not specify top-K.
	DefaultTopK = 4
	// MaxTopK caps how many candidates one request may ask for.
	MaxTopK = 1000
)

// Request is a validated similarity search request. Exactly one of query
// text and query vector must be set; construction fails otherwise.
type Request struct {
	queryText   string
	queryVector []float32
	topK        int
	threshold   float64
	filter      filter.Expression
}

// NewRequest validates and normalizes search parameters.
// topK 0 defaults to DefaultTopK; threshold must lie in [0,1].
func NewRequest(
	queryText string, queryVector []float32,
	topK int, threshold float64, f filter.Expression,
) (Request, error) {
	if queryText == "" && len(queryVector) == 0 {
		return Request{}, fmt.Errorf("%w: query text or query vector is required", domain.ErrInvalidRequest)
	}
	if queryText != "" && len(queryVector) > 0 {
		return Request{}, fmt.Errorf("%w: query text and query vector are mutually exclusive", domain.ErrInvalidRequest)
	}
	if len(queryText) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidRequest, MaxQueryLength)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 0 {
		return Request{}, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrInvalidRequest, topK)
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if threshold < 0 || threshold > 1 {
		return Request{}, fmt.Errorf("%w: similarity threshold must be in [0,1], got %g", domain.ErrInvalidRequest, threshold)
	}

	return Request{
		queryText:   queryText,
		queryVector: queryVector,
		topK:        topK,
		threshold:   threshold,
		filter:      f,
	}, nil
}

// QueryText returns the query text ("" when a vector was given).
func (r *Request) QueryText() string { return r.queryText }

// QueryVector returns the query vector (nil when text was given).
func (r *Request) QueryVector() []float32 { return r.queryVector }

// TopK returns the maximum number of results.
func (r *Request) TopK() int { return r.topK }

// Threshold returns the minimum acceptable similarity score.
func (r *Request) Threshold() float64 { return r.threshold }

// Filter returns the metadata filter (nil when absent).
func (r *Request) Filter() filter.Expression { return r.filter }
