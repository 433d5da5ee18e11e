package domain

import "errors"

var (
	// ErrInvalidRequest signals a malformed search request (caller error).
	ErrInvalidRequest = errors.New("invalid search request")
	// ErrUnsupportedField signals a filter on a field that is not declared filterable.
	ErrUnsupportedField = errors.New("unsupported filter field")
	// ErrInvalidOperator signals a filter operator applied to an incompatible value.
	ErrInvalidOperator = errors.New("invalid filter operator")
	// ErrEmbeddingProvider signals an embedding provider failure (retryable by caller).
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrStorageWrite signals a backend write failure (retryable by caller).
	ErrStorageWrite = errors.New("storage write error")
	// ErrStorageRead signals a backend read failure (retryable by caller).
	ErrStorageRead = errors.New("storage read error")
	// ErrSchemaMismatch signals that a live index diverges from configuration.
	// Surfaced as a warning by schema bootstrap, never fatal.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrDimensionMismatch signals a vector of the wrong dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
)
