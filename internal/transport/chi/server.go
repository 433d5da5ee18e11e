// Package chi is the HTTP transport: routing, JSON codecs, auth, and the
// mapping from domain errors to status codes.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cedrus-db/cedrus/internal/domain"
	domdoc "github.com/cedrus-db/cedrus/internal/domain/document"
	logpkg "github.com/cedrus-db/cedrus/internal/logger"
	searchuc "github.com/cedrus-db/cedrus/internal/usecase/search"
	storeuc "github.com/cedrus-db/cedrus/internal/usecase/store"
)

const maxBatchSize = 100

// Error codes returned in JSON error responses.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeUnsupportedField  = "unsupported_field"
	codeInvalidOperator   = "invalid_operator"
	codeVectorDimMismatch = "vector_dim_mismatch"
	codeDocumentNotFound  = "document_not_found"
	codeEmbeddingProvider = "embedding_provider_error"
	codeStorageUnavail    = "storage_unavailable"
	codeInternalError     = "internal_error"
)

// errorResponse is the JSON error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Pinger reports backend liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the document store and search services over HTTP.
type Server struct {
	store         *storeuc.Service
	search        *searchuc.Service
	db            Pinger
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(store *storeuc.Service, search *searchuc.Service, db Pinger, logger *zap.Logger) *Server {
	s := &Server{
		store:  store,
		search: search,
		db:     db,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrUnsupportedField, http.StatusBadRequest, codeUnsupportedField),
		sentinelHandler(domain.ErrInvalidOperator, http.StatusBadRequest, codeInvalidOperator),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, codeVectorDimMismatch),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrStorageWrite, http.StatusServiceUnavailable, codeStorageUnavail),
		sentinelHandler(domain.ErrStorageRead, http.StatusServiceUnavailable, codeStorageUnavail),
	}
	return s
}

// RegisterRoutes mounts all API routes onto the router. Middleware is
// composed by the caller.
func (s *Server) RegisterRoutes(r chirouter.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chirouter.Router) {
		r.Post("/documents", s.AddDocuments)
		r.Get("/documents/{id}", s.GetDocument)
		r.Delete("/documents", s.DeleteDocuments)
		r.Post("/search", s.Search)
		r.Post("/schema", s.EnsureSchema)
		r.Delete("/schema", s.DropSchema)
	})
}

// AddDocuments handles POST /api/v1/documents.
func (s *Server) AddDocuments(w http.ResponseWriter, r *http.Request) {
	var req addDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Documents) == 0 || len(req.Documents) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("documents count must be between 1 and %d", maxBatchSize))
		return
	}

	docs := make([]domdoc.Document, 0, len(req.Documents))
	for _, item := range req.Documents {
		doc, err := documentFromItem(item)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
			return
		}
		docs = append(docs, doc)
	}

	ids, err := s.store.Add(r.Context(), docs)
	if err != nil {
		// ids covers the prefix written before the failure.
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, addDocumentsResponse{IDs: ids, Count: len(ids)})
}

// GetDocument handles GET /api/v1/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chirouter.URLParam(r, "id")

	doc, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, documentToWire(doc))
}

// DeleteDocuments handles DELETE /api/v1/documents.
func (s *Server) DeleteDocuments(w http.ResponseWriter, r *http.Request) {
	var req deleteDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.IDs) > maxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("ids count must be at most %d", maxBatchSize))
		return
	}

	deleted, err := s.store.Delete(r.Context(), req.IDs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteDocumentsResponse{Deleted: deleted})
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	searchReq, err := searchRequestFromWire(req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			s.handleDomainError(w, r, err)
			return
		}
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	results, err := s.search.Search(r.Context(), searchReq)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]searchResultItem, len(results))
	for i := range results {
		items[i] = searchResultToWire(results[i])
	}

	writeJSON(w, http.StatusOK, searchResponse{Items: items, Total: len(items)})
}

// EnsureSchema handles POST /api/v1/schema.
func (s *Server) EnsureSchema(w http.ResponseWriter, r *http.Request) {
	result, err := s.store.EnsureSchema(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := ensureSchemaResponse{Created: result.Created}
	if result.Warning != nil {
		resp.Warning = result.Warning.Error()
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// DropSchema handles DELETE /api/v1/schema.
func (s *Server) DropSchema(w http.ResponseWriter, r *http.Request) {
	existed, err := s.store.DropSchema(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dropSchemaResponse{Dropped: existed})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	status := "healthy"
	httpStatus := http.StatusOK

	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		checks["database"] = "unreachable"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrUnsupportedField,
		domain.ErrInvalidOperator,
		domain.ErrDimensionMismatch,
		domain.ErrDocumentNotFound,
		domain.ErrEmbeddingProvider,
		domain.ErrStorageWrite,
		domain.ErrStorageRead,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// handleDomainError logs with the request-scoped logger attached by the
// middleware, so request_id lands on the error line.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())

	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
