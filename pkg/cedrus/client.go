package cedrus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cedrus-db/cedrus/internal/db"
	dbRedis "github.com/cedrus-db/cedrus/internal/db/redis"
	"github.com/cedrus-db/cedrus/internal/domain"
	domdoc "github.com/cedrus-db/cedrus/internal/domain/document"
	"github.com/cedrus-db/cedrus/internal/domain/schema"
	domsearch "github.com/cedrus-db/cedrus/internal/domain/search"
	documentrepo "github.com/cedrus-db/cedrus/internal/repository/document"
	filterrepo "github.com/cedrus-db/cedrus/internal/repository/filter"
	schemarepo "github.com/cedrus-db/cedrus/internal/repository/schema"
	searchrepo "github.com/cedrus-db/cedrus/internal/repository/search"
	searchuc "github.com/cedrus-db/cedrus/internal/usecase/search"
	storeuc "github.com/cedrus-db/cedrus/internal/usecase/store"
)

const defaultReadinessTimeout = 10 * time.Second

// Usecase interfaces for substitution in tests.
type storeUseCase interface {
	Add(ctx context.Context, docs []domdoc.Document) ([]string, error)
	Get(ctx context.Context, id string) (domdoc.Document, error)
	Delete(ctx context.Context, ids []string) (int, error)
	EnsureSchema(ctx context.Context) (schema.BootstrapResult, error)
	DropSchema(ctx context.Context) (bool, error)
}

type searchUseCase interface {
	Search(ctx context.Context, req *domsearch.Request) ([]domsearch.Scored, error)
}

// Client is the cedrus embedded client entry point. Safe for concurrent use.
type Client struct {
	store     db.Store
	storeSvc  storeUseCase
	searchSvc searchUseCase
}

// New creates a Client and connects to the database.
// The provided context bounds the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("cedrus: database address required (use WithRedis)")
	}
	if cfg.dimensions <= 0 {
		return nil, errors.New("cedrus: vector dimensions required (use WithDimensions)")
	}

	col, err := buildCollection(cfg)
	if err != nil {
		return nil, fmt.Errorf("cedrus: %w", err)
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("cedrus: create store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("cedrus: database not ready: %w", err)
	}

	return wireClient(store, cfg, col), nil
}

func buildCollection(cfg *clientConfig) (schema.Collection, error) {
	fields, err := schema.ParseFields(cfg.fields)
	if err != nil {
		return schema.Collection{}, err
	}
	return schema.New(
		cfg.collection, cfg.vectorPath, cfg.indexName,
		cfg.dimensions, schema.Metric(cfg.metric), fields,
	)
}

func wireClient(store db.Store, cfg *clientConfig, col schema.Collection) *Client {
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var embedder domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		embedder = &embedderAdapter{inner: cfg.embedder}
	}

	docRepo := documentrepo.New(store, col)
	searchRepo := searchrepo.New(store, col)
	schemaRepo := schemarepo.New(store, schemarepo.HNSWConfig{
		M:           cfg.hnswM,
		EFConstruct: cfg.hnswEFConstruct,
	}, logger)
	converter := filterrepo.New(col)

	return &Client{
		store:     store,
		storeSvc:  storeuc.New(docRepo, schemaRepo, embedder, col, logger),
		searchSvc: searchuc.New(searchRepo, converter, embedder, logger),
	}
}

// Close releases the database connection.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// EnsureSchema creates the vector index if it does not exist. Existing
// indexes are probed and a schema divergence is reported as Warning.
func (c *Client) EnsureSchema(ctx context.Context) (SchemaResult, error) {
	result, err := c.storeSvc.EnsureSchema(ctx)
	if err != nil {
		return SchemaResult{}, err
	}
	return SchemaResult{Created: result.Created, Warning: result.Warning}, nil
}

// DropSchema removes the vector index and reports whether it existed.
// Documents stay stored; EnsureSchema rebuilds the index over them.
func (c *Client) DropSchema(ctx context.Context) (bool, error) {
	return c.storeSvc.DropSchema(ctx)
}

// AddDocuments persists documents in order, vectorizing those without an
// embedding and assigning ids to those without one. The batch is not
// transactional: on failure the returned ids cover the already-written
// prefix.
func (c *Client) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	domainDocs := make([]domdoc.Document, len(docs))
	for i, d := range docs {
		doc, err := toDomainDocument(d)
		if err != nil {
			return nil, fmt.Errorf("%w: document %d: %v", domain.ErrInvalidRequest, i, err)
		}
		domainDocs[i] = doc
	}
	return c.storeSvc.Add(ctx, domainDocs)
}

// GetDocument returns a stored document by id.
func (c *Client) GetDocument(ctx context.Context, id string) (Document, error) {
	doc, err := c.storeSvc.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	return fromDomainDocument(doc), nil
}

// DeleteDocuments removes documents by id and returns how many existed.
// Absent ids are not an error.
func (c *Client) DeleteDocuments(ctx context.Context, ids []string) (int, error) {
	return c.storeSvc.Delete(ctx, ids)
}

// Search runs a similarity search and returns hits ordered by descending
// score.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	domainReq, err := domsearch.NewRequest(
		req.Query, req.Vector, req.TopK, req.Threshold, req.Filter.expr,
	)
	if err != nil {
		return nil, err
	}

	scored, err := c.searchSvc.Search(ctx, &domainReq)
	if err != nil {
		return nil, err
	}
	return toSearchResults(scored), nil
}

// embedderAdapter wraps the public Embedder to satisfy domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %v", domain.ErrEmbeddingProvider, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder fails every Embed call (used when no embedder configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New(
		"cedrus: embedder not configured (use WithEmbedder for text queries)",
	)
}
