package cedrus

import (
	"go.uber.org/zap"
)

// Similarity metrics accepted by WithMetric.
const (
	MetricCosine     = "cosine"
	MetricDotProduct = "dot_product"
	MetricEuclidean  = "euclidean"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	collection string
	vectorPath string
	indexName  string
	dimensions int
	metric     string
	fields     []string

	hnswM           int
	hnswEFConstruct int

	embedder Embedder
	logger   *zap.Logger
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithCollection sets the collection name. Default: "vector_store".
func WithCollection(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.collection = name
	})
}

// WithIndexName sets the vector index name. Default: "vector_index".
func WithIndexName(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexName = name
	})
}

// WithDimensions sets the embedding dimensionality. Required.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithMetric sets the similarity metric. Default: cosine.
func WithMetric(metric string) Option {
	return optionFunc(func(c *clientConfig) {
		c.metric = metric
	})
}

// WithFields declares the filterable metadata fields, each given as
// "name" (tag), "name:tag", or "name:numeric". Undeclared fields are
// stored but rejected in filters.
func WithFields(specs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.fields = specs
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithEmbedder sets the text embedding provider. Without it only
// vector queries and documents with precomputed embeddings work.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithLogger enables structured logging for client operations.
// Default: no logging.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
