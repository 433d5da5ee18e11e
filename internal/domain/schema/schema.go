// Package schema defines the collection schema: the vector field layout and
// the set of metadata fields that may appear in filters.
package schema

import (
	"fmt"
	"strings"
)

// Defaults applied by New when the corresponding argument is empty.
const (
	DefaultCollectionName = "vector_store"
	DefaultVectorPath     = "embedding"
	DefaultIndexName      = "vector_index"
)

// Metric is the similarity metric of the vector index.
type Metric string

// Supported similarity metrics.
const (
	MetricCosine     Metric = "cosine"
	MetricDotProduct Metric = "dot_product"
	MetricEuclidean  Metric = "euclidean"
)

// IsValid reports whether m is a supported metric.
func (m Metric) IsValid() bool {
	switch m {
	case MetricCosine, MetricDotProduct, MetricEuclidean:
		return true
	}
	return false
}

// FieldKind is the index representation of a filterable metadata field.
type FieldKind string

// Filterable field kinds. Tag fields hold strings and booleans, numeric
// fields hold numbers.
const (
	KindTag     FieldKind = "tag"
	KindNumeric FieldKind = "numeric"
)

// Field is a declared filterable metadata field.
type Field struct {
	name string
	kind FieldKind
}

// NewField validates and creates a filterable field declaration.
func NewField(name string, kind FieldKind) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if strings.HasPrefix(name, "__") {
		return Field{}, fmt.Errorf("field name %q is reserved", name)
	}
	if kind != KindTag && kind != KindNumeric {
		return Field{}, fmt.Errorf("field %q: unknown kind %q", name, kind)
	}
	return Field{name: name, kind: kind}, nil
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Kind returns the field kind.
func (f Field) Kind() FieldKind { return f.kind }

// ParseFields parses config-style field declarations of the form
// "name" (tag by default), "name:tag", or "name:numeric".
func ParseFields(specs []string) ([]Field, error) {
	fields := make([]Field, 0, len(specs))
	for _, spec := range specs {
		name, kindStr, hasKind := strings.Cut(spec, ":")
		kind := KindTag
		if hasKind {
			kind = FieldKind(kindStr)
		}
		f, err := NewField(name, kind)
		if err != nil {
			return nil, fmt.Errorf("parse field %q: %w", spec, err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// Collection is an immutable collection schema. Changing it after the live
// index was created is unsupported; bootstrap surfaces a mismatch warning
// instead of silently diverging.
type Collection struct {
	name       string
	vectorPath string
	indexName  string
	dimensions int
	metric     Metric
	fields     []Field
}

// New validates and creates a collection schema. Empty name, vector path,
// index name, and metric fall back to defaults; dimensions are required.
func New(name, vectorPath, indexName string, dimensions int, metric Metric, fields []Field) (Collection, error) {
	if name == "" {
		name = DefaultCollectionName
	}
	if vectorPath == "" {
		vectorPath = DefaultVectorPath
	}
	if indexName == "" {
		indexName = DefaultIndexName
	}
	if metric == "" {
		metric = MetricCosine
	}
	if dimensions <= 0 {
		return Collection{}, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	if !metric.IsValid() {
		return Collection{}, fmt.Errorf("unknown similarity metric %q", metric)
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name()] {
			return Collection{}, fmt.Errorf("duplicate filterable field %q", f.Name())
		}
		seen[f.Name()] = true
	}

	copied := make([]Field, len(fields))
	copy(copied, fields)

	return Collection{
		name:       name,
		vectorPath: vectorPath,
		indexName:  indexName,
		dimensions: dimensions,
		metric:     metric,
		fields:     copied,
	}, nil
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// VectorPath returns the storage field name holding the embedding.
func (c Collection) VectorPath() string { return c.vectorPath }

// IndexName returns the vector index name.
func (c Collection) IndexName() string { return c.indexName }

// Dimensions returns the embedding dimensionality.
func (c Collection) Dimensions() int { return c.dimensions }

// Metric returns the similarity metric.
func (c Collection) Metric() Metric { return c.metric }

// Fields returns the filterable fields in declaration order.
func (c Collection) Fields() []Field { return c.fields }

// FieldByName looks up a filterable field.
func (c Collection) FieldByName(name string) (Field, bool) {
	for _, f := range c.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return Field{}, false
}

// BootstrapResult reports what schema bootstrap did. Warning is non-nil when
// an existing index diverges from the configured schema (ErrSchemaMismatch).
type BootstrapResult struct {
	Created bool
	Warning error
}
