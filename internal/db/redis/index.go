package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/cedrus-db/cedrus/internal/db"
)

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes an FT index by name.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// IndexExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

// IndexInfo returns the live vector field attributes of an index via FT.INFO.
func (s *Store) IndexInfo(ctx context.Context, name string) (*db.IndexAttributes, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index name") {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return parseIndexInfo(raw), nil
}

// parseIndexInfo walks the FT.INFO key/value reply looking for the vector
// attribute's dim and distance_metric. Unknown layouts yield zero attributes;
// the caller treats that as "no mismatch detectable".
func parseIndexInfo(raw []rueidis.RedisMessage) *db.IndexAttributes {
	attrs := &db.IndexAttributes{}

	for i := 0; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil || key != "attributes" {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		for _, f := range fields {
			attr, err := f.ToArray()
			if err != nil {
				continue
			}
			if vec, ok := parseVectorAttribute(attr); ok {
				return vec
			}
		}
	}

	return attrs
}

func parseVectorAttribute(attr []rueidis.RedisMessage) (*db.IndexAttributes, bool) {
	kv := make(map[string]string, len(attr)/2)
	for j := 0; j+1 < len(attr); j += 2 {
		k, err := attr[j].ToString()
		if err != nil {
			continue
		}
		v, err := attr[j+1].ToString()
		if err != nil {
			if n, numErr := attr[j+1].AsInt64(); numErr == nil {
				v = strconv.FormatInt(n, 10)
			} else {
				continue
			}
		}
		kv[strings.ToLower(k)] = v
	}

	if !strings.EqualFold(kv["type"], "VECTOR") {
		return nil, false
	}

	out := &db.IndexAttributes{
		VectorMetric: db.DistanceMetric(strings.ToUpper(kv["distance_metric"])),
	}
	if dim, err := strconv.Atoi(kv["dim"]); err == nil {
		out.VectorDim = dim
	}
	return out, true
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name, "ON", "HASH"}

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}

	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	args := []string{f.Name}

	switch f.Type {
	case db.IndexFieldNumeric:
		args = append(args, "NUMERIC")

	case db.IndexFieldTag:
		args = append(args, "TAG")

	case db.IndexFieldVector:
		vectorArgs, err := buildVectorFieldArgs(f)
		if err != nil {
			return nil, err
		}
		args = append(args, vectorArgs...)

	default:
		return nil, errors.New("unknown field type")
	}

	return args, nil
}

func buildVectorFieldArgs(f *db.IndexField) ([]string, error) {
	if f.VectorDim <= 0 {
		return nil, errors.New("vector DIM must be positive")
	}

	algo := f.VectorAlgo
	if algo == "" {
		algo = db.VectorHNSW
	}

	distance := f.VectorDistance
	if distance == "" {
		distance = db.DistanceCosine
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}

	if algo == db.VectorHNSW {
		if f.VectorM > 0 {
			attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
		}
		if f.VectorEFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
		}
	}

	result := make([]string, 0, 3+len(attrs))
	result = append(result, "VECTOR", string(algo), strconv.Itoa(len(attrs)))
	result = append(result, attrs...)

	return result, nil
}
