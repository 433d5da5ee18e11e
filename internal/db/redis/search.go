package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/cedrus-db/cedrus/internal/db"
)

// SearchKNN runs a KNN vector similarity search via FT.SEARCH. Results come
// back ordered by ascending distance; scores are normalized to [0,1]
// similarity per the query's distance metric.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.VectorField == "" {
		return nil, fmt.Errorf("vector field is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	scoreField := knnScoreField(q.VectorField)
	queryStr := buildKNNQuery(q)

	args := []string{q.IndexName, queryStr}

	if len(q.ReturnFields) > 0 {
		ret := make([]string, 0, len(q.ReturnFields)+1)
		ret = append(ret, q.ReturnFields...)
		ret = append(ret, scoreField)
		args = append(args, "RETURN", strconv.Itoa(len(ret)))
		args = append(args, ret...)
	}

	args = append(args,
		"SORTBY", scoreField,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseKNNResult(raw, scoreField, q.Metric)
}

// buildKNNQuery renders "(<filter>)=>[KNN k @field $BLOB]" with "*" when no
// filter was compiled.
func buildKNNQuery(q *db.KNNQuery) string {
	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB]", q.K, q.VectorField)
	if q.Predicate == nil {
		return "*=>" + knnPart
	}
	return fmt.Sprintf("(%s)=>%s", renderPredicate(q.Predicate), knnPart)
}

func knnScoreField(vectorField string) string {
	return "__" + vectorField + "_score"
}

// --- Result parsing ---

func parseKNNResult(raw []rueidis.RedisMessage, scoreField string, metric db.DistanceMetric) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		}

		if distStr, ok := entry.Fields[scoreField]; ok {
			if dist, err := strconv.ParseFloat(distStr, 64); err == nil {
				entry.Score = normalizeScore(dist, metric)
			}
			delete(entry.Fields, scoreField)
		}

		entries = append(entries, entry)
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

// normalizeScore converts a backend distance into a [0,1] similarity.
// Cosine and IP distances are "1 - similarity" on the backend; L2 is an
// unbounded distance mapped through 1/(1+d).
func normalizeScore(dist float64, metric db.DistanceMetric) float64 {
	switch metric {
	case db.DistanceL2:
		if dist < 0 {
			dist = 0
		}
		return 1 / (1 + dist)
	default: // COSINE, IP
		return clamp01(1 - dist)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Predicate rendering ---

// renderPredicate translates a compiled predicate into an FT.SEARCH
// pre-filter query string. Rendering is deterministic: the same predicate
// always yields the same bytes, and operand order is never changed.
func renderPredicate(p db.Predicate) string {
	switch v := p.(type) {
	case db.Equality:
		clause := renderEquality(v.Field, v.Value)
		if v.Negated {
			return "-" + clause
		}
		return clause

	case db.NumericRange:
		return renderRange(v)

	case db.Membership:
		clause := renderMembership(v)
		if v.Negated {
			return "-" + clause
		}
		return clause

	case db.Conjunction:
		parts := make([]string, len(v.Operands))
		for i, op := range v.Operands {
			parts[i] = renderPredicate(op)
		}
		return "(" + strings.Join(parts, " ") + ")"

	case db.Disjunction:
		parts := make([]string, len(v.Operands))
		for i, op := range v.Operands {
			parts[i] = renderPredicate(op)
		}
		return "(" + strings.Join(parts, " | ") + ")"

	default:
		return ""
	}
}

func renderEquality(field string, value db.Scalar) string {
	switch value.Kind {
	case db.ScalarNumber:
		num := formatNumber(value.Num)
		return fmt.Sprintf("@%s:[%s %s]", field, num, num)
	case db.ScalarBool:
		return fmt.Sprintf("@%s:{%s}", field, strconv.FormatBool(value.Bool))
	default:
		return fmt.Sprintf("@%s:{%s}", field, tagEscaper.Replace(value.Str))
	}
}

func renderRange(r db.NumericRange) string {
	minBound := "-inf"
	maxBound := "+inf"

	if r.Lower.Set {
		minBound = formatNumber(r.Lower.Value)
		if !r.Lower.Inclusive {
			minBound = "(" + minBound
		}
	}
	if r.Upper.Set {
		maxBound = formatNumber(r.Upper.Value)
		if !r.Upper.Inclusive {
			maxBound = "(" + maxBound
		}
	}

	return fmt.Sprintf("@%s:[%s %s]", r.Field, minBound, maxBound)
}

// renderMembership renders set membership. Tag and bool values collapse into
// a single tag alternation; numeric values become a disjunction of exact
// ranges, in input order.
func renderMembership(m db.Membership) string {
	allTaggable := true
	for _, v := range m.Values {
		if v.Kind == db.ScalarNumber {
			allTaggable = false
			break
		}
	}

	if allTaggable {
		parts := make([]string, len(m.Values))
		for i, v := range m.Values {
			if v.Kind == db.ScalarBool {
				parts[i] = strconv.FormatBool(v.Bool)
			} else {
				parts[i] = tagEscaper.Replace(v.Str)
			}
		}
		return fmt.Sprintf("@%s:{%s}", m.Field, strings.Join(parts, "|"))
	}

	parts := make([]string, len(m.Values))
	for i, v := range m.Values {
		parts[i] = renderEquality(m.Field, v)
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
