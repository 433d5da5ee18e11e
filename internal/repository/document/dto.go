package document

import (
	"encoding/binary"
	"math"
	"strconv"

	domdoc "github.com/cedrus-db/cedrus/internal/domain/document"
	"github.com/cedrus-db/cedrus/internal/domain/schema"
)

// contentField is the reserved hash field holding the document text.
const contentField = "__content"

// buildHashFields flattens a Document into a hash. The vector goes under the
// schema's vector path as little-endian float32 bytes; metadata values are
// encoded by their declared or inferred kind.
func buildHashFields(doc *domdoc.Document, col schema.Collection) map[string]string {
	m := make(map[string]string, 2+len(doc.Metadata()))
	m[contentField] = doc.Content()
	m[col.VectorPath()] = vectorToBytes(doc.Embedding())
	for k, v := range doc.Metadata() {
		m[k] = encodeScalar(v)
	}
	return m
}

// parseHashFields hydrates a Document from a hash. Declared numeric fields
// parse back to float64, declared tag fields holding "true"/"false" parse to
// bool; everything else stays a string.
func parseHashFields(id string, fields map[string]string, col schema.Collection) domdoc.Document {
	var content string
	var vector []float32
	metadata := make(map[string]any, len(fields))

	for k, v := range fields {
		switch k {
		case contentField:
			content = v
		case col.VectorPath():
			vector = bytesToVector(v)
		default:
			metadata[k] = decodeScalar(k, v, col)
		}
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	return domdoc.Reconstruct(id, content, metadata, vector)
}

func encodeScalar(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return v.(string)
	}
}

func decodeScalar(field, raw string, col schema.Collection) any {
	if f, ok := col.FieldByName(field); ok && f.Kind() == schema.KindNumeric {
		if num, err := strconv.ParseFloat(raw, 64); err == nil {
			return num
		}
	}
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	return raw
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
