package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Vector       []float32
	K            int
	Predicate    Predicate // optional pre-filter; nil means match all
	Metric       DistanceMetric
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit. Score is normalized to [0,1] with
// higher meaning more similar, regardless of the distance metric.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
