package search

import "github.com/cedrus-db/cedrus/internal/domain/document"

// Scored is a single search hit: a document with its similarity score in
// [0,1], higher meaning more similar. Transient, never persisted.
type Scored struct {
	doc   document.Document
	score float64
}

// NewScored creates a scored search hit.
func NewScored(doc document.Document, score float64) Scored {
	return Scored{doc: doc, score: score}
}

// Document returns the matched document.
func (s *Scored) Document() document.Document { return s.doc }

// Score returns the similarity score.
func (s *Scored) Score() float64 { return s.score }
