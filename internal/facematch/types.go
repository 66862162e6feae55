// Package facematch decides whether a probe face embedding matches the
// embeddings stored for an identity.
package facematch

import "slices"

// Embedding is a fixed-dimension face descriptor produced by the encoder for
// one detected face. Embeddings are never modified after creation.
type Embedding []float32

// Clone returns a copy that does not share the backing array.
func (e Embedding) Clone() Embedding {
	return slices.Clone(e)
}

// Equal reports whether both embeddings hold exactly the same values.
func (e Embedding) Equal(other Embedding) bool {
	return slices.Equal(e, other)
}

// MatchResult is the outcome of comparing a probe against stored embeddings.
// Confidence is 1 - minDistance and is not clamped.
type MatchResult struct {
	IsMatch    bool    `json:"is_match"`
	Confidence float64 `json:"confidence"`
}

// NoMatch is returned when nothing could be compared.
var NoMatch = MatchResult{IsMatch: false, Confidence: 0}
