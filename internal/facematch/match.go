package facematch

import (
	"fmt"
	"math"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-auth/internal/constants"
)

// Matcher compares probe embeddings against stored templates.
type Matcher struct {
	// Tolerance is the maximum allowed minimum distance
	Tolerance float64
	// MinConfidence is the minimum allowed 1 - minDistance
	MinConfidence float64

	distance hnsw.DistanceFunc
}

// NewMatcher creates a matcher using the named distance metric ("euclidean" or "cosine").
func NewMatcher(tolerance, minConfidence float64, metric string) (*Matcher, error) {
	fn, err := DistanceFunc(metric)
	if err != nil {
		return nil, err
	}
	return &Matcher{
		Tolerance:     tolerance,
		MinConfidence: minConfidence,
		distance:      fn,
	}, nil
}

// DefaultMatcher returns a euclidean matcher with the default thresholds.
func DefaultMatcher() *Matcher {
	return &Matcher{
		Tolerance:     constants.DefaultFaceTolerance,
		MinConfidence: constants.DefaultMinConfidence,
		distance:      hnsw.EuclideanDistance,
	}
}

// DistanceFunc resolves a metric name to its distance function.
func DistanceFunc(metric string) (hnsw.DistanceFunc, error) {
	switch metric {
	case "", constants.MetricEuclidean:
		return hnsw.EuclideanDistance, nil
	case constants.MetricCosine:
		return hnsw.CosineDistance, nil
	default:
		return nil, fmt.Errorf("unknown distance metric %q", metric)
	}
}

// MinDistance returns the smallest distance between probe and any stored
// embedding of the same dimension. ok is false when nothing was comparable.
func (m *Matcher) MinDistance(stored []Embedding, probe Embedding) (minDistance float64, ok bool) {
	minDistance = math.Inf(1)
	for _, s := range stored {
		// hnsw distance functions index both slices by the first one's length
		if len(s) != len(probe) || len(s) == 0 {
			continue
		}
		d := float64(m.distance(s, probe))
		if d < minDistance {
			minDistance = d
		}
		ok = true
	}
	return minDistance, ok
}

// Compare matches probe against stored. Both the distance and the confidence
// threshold must hold for a match. An empty stored set never matches.
func (m *Matcher) Compare(stored []Embedding, probe Embedding) MatchResult {
	if len(stored) == 0 {
		return NoMatch
	}

	minDistance, ok := m.MinDistance(stored, probe)
	if !ok {
		return NoMatch
	}

	confidence := 1 - minDistance
	return MatchResult{
		IsMatch:    minDistance <= m.Tolerance && confidence >= m.MinConfidence,
		Confidence: confidence,
	}
}

// Compare matches probe against stored using the default matcher.
func Compare(stored []Embedding, probe Embedding) MatchResult {
	return DefaultMatcher().Compare(stored, probe)
}

// ClampConfidence limits a confidence value to [0, 1] for display.
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
