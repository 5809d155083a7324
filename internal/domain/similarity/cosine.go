// Package similarity turns a pair of embeddings into a bounded match score.
package similarity

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/atscore/internal/domain"
)

// Cosine returns the cosine of the angle between a and b, accumulated in float64.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%d vs %d: %w", len(a), len(b), domain.ErrDimensionMismatch)
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty vector: %w", domain.ErrZeroVector)
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, domain.ErrZeroVector
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Percent rescales a cosine to [0, 100] rounded to two decimals.
// Negative similarity counts as no match.
func Percent(cos float64) float64 {
	p := math.Round(cos*100*100) / 100
	switch {
	case p < 0 || math.IsNaN(p):
		return 0
	case p > 100:
		return 100
	}
	return p
}
