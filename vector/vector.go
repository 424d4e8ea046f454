// Package vector provides similarity measures over embedding vectors.
package vector

import (
	"gonum.org/v1/gonum/floats"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// It returns 0 when either vector is empty, the lengths differ, or either
// vector has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	x, y := widen(a), widen(b)

	na, nb := floats.Norm(x, 2), floats.Norm(y, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(x, y) / (na * nb)
}

// MostSimilar returns the index of the candidate closest to query and its
// similarity, or -1 if there are no candidates.
func MostSimilar(query []float32, candidates [][]float32) (int, float64) {
	best, bestScore := -1, 0.0
	for i, c := range candidates {
		score := CosineSimilarity(query, c)
		if best == -1 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
