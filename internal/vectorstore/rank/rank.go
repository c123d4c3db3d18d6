// Package rank holds the brute-force similarity helpers shared by the
// in-process and redis vector stores.
package rank

import (
	"math"
	"sort"

	"ragqa/internal/domain"
)

// Cosine returns the cosine similarity of a and b over their common prefix.
// Zero vectors score 0.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := range n {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK sorts matches by descending score and keeps the first k.
// Ties keep their input order.
func TopK(matches []domain.Match, k int) []domain.Match {
	if k <= 0 {
		return []domain.Match{}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}

// CloneMetadata returns a shallow copy of m.
func CloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
