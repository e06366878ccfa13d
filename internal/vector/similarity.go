package vector

import "math"

// InnerProduct returns the dot product of two equal-length vectors, accumulated in float64.
// Mismatched or empty inputs return 0.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
// If either vector has zero norm, or the lengths differ, the result is 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	return cosine(InnerProduct(a, b), L2Norm(a), L2Norm(b))
}

func cosine(dot, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	s := dot / (normA * normB)
	// Rounding can push parallel vectors slightly past 1.
	return math.Max(-1, math.Min(1, s))
}
