package vector

import "math"

// Cosine returns the cosine similarity of a and b: dot(a,b) / (|a|*|b|).
//
// The result is clamped to [-1, 1]. When either vector has zero magnitude,
// or the lengths disagree, Cosine returns 0 instead of faulting; callers
// that need to distinguish a length mismatch check lengths themselves.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return float32(sim)
}

// Mean returns the arithmetic mean of the given vectors, element-wise.
// Vectors whose length differs from the first are skipped. Returns nil
// when no usable vector exists.
func Mean(vectors [][]float32) []float32 {
	var dim int
	for _, v := range vectors {
		if len(v) > 0 {
			dim = len(v)
			break
		}
	}
	if dim == 0 {
		return nil
	}

	sum := make([]float64, dim)
	count := 0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		count++
	}
	if count == 0 {
		return nil
	}

	mean := make([]float32, dim)
	for i, s := range sum {
		mean[i] = float32(s / float64(count))
	}
	return mean
}

// Normalize returns v scaled to unit length. A zero vector is returned
// unchanged.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}

	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Clamp01 clamps x to [0, 1].
func Clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
