// Package vector holds the shared numeric primitives used by the taste
// pipeline. Vectors are plain float64 slices owned by the caller.
package vector

import "math"

// normEps is the threshold below which a vector is treated as zero.
const normEps = 1e-9

// Norm returns the L2 norm of v.
func Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Normalize returns v scaled to unit length. Near-zero vectors are
// returned unchanged so callers never divide by zero.
func Normalize(v []float64) []float64 {
	n := Norm(v)
	if n < normEps {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

// Cosine returns the cosine similarity of a and b. Mismatched lengths are
// compared over the shorter prefix; zero vectors yield 0.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	denom := Norm(a)*Norm(b) + normEps
	return dot / denom
}
