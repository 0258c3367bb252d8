package vectorstore

import (
	"errors"
	"math"
)

var ErrDimensionMismatch = errors.New("embedding dimensions differ")

// Normalize returns v scaled to unit length. A zero vector is returned as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func Cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Mean averages equal-length vectors and normalizes the result.
func Mean(vectors ...[]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, errors.New("no embeddings to combine")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.New("empty embedding")
	}
	acc := make([]float32, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, ErrDimensionMismatch
		}
		for i, x := range v {
			acc[i] += x
		}
	}
	n := float32(len(vectors))
	for i := range acc {
		acc[i] /= n
	}
	return Normalize(acc), nil
}
