// Package embedding provides shared helpers for the embedding service
// adapters: unit normalisation, query prefixing, and request rate
// limiting.
package embedding

import (
	"math"
	"strings"
)

// Normalize scales v to unit length in place and returns it. The index
// ranks by squared L2, which matches cosine ranking only for unit
// vectors, so every adapter normalises its model output before handing
// it over. Zero vectors come back unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// QueryPrefix returns the prefix a model expects on search queries.
// E5-family models are trained with asymmetric "query: "/"passage: "
// markers; most other embedding models use none.
func QueryPrefix(model string) string {
	if strings.Contains(strings.ToLower(model), "e5") {
		return "query: "
	}
	return ""
}
