package ivfpq

import "math/rand"

// kmeansIters is the number of Lloyd iterations used when fitting
// centroids. Codebooks are data-dependent, so exact convergence is not
// required for retrieval quality.
const kmeansIters = 20

// l2sq returns the squared Euclidean distance between two vectors of
// equal length. Vectors are unit-normalised upstream, so ranking by
// squared L2 is equivalent to ranking by cosine similarity.
func l2sq(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// nearestCentroid returns the index of the centroid closest to v.
func nearestCentroid(centroids [][]float32, v []float32) int {
	best := 0
	bestDist := l2sq(centroids[0], v)
	for i := 1; i < len(centroids); i++ {
		if d := l2sq(centroids[i], v); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// kmeans fits k centroids to data with Lloyd's algorithm. Callers
// guarantee len(data) >= k. Empty clusters are reseeded from random
// points so exactly k centroids always come back.
func kmeans(data [][]float32, k, dim int, rng *rand.Rand) [][]float32 {
	centroids := make([][]float32, k)
	perm := rng.Perm(len(data))
	for i := 0; i < k; i++ {
		centroids[i] = append([]float32(nil), data[perm[i]]...)
	}

	assign := make([]int, len(data))
	sums := make([][]float64, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}

	for iter := 0; iter < kmeansIters; iter++ {
		changed := false
		for i, v := range data {
			c := nearestCentroid(centroids, v)
			if assign[i] != c || iter == 0 {
				changed = true
				assign[i] = c
			}
		}
		if !changed {
			break
		}

		for i := range sums {
			for j := range sums[i] {
				sums[i][j] = 0
			}
			counts[i] = 0
		}
		for i, v := range data {
			c := assign[i]
			counts[c]++
			for j, x := range v {
				sums[c][j] += float64(x)
			}
		}

		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Reseed empty cluster from a random point.
				copy(centroids[c], data[rng.Intn(len(data))])
				continue
			}
			for j := 0; j < dim; j++ {
				centroids[c][j] = float32(sums[c][j] / float64(counts[c]))
			}
		}
	}

	return centroids
}
