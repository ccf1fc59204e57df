package ivfpq

import "math/rand"

// pqKsub is the codebook size per subquantizer (8-bit codes).
const pqKsub = 256

// productQuantizer compresses a dim-wide vector into m single-byte
// codes by splitting it into m subvectors and replacing each with the
// index of its nearest entry in a learned 256-entry codebook. This
// trades a small, tunable relevance loss for roughly an order of
// magnitude less memory per vector.
type productQuantizer struct {
	m    int // subquantizer count
	dsub int // dimensions per subvector
	// codebooks[s] holds pqKsub centroids of dsub floats, flattened.
	codebooks [][]float32
}

func newProductQuantizer(dim, m int) *productQuantizer {
	return &productQuantizer{
		m:    m,
		dsub: dim / m,
	}
}

// train fits one codebook per subquantizer over the training vectors.
func (pq *productQuantizer) train(data [][]float32, rng *rand.Rand) {
	pq.codebooks = make([][]float32, pq.m)

	sub := make([][]float32, len(data))
	for s := 0; s < pq.m; s++ {
		lo := s * pq.dsub
		hi := lo + pq.dsub
		for i, v := range data {
			sub[i] = v[lo:hi]
		}

		k := pqKsub
		if k > len(data) {
			k = len(data)
		}
		centroids := kmeans(sub, k, pq.dsub, rng)

		flat := make([]float32, pqKsub*pq.dsub)
		for c := 0; c < pqKsub; c++ {
			// When the training set was smaller than pqKsub the tail
			// codebook entries repeat earlier centroids.
			copy(flat[c*pq.dsub:(c+1)*pq.dsub], centroids[c%k])
		}
		pq.codebooks[s] = flat
	}
}

func (pq *productQuantizer) trained() bool {
	return pq.codebooks != nil
}

// encode maps a vector to its m-byte PQ code.
func (pq *productQuantizer) encode(v []float32) []byte {
	code := make([]byte, pq.m)
	for s := 0; s < pq.m; s++ {
		sub := v[s*pq.dsub : (s+1)*pq.dsub]
		book := pq.codebooks[s]

		best := 0
		var bestDist float32
		for c := 0; c < pqKsub; c++ {
			cent := book[c*pq.dsub : (c+1)*pq.dsub]
			var d float32
			for j := range sub {
				diff := sub[j] - cent[j]
				d += diff * diff
			}
			if c == 0 || d < bestDist {
				best = c
				bestDist = d
			}
		}
		code[s] = byte(best)
	}
	return code
}

// decode reconstructs the lossy approximation of a coded vector.
func (pq *productQuantizer) decode(code []byte) []float32 {
	v := make([]float32, pq.m*pq.dsub)
	for s := 0; s < pq.m; s++ {
		cent := pq.codebooks[s][int(code[s])*pq.dsub : (int(code[s])+1)*pq.dsub]
		copy(v[s*pq.dsub:(s+1)*pq.dsub], cent)
	}
	return v
}

// adcTable precomputes, for one query, the squared distance from each
// query subvector to every codebook entry. A coded vector's distance is
// then m table lookups (asymmetric distance computation).
func (pq *productQuantizer) adcTable(query []float32) []float32 {
	table := make([]float32, pq.m*pqKsub)
	for s := 0; s < pq.m; s++ {
		sub := query[s*pq.dsub : (s+1)*pq.dsub]
		book := pq.codebooks[s]
		for c := 0; c < pqKsub; c++ {
			cent := book[c*pq.dsub : (c+1)*pq.dsub]
			var d float32
			for j := range sub {
				diff := sub[j] - cent[j]
				d += diff * diff
			}
			table[s*pqKsub+c] = d
		}
	}
	return table
}

// adcDistance sums the table entries selected by a code.
func adcDistance(table []float32, code []byte) float32 {
	var d float32
	for s, c := range code {
		d += table[s*pqKsub+int(c)]
	}
	return d
}
