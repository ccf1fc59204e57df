// Package ivfpq implements the on-disk approximate-nearest-neighbour
// index: an inverted-file (IVF) structure over k-means coarse cells,
// optionally compressed with product quantization (PQ).
//
// The index stores one vector plus lightweight positional metadata per
// chunk and deliberately never the chunk text, so resident memory stays
// bounded at multi-million-chunk scale. Because IVF/PQ codebooks are
// fit from data, the index starts Untrained: incoming vectors accumulate
// in a pending buffer until the training minimum is reached, then the
// codebooks are fit once and the whole buffer is committed in one pass.
//
// Persistence is three artifacts that must stay mutually consistent:
// the ANN binary, the metadata map, and the id map. Each save stamps a
// fresh artifact id into all three; load rejects any mixed generation
// or positional inconsistency and falls back to a fresh index.
package ivfpq
