// Package driven defines the outbound ports of the retrieval core:
// interfaces the core depends on, implemented by adapters (embedding
// services, the vector index, the filing store).
package driven
