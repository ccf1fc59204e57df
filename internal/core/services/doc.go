// Package services contains the core application services: the search
// orchestrator over the vector index and filing store, and the batch
// indexer that turns raw filings into indexed chunks.
package services
