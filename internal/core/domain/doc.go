// Package domain contains the core value types of the filing retrieval
// pipeline: chunks, filings, search results, and index statistics.
// Types here carry no behaviour beyond validation and have no dependencies
// on adapters or infrastructure.
package domain
