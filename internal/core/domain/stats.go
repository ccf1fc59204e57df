package domain

// IndexStats reports the state of the vector index.
type IndexStats struct {
	// TotalVectors is the vector count inside the ANN structure.
	// May exceed TotalChunks after company removals (vectors are hidden,
	// not reclaimed, until a rebuild).
	TotalVectors int `json:"total_vectors"`

	// TotalChunks is the number of live metadata entries.
	TotalChunks int `json:"total_chunks"`

	// PendingVectors counts vectors buffered while the index awaits its
	// training minimum. Zero once trained.
	PendingVectors int `json:"pending_vectors,omitempty"`

	// CompaniesIndexed is the number of distinct company ids present.
	CompaniesIndexed int `json:"companies_indexed"`

	// FilingTypes maps form type to live chunk count.
	FilingTypes map[string]int `json:"filing_types"`

	// Trained reports whether the ANN codebooks have been fit.
	Trained bool `json:"is_trained"`

	// Dimension is the configured embedding width.
	Dimension int `json:"embedding_dim"`

	// IndexKind names the structure, e.g. "ivf_flat" or "ivf_pq".
	IndexKind string `json:"index_type"`
}

// EngineStats extends IndexStats with embedding model information for
// the public get-stats surface.
type EngineStats struct {
	IndexStats

	// EmbeddingModel describes the model serving queries, or "hybrid".
	EmbeddingModel string `json:"embedding_model"`
}

// BatchStats summarises one batch indexing run over a company's filings.
type BatchStats struct {
	// CompanyTicker identifies the company indexed.
	CompanyTicker string `json:"company"`

	// TotalFilings is the number of filings considered.
	TotalFilings int `json:"total_filings"`

	// IndexedFilings is the number successfully chunked and added.
	IndexedFilings int `json:"indexed_filings"`

	// TotalChunks is the number of chunks added across all filings.
	TotalChunks int `json:"total_chunks"`

	// FailedFilings lists accession numbers of filings that failed.
	// A failed filing never aborts the batch.
	FailedFilings []string `json:"failed_filings"`
}
