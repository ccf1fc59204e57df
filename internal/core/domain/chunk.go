package domain

import "time"

// SectionFullDocument is the sentinel section label used when a filing has
// no recognisable section headers, or for the preamble before the first one.
const SectionFullDocument = "FULL_DOCUMENT"

// ChunkMeta is the positional and source metadata persisted for every
// indexed chunk. It deliberately excludes the chunk text: text is
// re-derived on demand from the source filing via FilePath and the
// character span, which keeps index memory independent of corpus size.
type ChunkMeta struct {
	// FilePath locates the gzip-compressed source filing on disk.
	FilePath string `json:"file_path"`

	// Section is the detected SEC section label (e.g. "RISK FACTORS").
	Section string `json:"section"`

	// CharStart and CharEnd delimit the chunk within the *cleaned*
	// filing text. Invariant: CharStart < CharEnd.
	CharStart int `json:"char_start"`
	CharEnd   int `json:"char_end"`

	// FilingID is the owning filing's record id.
	FilingID int64 `json:"filing_id"`

	// CompanyID is the owning company's record id.
	CompanyID int64 `json:"company_id"`

	// FilingType is the SEC form type (e.g. "10-K", "8-K").
	FilingType string `json:"filing_type"`

	// FilingDate is the filing's official date.
	FilingDate time.Time `json:"filing_date"`

	// AccessionNumber is the SEC accession-style identifier.
	AccessionNumber string `json:"accession_number"`

	// IndexedAt records when the chunk entered the index.
	IndexedAt time.Time `json:"indexed_at"`
}

// Chunk is a contiguous span of cleaned filing text produced during
// indexing. Chunks are transient: only their metadata and embedding
// survive into the index.
type Chunk struct {
	// Text is the cleaned chunk content. Present only during indexing.
	Text string

	// Ordinal is the running chunk index within one filing.
	Ordinal int

	// Meta carries the positional and source metadata.
	Meta ChunkMeta
}

// Section is a labelled span of a cleaned filing.
type Section struct {
	Label string
	Start int
	End   int
}
