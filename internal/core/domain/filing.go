package domain

import "time"

// Company is a tracked issuer. The retrieval core only needs the fields
// required for ticker resolution and result display.
type Company struct {
	// ID is the relational record id.
	ID int64

	// Ticker is the exchange symbol (stored upper-case).
	Ticker string

	// Name is the display name.
	Name string
}

// Filing is one SEC filing record as provided by the filing store.
// The retrieval core treats these fields as opaque metadata to store
// and filter on; it never parses the accession number or URL.
type Filing struct {
	// ID is the relational record id.
	ID int64

	// CompanyID links to the owning Company.
	CompanyID int64

	// FilingType is the SEC form type (e.g. "10-K").
	FilingType string

	// FilingDate is the official filing date.
	FilingDate time.Time

	// AccessionNumber is the stable SEC identifier.
	AccessionNumber string

	// FilePath locates the gzip-compressed filing text on disk.
	// Empty when the filing has not been downloaded.
	FilePath string

	// FilingURL is the EDGAR URL for display.
	FilingURL string
}
