// Package processor turns raw SEC filings into clean, bounded,
// overlapping text chunks carrying enough positional metadata to
// relocate them later without storing the text itself.
//
// The pipeline is: LoadFiling (gzip decompress) -> Clean (deterministic
// text normalisation) -> Sections (SEC header detection with full
// coverage) -> chunk walk (fixed windows with sentence-boundary cuts).
package processor
