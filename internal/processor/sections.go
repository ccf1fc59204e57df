package processor

import (
	"regexp"
	"strings"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
)

// secSectionHeaders is the fixed vocabulary of section headers commonly
// found in SEC filings. Order matters only for pattern construction.
var secSectionHeaders = []string{
	"BUSINESS",
	"RISK FACTORS",
	"MANAGEMENT'S DISCUSSION AND ANALYSIS",
	"FINANCIAL STATEMENTS",
	"CLINICAL TRIALS",
	"PRODUCT PIPELINE",
	"INTELLECTUAL PROPERTY",
	"COMPETITION",
	"REGULATORY",
	"ITEM 1A",
	"ITEM 7",
	"PART I",
	"PART II",
}

var sectionHeaderRe = buildSectionRe()

func buildSectionRe() *regexp.Regexp {
	quoted := make([]string, len(secSectionHeaders))
	for i, h := range secSectionHeaders {
		quoted[i] = regexp.QuoteMeta(h)
	}
	// Header must start at a word boundary and be followed by a
	// separator so "COMPETITIONS" does not match "COMPETITION".
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)[\s:.]`)
}

// Sections scans cleaned text for SEC section headers and returns the
// labelled spans between consecutive matches.
//
// Coverage is total: the concatenation of the returned spans equals
// [0, len(text)). Text before the first header, or a document with no
// recognisable headers at all, is labelled domain.SectionFullDocument.
func Sections(text string) []domain.Section {
	if text == "" {
		return []domain.Section{{Label: domain.SectionFullDocument, Start: 0, End: 0}}
	}

	matches := sectionHeaderRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []domain.Section{{Label: domain.SectionFullDocument, Start: 0, End: len(text)}}
	}

	sections := make([]domain.Section, 0, len(matches)+1)

	if matches[0][0] > 0 {
		sections = append(sections, domain.Section{
			Label: domain.SectionFullDocument,
			Start: 0,
			End:   matches[0][0],
		})
	}

	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		label := strings.ToUpper(strings.TrimSpace(text[m[2]:m[3]]))
		sections = append(sections, domain.Section{
			Label: label,
			Start: m[0],
			End:   end,
		})
	}

	return sections
}
