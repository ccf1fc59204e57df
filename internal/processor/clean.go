package processor

import (
	"regexp"
	"strings"
)

// Patterns applied by Clean, compiled once.
var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	pageNumberRe = regexp.MustCompile(`Page \d+ of \d+`)
	htmlEntityRe = regexp.MustCompile(`&[a-zA-Z]+;`)
	camelCaseRe  = regexp.MustCompile(`([a-z])([A-Z])`)
)

// Clean normalises filing text: collapses whitespace runs, strips
// page-number artifacts and leftover HTML entities, and re-inserts the
// space lost between words when extraction glued camelCase boundaries
// together. Deterministic and side-effect free; rehydration applies the
// same transform so cleaned offsets stay meaningful.
func Clean(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = pageNumberRe.ReplaceAllString(text, "")
	text = htmlEntityRe.ReplaceAllString(text, " ")
	text = camelCaseRe.ReplaceAllString(text, "$1 $2")
	return strings.TrimSpace(text)
}
