package schema

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SearchKey folds s for case- and diacritic-insensitive substring matching:
// decomposition, removal of combining marks, recomposition, then Unicode case
// folding. Stored search columns and query terms must both go through it.
func SearchKey(s string) string {
	// Transformers carry state, so build a fresh chain per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = norm.NFC.String(s)
	}
	return cases.Fold().String(stripped)
}
