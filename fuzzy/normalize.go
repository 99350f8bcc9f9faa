// Package fuzzy expands saved search phrases into plausible misspellings and
// scores listing titles and brands against them.
package fuzzy

import (
	"strings"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

// separators are replaced with a space before comparison.
var separators = strings.NewReplacer("-", " ", "_", " ", "&", " ", "'", " ")

// Transliterate folds text to the base Latin alphabet ("Château" -> "Chateau")
// without changing case.
func Transliterate(text string) string {
	if text == "" {
		return ""
	}
	return unidecode.Unidecode(norm.NFKC.String(text))
}

// Normalize returns the comparison form of text: transliterated, separators
// turned into spaces, lower-cased, whitespace collapsed and trimmed.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	normalized := separators.Replace(Transliterate(text))
	normalized = strings.ToLower(normalized)
	return strings.Join(strings.Fields(normalized), " ")
}

// Clean is Normalize without lower-casing. It is meant for display fields
// where the seller's casing should survive.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	cleaned := separators.Replace(Transliterate(text))
	return strings.Join(strings.Fields(cleaned), " ")
}
