// Package textnorm folds Spanish text for comparisons and file names.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripMarks removes diacritics: "Bogotá" -> "Bogota", "ñ" -> "n".
func StripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold lower-cases, strips diacritics and collapses whitespace.
func Fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(StripMarks(s))), " ")
}
