// Package normalize canonicalizes free text into the keys used to match the
// same entity across sources.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks is built per call; a transform.Chain keeps internal buffers.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Characters with no compatibility decomposition to ASCII.
var fold = strings.NewReplacer(
	"–", "-",
	"—", "-",
	"−", "-",
	"‘", "'",
	"’", "'",
	"“", "\"",
	"”", "\"",
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"ø", "o",
	"đ", "d",
	"ð", "d",
	"ł", "l",
	"þ", "th",
	"ı", "i",
)

// Separators folded to a plain space before whitespace is collapsed.
var separators = strings.NewReplacer("-", " ", "_", " ", "\n", " ", "\r", " ", "\t", " ")

// Text returns the matching key for s: trimmed, lower-cased, transliterated to
// ASCII, with hyphens, underscores and line breaks turned into single spaces.
// The result is stable under repeated application.
func Text(s string) string {
	if s == "" {
		return ""
	}
	if folded, _, err := transform.String(stripMarks(), strings.TrimSpace(s)); err == nil {
		s = folded
	}
	s = fold.Replace(strings.ToLower(s))
	s = separators.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Value is Text for an optional cell; nil yields "".
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return Text(*s)
}

// FullName builds the key for a person from separate first and last names.
func FullName(first, last string) string {
	return Text(first + " " + last)
}
