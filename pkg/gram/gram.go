// Package gram turns text into sets of overlapping character n-grams.
//
// Text is decomposed (NFD) and lower-cased before slicing, so precomposed and
// combining-mark spellings of the same word, and upper/lower case variants,
// produce the same grams. Grams are runs of Unicode codepoints, not bytes and
// not grapheme clusters: a decomposed accent is its own codepoint and may land
// in a different gram than its base letter.
package gram

import (
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// StartMarker and EndMarker bracket a string in Wrap. They are ASCII control
// characters (STX and ETX) that do not occur in ordinary text and survive
// normalization unchanged.
const (
	StartMarker = "\u0002"
	EndMarker   = "\u0003"
)

// Normalize returns text in canonical decomposed form, lower-cased.
func Normalize(text string) string {
	return cases.Lower(language.Und).String(norm.NFD.String(text))
}

// Wrap brackets text with StartMarker and EndMarker so that grams touching
// the true start or end of the string differ from the same characters found
// in the middle of another string.
func Wrap(text string) string {
	return StartMarker + text + EndMarker
}

// Generate returns the set of grams of text for the given depth.
//
// For every start position i of the normalized codepoint sequence and every
// offset j below min(depth, len-i), the run [i, i+j+1] is taken when it fits.
// Gram lengths therefore range from 2 to depth+1; single codepoints are never
// grams. A non-positive depth, or text shorter than two codepoints, yields an
// empty set.
func Generate(text string, depth int) Set {
	grams := make(Set)
	if depth <= 0 || text == "" {
		return grams
	}
	runes := []rune(Normalize(text))
	n := len(runes)
	for i := 0; i < n; i++ {
		for j := 0; j < min(depth, n-i); j++ {
			end := i + j + 2
			if end > n {
				continue
			}
			grams.Add(string(runes[i:end]))
		}
	}
	return grams
}

// Produces reports whether Generate(text, depth) would be non-empty, without
// building the set.
func Produces(text string, depth int) bool {
	return depth > 0 && utf8.RuneCountInString(Normalize(text)) >= 2
}
