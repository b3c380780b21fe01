// Package grapheme splits text into user-perceived characters.
package grapheme

import (
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// Clusters splits text into grapheme clusters so that one mistyped
// visual character counts as exactly one error, not one per code point.
// Segmentation follows UAX #29 and is locale-independent; the locale
// argument is kept for callers that track it per attempt. Invalid UTF-8
// degrades to per-rune splitting rather than failing.
func Clusters(text, locale string) []string {
	if text == "" {
		return nil
	}
	if !utf8.ValidString(text) {
		return runeSplit(text)
	}
	out := make([]string, 0, len(text)/2+1)
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		out = append(out, gr.Str())
	}
	return out
}

// Count returns the number of grapheme clusters in text.
func Count(text, locale string) int {
	if text == "" {
		return 0
	}
	if !utf8.ValidString(text) {
		return utf8.RuneCountInString(text)
	}
	return uniseg.GraphemeClusterCount(text)
}

// Mismatches compares typed against reference position by position and
// returns the number of typed clusters that differ. Clusters typed past
// the end of the reference each count as one mismatch. This is the
// advisory live error count; authoritative scoring happens at word
// granularity during finalization.
func Mismatches(reference, typed, locale string) int {
	refClusters := Clusters(reference, locale)
	typedClusters := Clusters(typed, locale)
	mismatches := 0
	for i, cluster := range typedClusters {
		if i >= len(refClusters) || cluster != refClusters[i] {
			mismatches++
		}
	}
	return mismatches
}

func runeSplit(text string) []string {
	out := make([]string, 0, utf8.RuneCountInString(text))
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}
