// Package align reconciles reference and typed word sequences.
package align

import "strings"

// Status classifies one aligned word pair.
type Status string

// Alignment statuses.
const (
	StatusMatch    Status = "match"
	StatusMismatch Status = "mismatch"
	StatusMissing  Status = "missing"
	StatusExtra    Status = "extra"
)

// Entry is one aligned word pair. Reference is empty for extra entries
// and Typed is empty for missing entries.
type Entry struct {
	Reference string
	Typed     string
	Status    Status
}

// Words aligns two word sequences with a longest-common-subsequence
// dynamic program and labels every word. Adjacent missing/extra pairs at
// the same position are coalesced into a single mismatch so that "typed
// a wrong word" is distinguished from "skipped a word" and "typed an
// extra word". Pure and deterministic; O(m*n) time and space.
func Words(reference, typed []string) []Entry {
	m := len(reference)
	n := len(typed)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if reference[i-1] == typed[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	// Backtrace emits entries in reverse order.
	entries := make([]Entry, 0, m+n)
	i, j := m, n
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && reference[i-1] == typed[j-1]:
			entries = append(entries, Entry{Reference: reference[i-1], Typed: typed[j-1], Status: StatusMatch})
			i--
			j--
		case j > 0 && (i == 0 || dp[i][j-1] >= dp[i-1][j]):
			entries = append(entries, Entry{Typed: typed[j-1], Status: StatusExtra})
			j--
		default:
			entries = append(entries, Entry{Reference: reference[i-1], Status: StatusMissing})
			i--
		}
	}
	for a, b := 0, len(entries)-1; a < b; a, b = a+1, b-1 {
		entries[a], entries[b] = entries[b], entries[a]
	}
	return coalesce(entries)
}

// coalesce merges a missing entry immediately followed by an extra entry
// (or vice versa) into one mismatch carrying both words.
func coalesce(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for i := 0; i < len(entries); i++ {
		if i+1 < len(entries) {
			cur, next := entries[i], entries[i+1]
			if cur.Status == StatusMissing && next.Status == StatusExtra {
				out = append(out, Entry{Reference: cur.Reference, Typed: next.Typed, Status: StatusMismatch})
				i++
				continue
			}
			if cur.Status == StatusExtra && next.Status == StatusMissing {
				out = append(out, Entry{Reference: next.Reference, Typed: cur.Typed, Status: StatusMismatch})
				i++
				continue
			}
		}
		out = append(out, entries[i])
	}
	return out
}

// Tally derives full and half mistake counts from aligned entries.
// A mismatch whose words differ only by capitalization or surrounding
// punctuation counts as a half mistake; every other mismatch, missing,
// or extra entry counts as a full mistake.
func Tally(entries []Entry) (full, half int) {
	for _, e := range entries {
		switch e.Status {
		case StatusMismatch:
			if minorDifference(e.Reference, e.Typed) {
				half++
			} else {
				full++
			}
		case StatusMissing, StatusExtra:
			full++
		}
	}
	return full, half
}

func minorDifference(reference, typed string) bool {
	return strings.EqualFold(stripPunct(reference), stripPunct(typed))
}

func stripPunct(word string) string {
	return strings.TrimFunc(word, func(r rune) bool {
		return strings.ContainsRune(".,;:!?\"'()[]{}-", r)
	})
}
