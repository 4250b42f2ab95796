// Package text provides small text helpers shared by the analyzers and the
// analysis workflow.
package text

import "unicode/utf8"

// CountRunes counts the number of Unicode characters (runes) in s.
func CountRunes(s string) int {
	return utf8.RuneCountInString(s)
}

// TruncateBytes returns the longest prefix of s that is at most limit bytes
// long and does not split a UTF-8 sequence. A non-positive limit yields "".
func TruncateBytes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
