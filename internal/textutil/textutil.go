// Package textutil holds small text helpers shared by the differ, the
// renderer boundary and the report writer.
package textutil

import "strings"

// NormalizeNewlines converts CRLF and lone CR to LF and replaces invalid
// UTF-8 with the Unicode replacement character.
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ToValidUTF8(s, "�")
}

// EnsureTrailingLF appends a single \n if not already present. The empty
// string is returned unchanged.
func EnsureTrailingLF(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
