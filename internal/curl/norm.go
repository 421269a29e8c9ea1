package curl

import (
	"strings"
)

var continuationReplacer = strings.NewReplacer("\\\r\n", " ", "\\\n", " ")

// Normalize flattens a pasted command into a single line: surrounding
// whitespace is trimmed, backslash-newline continuations become spaces and
// every whitespace run collapses to one space.
func Normalize(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return ""
	}
	cmd = continuationReplacer.Replace(cmd)
	return strings.Join(strings.Fields(cmd), " ")
}

// SplitQuery cuts rawURL at its first '?'.
func SplitQuery(rawURL string) (base, query string) {
	base, query, ok := strings.Cut(rawURL, "?")
	if !ok {
		return rawURL, ""
	}
	return base, query
}
