// Package util holds small helpers shared across commands.
package util

import "strings"

// ShellQuote wraps s in single quotes, escaping embedded quotes, so it is
// safe to splice into a remote shell command line.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ShellJoin quotes and joins arguments into one command line.
func ShellJoin(args ...string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = ShellQuote(a)
	}
	return strings.Join(quoted, " ")
}
