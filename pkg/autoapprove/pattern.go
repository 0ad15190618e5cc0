// Package autoapprove implements the persistent auto-approve rule
// store and its tool-name pattern matching.
//
// Grounded on the load/mutate/save-with-mode-0600 idiom of the
// teacher's core/pkg/credentials/store.go, adapted from a SQL-backed
// store to the spec's flat JSON file (spec §4.4 mandates file-backed
// state, not a database, to keep AASC dependency-free of any running
// service).
package autoapprove

import "strings"

// MatchesToolPattern implements the three-case glob semantics from
// spec §4.6: bare "*" matches anything, a trailing "*" matches any
// name with the given prefix, and anything else must match exactly
// (case-sensitive). No other glob characters are honoured.
func MatchesToolPattern(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}
	return pattern == name
}

// NormalizeToolName is the identity mapping today; kept as a named
// hook because spec §4.6 requires patterns to compare post-normalisation
// and future tool aliases will need a home here.
func NormalizeToolName(name string) string {
	return name
}
