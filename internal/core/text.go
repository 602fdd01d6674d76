package core

import (
	"regexp"
)

var whitespaceRuns = regexp.MustCompile(`\s{2,}`)

// CollapseWhitespace replaces every run of two or more whitespace characters
// with a single space. Every payee comparison (duplicate detection, rule
// matching, reverse lookup) goes through this; stored override keys do not.
func CollapseWhitespace(s string) string {
	return whitespaceRuns.ReplaceAllString(s, " ")
}
