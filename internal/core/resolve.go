package core

import (
	"regexp"
	"strings"
	"sync"
)

// patternCache memoizes compiled rule patterns. Patterns that fail to
// compile are remembered as nil and matched as plain substrings instead.
var patternCache sync.Map // string -> *regexp.Regexp (nil when not a regexp)

func compilePattern(pattern string) *regexp.Regexp {
	if v, ok := patternCache.Load(pattern); ok {
		re, _ := v.(*regexp.Regexp)
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	patternCache.Store(pattern, re)
	return re
}

func patternMatches(pattern, payee string) bool {
	if re := compilePattern(pattern); re != nil {
		return re.MatchString(payee)
	}
	return strings.Contains(payee, pattern)
}

// ResolveCategory returns the category for a raw record, or "" when nothing
// matches.
//
// Rules are scanned in their current order against the whitespace-collapsed
// payee; the first match is the tentative result. Overrides are then scanned
// against the raw record exactly as uploaded; the last matching override
// wins outright, replacing any rule result. Malformed input never errors,
// it just fails to match.
func ResolveCategory(record RawRecord, rules []Rule, overrides []Override) string {
	category := ""

	payee := CollapseWhitespace(record.Payee)
	for _, rule := range rules {
		if patternMatches(rule.Pattern, payee) {
			category = rule.Category
			break
		}
	}

	for _, o := range overrides {
		if o.Key.Matches(record) {
			category = o.Category
		}
	}

	return category
}
