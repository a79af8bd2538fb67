package table

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeSearch decomposes s, strips combining marks and lower-cases the
// result, so "Café" and "cafe" compare equal.
func NormalizeSearch(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// SearchTokens normalizes a query and splits it on whitespace.
func SearchTokens(query string) []string {
	return strings.Fields(NormalizeSearch(query))
}

// MatchTokens reports whether every token is a substring of normalized.
// An empty token list matches everything.
func MatchTokens(normalized string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(normalized, tok) {
			return false
		}
	}
	return true
}

// Range is an inclusive numeric constraint. A nil bound is open.
type Range struct {
	Min *float64
	Max *float64
}

// IsZero reports whether neither bound is set.
func (r Range) IsZero() bool {
	return r.Min == nil && r.Max == nil
}

// Contains reports whether v lies in r. An undefined value never matches,
// even when both bounds are open.
func (r Range) Contains(v Value) bool {
	if v.IsUndefined() {
		return false
	}
	n := v.Float()
	if r.Min != nil && n < *r.Min {
		return false
	}
	if r.Max != nil && n > *r.Max {
		return false
	}
	return true
}

// Bound returns a pointer to f for use in a Range literal.
func Bound(f float64) *float64 {
	return &f
}
