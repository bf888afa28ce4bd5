// Package scope turns free-form OAuth2 scope specifications into canonical
// scope sets. A canonical set is sorted and deduplicated, so two requests for
// the same permissions always produce the same stored representation.
package scope

import (
	"sort"
	"strings"
)

// Normalize parses a space- or comma-delimited scope specification into a
// canonical set of scope tokens. Empty input yields an empty set.
func Normalize(spec string) []string {
	fields := strings.FieldsFunc(spec, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n' || r == '\r'
	})
	return canonicalize(fields)
}

// NormalizeList canonicalizes an already-split list of scope tokens.
func NormalizeList(tokens []string) []string {
	trimmed := make([]string, 0, len(tokens))
	for _, t := range tokens {
		trimmed = append(trimmed, strings.TrimSpace(t))
	}
	return canonicalize(trimmed)
}

// Intersect returns the canonical intersection of two scope sets. Scope
// recorded on any request, grant or token is the intersection of what was
// asked for and what the client is permitted, so an over-broad request is
// silently narrowed rather than rejected.
func Intersect(requested, permitted []string) []string {
	allowed := make(map[string]struct{}, len(permitted))
	for _, t := range permitted {
		allowed[t] = struct{}{}
	}
	var out []string
	for _, t := range canonicalize(requested) {
		if _, ok := allowed[t]; ok {
			out = append(out, t)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// Join serializes a canonical scope set for persistence.
func Join(tokens []string) string {
	return strings.Join(tokens, ",")
}

// Split parses a stored scope string back into a canonical set.
func Split(stored string) []string {
	if stored == "" {
		return []string{}
	}
	return canonicalize(strings.Split(stored, ","))
}

func canonicalize(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
