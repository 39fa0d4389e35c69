package analysis

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// NormalizeToken canonicalizes one topic token: lowercase, leading '#'
// stripped, internal whitespace collapsed to '_'. Returns "" for tokens
// shorter than 2 characters after normalization.
func NormalizeToken(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	token = strings.TrimPrefix(token, "#")
	token = strings.Join(strings.Fields(token), "_")
	if utf8.RuneCountInString(token) < 2 {
		return ""
	}
	return token
}

// NormalizeTopics normalizes and deduplicates a set of topic tokens,
// dropping any that normalize to nothing. The result is sorted so equal
// inputs always produce equal output.
func NormalizeTopics(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if normalized := NormalizeToken(token); normalized != "" {
			seen[normalized] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for token := range seen {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// MergeTopics unions explicit document tags with extracted entity tokens,
// normalizing both sides. Explicit tags are never replaced by extraction
// results, only added to.
func MergeTopics(explicit, extracted []string) []string {
	merged := make([]string, 0, len(explicit)+len(extracted))
	merged = append(merged, explicit...)
	merged = append(merged, extracted...)
	return NormalizeTopics(merged)
}
