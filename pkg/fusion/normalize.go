package fusion

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName canonicalizes an entity name for matching: case-fold,
// strip diacritics, collapse whitespace. "Réseau  Sémantique" and
// "reseau semantique" normalize to the same key.
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	stripped = strings.ToLower(stripped)
	return strings.Join(strings.Fields(stripped), " ")
}

// normalizeSet normalizes every value and drops empties and duplicates.
// The result preserves no particular order; callers sort when order
// matters.
func normalizeSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		n := NormalizeName(v)
		if n == "" {
			continue
		}
		out[n] = struct{}{}
	}
	return out
}

// jaccard computes |a ∩ b| / |a ∪ b| over two normalized sets.
// Two empty sets have similarity 0, not 1: an absent alias set carries
// no evidence of identity.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for v := range a {
		if _, ok := b[v]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// unionSorted merges additions into a sorted, deduplicated string set.
func unionSorted(existing []string, additions []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(additions))
	out := make([]string, 0, len(existing)+len(additions))
	for _, v := range existing {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, v := range additions {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
