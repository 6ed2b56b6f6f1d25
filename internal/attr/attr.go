// Package attr defines attribute identifiers of the form <topic>.<field> and
// the normalization rules every layer agrees on. The generative model, the
// query observer, and the extraction registry all emit identifiers; reconciling
// them is only sound if they normalize identically.
package attr

import (
	"sort"
	"strings"

	platstrings "glassbank/pkg/platform/strings"
)

// Topics enumerates the data domains attributes can belong to.
var Topics = []string{
	"user",
	"accounts",
	"transactions",
	"savings_accounts",
	"savings_goals",
}

// ID composes an attribute identifier from topic and field.
func ID(topic, field string) string {
	return topic + "." + field
}

// Normalize trims the identifier and collapses doubled topic prefixes such as
// "savings_accounts.savings_accounts.balance". Models produce these when a
// topic-scoped payload already carries prefixed keys. Display casing is
// preserved; use Key for comparisons. Normalize is idempotent.
func Normalize(id string) string {
	s := strings.TrimSpace(id)
	lower := strings.ToLower(s)
	for _, topic := range Topics {
		doubled := topic + "." + topic + "."
		for strings.HasPrefix(lower, doubled) {
			s = s[len(topic)+1:]
			lower = lower[len(topic)+1:]
		}
	}
	return s
}

// Key returns the case-insensitive comparison key for an identifier.
func Key(id string) string {
	return strings.ToLower(Normalize(id))
}

// Topic returns the topic part of an identifier, or "" when malformed.
func Topic(id string) string {
	norm := Normalize(id)
	if i := strings.IndexByte(norm, '.'); i > 0 {
		return strings.ToLower(norm[:i])
	}
	return ""
}

// WellFormed reports whether the identifier has a known topic prefix and a
// non-empty field part.
func WellFormed(id string) bool {
	norm := Normalize(id)
	i := strings.IndexByte(norm, '.')
	if i <= 0 || i == len(norm)-1 {
		return false
	}
	topic := strings.ToLower(norm[:i])
	for _, t := range Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// Dedupe normalizes and deduplicates case-insensitively, preserving input
// order and the first spelling seen.
func Dedupe(ids []string) []string {
	normalized := make([]string, 0, len(ids))
	for _, id := range ids {
		normalized = append(normalized, Normalize(id))
	}
	return platstrings.DedupeFold(normalized)
}

// SortedDedupe is Dedupe followed by a case-insensitive sort, for stable
// audit and response payloads.
func SortedDedupe(ids []string) []string {
	out := Dedupe(ids)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// KeySet builds a lookup set of comparison keys.
func KeySet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[Key(id)] = struct{}{}
	}
	return set
}
