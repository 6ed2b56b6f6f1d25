// Package extraction turns a free-text query into the data payload the
// generative model sees. A declarative registry maps topics to keyword
// triggers and extractor functions; adding a data source means adding one
// entry, not touching the pipeline.
package extraction

import (
	"context"
	"log/slog"
	"strings"

	platstrings "glassbank/pkg/platform/strings"
)

// Result is one extractor's output: a payload keyed into the prompt under the
// topic name, plus the attribute identifiers the payload was derived from.
type Result struct {
	Payload    map[string]any
	Attributes []string
}

// Func extracts one topic's data for a user. Implementations check consent
// first and return an empty Result when denied; denial is not an error.
type Func func(ctx context.Context, userID string) (Result, error)

// Source is one registry entry.
type Source struct {
	// Topic keys the payload and prefixes the attributes.
	Topic string
	// Keywords trigger the source when any appears as a lowercase substring
	// of the query. Deliberately simple: substring OR, no ranking, no
	// negation. "checking my goals" triggers both accounts and goals.
	Keywords []string
	// AlwaysInclude sources run for every query regardless of keywords.
	AlwaysInclude bool
	// Extract produces the payload.
	Extract Func
}

// Registry selects and runs sources for a query.
type Registry struct {
	sources []Source
	logger  *slog.Logger
}

// NewRegistry builds a registry from sources in priority order.
func NewRegistry(logger *slog.Logger, sources ...Source) *Registry {
	return &Registry{sources: sources, logger: logger}
}

// Select returns the topics that would run for the query: every
// always-include source plus any source with a keyword match.
func (r *Registry) Select(query string) []string {
	queryLower := strings.ToLower(query)
	var topics []string
	for _, src := range r.sources {
		if src.AlwaysInclude || matches(queryLower, src.Keywords) {
			topics = append(topics, src.Topic)
		}
	}
	return topics
}

func matches(queryLower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(queryLower, kw) {
			return true
		}
	}
	return false
}

// ExtractAll runs the selected sources and merges their output. One failing
// extractor is logged and skipped; the rest still run. The user topic is
// always present in the output even if its source did not match.
func (r *Registry) ExtractAll(ctx context.Context, userID, query string) (map[string]any, []string) {
	data := make(map[string]any)
	var attributes []string

	selected := make(map[string]struct{})
	for _, topic := range r.Select(query) {
		selected[topic] = struct{}{}
	}

	for _, src := range r.sources {
		_, run := selected[src.Topic]
		if !run && src.Topic == "user" {
			// User context anchors every prompt.
			run = true
		}
		if !run {
			continue
		}
		res, err := src.Extract(ctx, userID)
		if err != nil {
			r.logger.WarnContext(ctx, "extractor failed",
				"topic", src.Topic,
				"error", err,
			)
			continue
		}
		if len(res.Payload) == 0 {
			continue
		}
		data[src.Topic] = res.Payload
		attributes = append(attributes, res.Attributes...)
	}

	return data, platstrings.DedupeFold(attributes)
}
