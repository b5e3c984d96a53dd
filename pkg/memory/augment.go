package memory

import (
	"strings"

	"github.com/papercomputeco/medibot/pkg/vocab"
)

const (
	// MaxExtractedKeywords caps keyword extraction from context.
	MaxExtractedKeywords = 5

	// MaxInjectedKeywords caps how many keywords are appended to a query.
	MaxInjectedKeywords = 3
)

// ExtractKeywords returns up to MaxExtractedKeywords vocabulary terms found in
// the rendered context, in vocabulary order.
func ExtractKeywords(context string, keywords []string) []string {
	found := vocab.Matches(context, keywords)
	if len(found) > MaxExtractedKeywords {
		found = found[:MaxExtractedKeywords]
	}
	return found
}

// Augment appends context keywords to query for retrieval only. The result
// equals query whenever context is empty or contains no keyword.
func Augment(query, context string, keywords []string) string {
	if strings.TrimSpace(context) == "" {
		return query
	}
	found := ExtractKeywords(context, keywords)
	if len(found) == 0 {
		return query
	}
	if len(found) > MaxInjectedKeywords {
		found = found[:MaxInjectedKeywords]
	}
	return query + " (context: " + strings.Join(found, " ") + ")"
}
