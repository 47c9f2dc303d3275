package tools

import (
	"context"
	"strings"

	"golang.org/x/text/cases"

	"agentsvc/internal/agent/ports"
)

const (
	SearchKnowledgeBaseName = "search_knowledge_base"

	// NoKnowledgeResults is returned when no entry matches the query.
	NoKnowledgeResults = "No relevant information found in knowledge base."

	maxKnowledgeResults = 5
)

// SearchInput is the argument of search_knowledge_base.
type SearchInput struct {
	Query string `json:"query" jsonschema_description:"Search query string"`
}

// SearchKnowledgeBase matches query case-insensitively against keys and
// stringified values. It returns at most five "key: value" lines in
// knowledge base order, or NoKnowledgeResults.
func SearchKnowledgeBase(kb ports.KnowledgeBase, query string) string {
	// A Caser keeps state and must not be shared between goroutines.
	fold := cases.Fold()
	needle := fold.String(query)

	results := make([]string, 0, maxKnowledgeResults)
	for _, entry := range kb {
		if strings.Contains(fold.String(entry.Key), needle) || strings.Contains(fold.String(entry.Value), needle) {
			results = append(results, entry.Key+": "+entry.Value)
			if len(results) == maxKnowledgeResults {
				break
			}
		}
	}
	if len(results) == 0 {
		return NoKnowledgeResults
	}
	return strings.Join(results, "\n")
}

// NewSearchKnowledgeBaseTool reads the knowledge base from the run context.
func NewSearchKnowledgeBaseTool() Spec {
	return NewTyped(SearchKnowledgeBaseName,
		"Search the internal knowledge base for relevant information. Returns up to 5 matching \"key: value\" lines.",
		func(_ context.Context, rc *ports.RunContext, in SearchInput) (any, error) {
			return SearchKnowledgeBase(rc.KnowledgeBase(), in.Query), nil
		})
}
