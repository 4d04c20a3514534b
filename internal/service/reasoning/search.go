package reasoning

import (
	"context"
	"fmt"
	"strings"

	"synthesistalk/internal/models"
)

const (
	maxSummaryResults = 5
	searchErrorText   = "Search request failed. This may be due to rate limits or a network error."
	searchEmptyText   = "Search returned no results. You may have hit a rate limit or provided too long of a query."
)

// SearchWithSummary searches, summarizes the results in light of the
// conversation and lists the sources.
func (e *Engine) SearchWithSummary(ctx context.Context, query, contextSummary string) string {
	if e.search == nil {
		return searchErrorText
	}
	resp, err := e.search.Query(ctx, query)
	if err != nil {
		return searchErrorText
	}

	results := resp.Results
	if len(results) > maxSummaryResults {
		results = results[:maxSummaryResults]
	}
	var combined string
	switch {
	case len(results) > 0:
		lines := make([]string, 0, len(results))
		for _, r := range results {
			lines = append(lines, r.Title+": "+r.Snippet)
		}
		combined = strings.Join(lines, "\n")
	case resp.Summary != "":
		combined = resp.Summary
	default:
		return searchEmptyText
	}

	summary, err := e.ask(ctx, "search summary", searchSummaryPrompt(query, contextSummary, combined))
	if err != nil {
		summary = llmFailureText
	}
	out := "🧠 Summary:\n" + summary
	if len(results) > 0 {
		out += "\n\n🔗 Sources:\n" + formatSources(results)
	}
	return out
}

func searchSummaryPrompt(query, contextSummary, combined string) string {
	if contextSummary != "" {
		return fmt.Sprintf("Based on the following search results, provide an insightful overview that answers the query: %q.\n\n"+
			"Context from our conversation: %s\n\n"+
			"Connect the search results to our ongoing discussion when relevant. Be concise and clear.\n\n"+
			"Search results:\n%s", query, contextSummary, combined)
	}
	return fmt.Sprintf("Based on the following search results, provide an insightful overview or conclusion that answers the query: %q. Be concise and clear.\n\n%s",
		query, combined)
}

func formatSources(results []models.SearchResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("• %s\n  %s", r.Title, r.URL))
	}
	return strings.Join(lines, "\n")
}
