package tools

import (
	"context"
	"fmt"
	"strings"
)

// WebSearchProvider defines the interface for web search backends.
type WebSearchProvider interface {
	// Search performs one search attempt.
	Search(ctx context.Context, query string, opts WebSearchOptions) ([]WebSearchResult, error)
	Name() string
}

// WebSearchOptions configures a web search request.
type WebSearchOptions struct {
	APIKey     string `json:"-"`
	MaxResults int    `json:"max_results"`
}

// WebSearchResult represents a single search result.
type WebSearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// FormatResults 将结果渲染为提示词中的 grounding 上下文
func FormatResults(results []WebSearchResult) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] %s\n%s\n(%s)\n", i+1, r.Title, r.Snippet, r.URL)
	}
	return strings.TrimRight(sb.String(), "\n")
}
