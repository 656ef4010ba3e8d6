// Package tools provides the builtin function tools stages can expose to
// the generation backend.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
	"github.com/tjfontaine/agent-pipeline/internal/toolbridge"
)

const defaultSearchBaseURL = "https://api.duckduckgo.com"

// WebSearchOption configures the web search tool.
type WebSearchOption func(*webSearch)

// WithSearchBaseURL sets a custom search endpoint.
func WithSearchBaseURL(baseURL string) WebSearchOption {
	return func(w *webSearch) {
		w.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithSearchHTTPClient sets a custom HTTP client.
func WithSearchHTTPClient(client *http.Client) WebSearchOption {
	return func(w *webSearch) {
		w.httpClient = client
	}
}

type webSearch struct {
	baseURL    string
	httpClient *http.Client
}

// searchResponse is the subset of the instant-answer payload we read.
type searchResponse struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// NewWebSearch creates the websearch tool: a synchronous lookup against a
// search API, returning a report of matching results.
func NewWebSearch(opts ...WebSearchOption) ports.Tool {
	w := &webSearch{
		baseURL:    defaultSearchBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(w)
	}

	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query",
			},
		},
		"required": []string{"query"},
	}

	return toolbridge.NewFunc("websearch", "Search the web for articles relevant to a query", params, w.search)
}

func (w *webSearch) search(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("missing query argument")
	}

	u := fmt.Sprintf("%s/?q=%s&format=json&no_html=1", w.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var results []map[string]string
	if sr.AbstractText != "" {
		results = append(results, map[string]string{"text": sr.AbstractText, "url": sr.AbstractURL})
	}
	for _, topic := range sr.RelatedTopics {
		if topic.Text == "" {
			continue
		}
		results = append(results, map[string]string{"text": topic.Text, "url": topic.FirstURL})
		if len(results) >= 5 {
			break
		}
	}

	if len(results) == 0 {
		return map[string]any{
			"status": "success",
			"report": fmt.Sprintf("No results found for %q", query),
		}, nil
	}

	var report strings.Builder
	fmt.Fprintf(&report, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&report, "%d. %s (%s)\n", i+1, r["text"], r["url"])
	}

	return map[string]any{
		"status":  "success",
		"report":  report.String(),
		"results": results,
	}, nil
}
