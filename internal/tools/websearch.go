package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// WebResult is one organic search result.
type WebResult struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Href  string `json:"href"`
}

// Searcher queries a web search provider.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]WebResult, error)
}

// Brave uses the Brave Search web endpoint.
type Brave struct {
	APIKey   string
	Endpoint string
	HTTP     *HTTPClient
}

func (b Brave) Search(ctx context.Context, query string, k int) ([]WebResult, error) {
	endpoint := b.Endpoint
	if endpoint == "" {
		endpoint = "https://api.search.brave.com/res/v1/web/search"
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprint(k))
	params.Set("safesearch", "moderate")
	var raw struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	headers := map[string]string{"X-Subscription-Token": b.APIKey}
	if err := b.HTTP.DoJSON(ctx, "GET", endpoint+"?"+params.Encode(), headers, nil, &raw); err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	out := make([]WebResult, 0, k)
	for _, r := range raw.Web.Results {
		if len(out) >= k {
			break
		}
		out = append(out, WebResult{Title: r.Title, Body: r.Description, Href: r.URL})
	}
	return out, nil
}

// Serper uses the serper.dev Google search endpoint.
type Serper struct {
	APIKey   string
	Endpoint string
	HTTP     *HTTPClient
}

func (s Serper) Search(ctx context.Context, query string, k int) ([]WebResult, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = "https://google.serper.dev/search"
	}
	payload := map[string]any{"q": query, "num": k}
	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	headers := map[string]string{"X-API-KEY": s.APIKey}
	if err := s.HTTP.DoJSON(ctx, "POST", endpoint, headers, payload, &raw); err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}
	out := make([]WebResult, 0, k)
	for _, r := range raw.Organic {
		if len(out) >= k {
			break
		}
		out = append(out, WebResult{Title: r.Title, Body: r.Snippet, Href: r.Link})
	}
	return out, nil
}

// WebSearch exposes a Searcher as the search_web tool.
type WebSearch struct {
	Searcher   Searcher
	MaxResults int
}

func (w *WebSearch) Name() string { return "search_web" }

func (w *WebSearch) Description() string {
	return "Search the web and return the top results with title, snippet and URL."
}

func (w *WebSearch) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": stringParam("The search query"),
		},
		"required": []string{"query"},
	}
}

func (w *WebSearch) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	k := w.MaxResults
	if k <= 0 {
		k = 5
	}
	return w.Searcher.Search(ctx, query, k)
}
