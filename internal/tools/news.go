package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// NewsResult is one article returned by search_news.
type NewsResult struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url"`
	Date   string `json:"date"`
	Source string `json:"source"`
}

// NewsAPI searches recent articles through the NewsAPI everything endpoint.
type NewsAPI struct {
	APIKey     string
	Endpoint   string
	MaxResults int
	HTTP       *HTTPClient
	Now        func() time.Time
}

var timePeriods = map[string]time.Duration{
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
	"m": 30 * 24 * time.Hour,
	"y": 365 * 24 * time.Hour,
}

func (n *NewsAPI) Name() string { return "search_news" }

func (n *NewsAPI) Description() string {
	return "Search recent news articles. time_period limits results to the last day (d), week (w), month (m) or year (y)."
}

func (n *NewsAPI) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": stringParam("The news search query"),
			"time_period": map[string]any{
				"type":        "string",
				"enum":        []string{"d", "w", "m", "y"},
				"description": "How far back to search",
			},
		},
		"required": []string{"query"},
	}
}

func (n *NewsAPI) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Query      string `json:"query"`
		TimePeriod string `json:"time_period"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	return n.Search(ctx, query, strings.ToLower(strings.TrimSpace(in.TimePeriod)))
}

// Search returns up to MaxResults articles, newest first.
func (n *NewsAPI) Search(ctx context.Context, query, period string) ([]NewsResult, error) {
	if period == "" {
		period = "w"
	}
	window, ok := timePeriods[period]
	if !ok {
		return nil, fmt.Errorf("time_period must be one of d, w, m, y; got %q", period)
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	k := n.MaxResults
	if k <= 0 {
		k = 5
	}
	endpoint := n.Endpoint
	if endpoint == "" {
		endpoint = "https://newsapi.org/v2/everything"
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("from", now().Add(-window).UTC().Format("2006-01-02"))
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", fmt.Sprint(k))

	var raw struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			Source struct {
				Name string `json:"name"`
			} `json:"source"`
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
			PublishedAt string `json:"publishedAt"`
		} `json:"articles"`
	}
	headers := map[string]string{"X-Api-Key": n.APIKey}
	if err := n.HTTP.DoJSON(ctx, "GET", endpoint+"?"+params.Encode(), headers, nil, &raw); err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	if raw.Status != "" && raw.Status != "ok" {
		return nil, fmt.Errorf("newsapi: %s", raw.Message)
	}
	out := make([]NewsResult, 0, k)
	for _, a := range raw.Articles {
		if len(out) >= k {
			break
		}
		out = append(out, NewsResult{
			Title:  a.Title,
			Body:   a.Description,
			URL:    a.URL,
			Date:   a.PublishedAt,
			Source: a.Source.Name,
		})
	}
	return out, nil
}
