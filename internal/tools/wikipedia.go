package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const wikipediaOptions = 5

// Wikipedia looks a topic up with the MediaWiki search API and returns the
// page summary from the REST API.
type Wikipedia struct {
	Endpoint string // e.g. https://en.wikipedia.org
	HTTP     *HTTPClient
}

// WikipediaResult is the payload returned to the model.
type WikipediaResult struct {
	Status  string            `json:"status"`
	Query   string            `json:"query,omitempty"`
	Title   string            `json:"title,omitempty"`
	URL     string            `json:"url,omitempty"`
	Summary string            `json:"summary,omitempty"`
	Message string            `json:"message,omitempty"`
	Options []WikipediaOption `json:"options,omitempty"`
}

type WikipediaOption struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type wikiSummary struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

func (w *Wikipedia) Name() string { return "search_wikipedia" }

func (w *Wikipedia) Description() string {
	return "Look up a topic on Wikipedia and return the summary of the best matching article with its URL."
}

func (w *Wikipedia) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic": stringParam("The topic or article title to look up"),
		},
		"required": []string{"topic"},
	}
}

func (w *Wikipedia) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		Topic string `json:"topic"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	return w.Lookup(ctx, topic)
}

// Lookup resolves topic to an article. A disambiguation page yields the
// summaries of the other search candidates as options.
func (w *Wikipedia) Lookup(ctx context.Context, topic string) (WikipediaResult, error) {
	titles, err := w.search(ctx, topic)
	if err != nil {
		return WikipediaResult{}, err
	}
	if len(titles) == 0 {
		return WikipediaResult{
			Status:  "error",
			Query:   topic,
			Message: fmt.Sprintf("No Wikipedia page found for %q", topic),
		}, nil
	}

	page, err := w.summary(ctx, titles[0])
	if err != nil {
		return WikipediaResult{}, err
	}
	if page.Type != "disambiguation" {
		return WikipediaResult{
			Status:  "success",
			Title:   page.Title,
			URL:     page.ContentURLs.Desktop.Page,
			Summary: page.Extract,
		}, nil
	}

	var options []WikipediaOption
	for _, title := range titles[1:] {
		if len(options) == wikipediaOptions {
			break
		}
		opt, err := w.summary(ctx, title)
		if err != nil || opt.Type == "disambiguation" {
			continue
		}
		options = append(options, WikipediaOption{Title: opt.Title, Summary: opt.Extract})
	}
	return WikipediaResult{
		Status:  "disambiguation_error",
		Query:   topic,
		Message: fmt.Sprintf("%q may refer to several articles; retry with one of the options", topic),
		Options: options,
	}, nil
}

func (w *Wikipedia) search(ctx context.Context, topic string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", topic)
	params.Set("srlimit", fmt.Sprint(wikipediaOptions+1))
	params.Set("format", "json")
	var raw struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	u := strings.TrimRight(w.Endpoint, "/") + "/w/api.php?" + params.Encode()
	if err := w.HTTP.DoJSON(ctx, "GET", u, nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("wikipedia search: %w", err)
	}
	titles := make([]string, 0, len(raw.Query.Search))
	for _, s := range raw.Query.Search {
		titles = append(titles, s.Title)
	}
	return titles, nil
}

func (w *Wikipedia) summary(ctx context.Context, title string) (wikiSummary, error) {
	var page wikiSummary
	u := strings.TrimRight(w.Endpoint, "/") + "/api/rest_v1/page/summary/" +
		url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	if err := w.HTTP.DoJSON(ctx, "GET", u, nil, nil, &page); err != nil {
		return wikiSummary{}, fmt.Errorf("wikipedia summary %s: %w", title, err)
	}
	return page, nil
}
