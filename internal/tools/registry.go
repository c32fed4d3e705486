package tools

import (
	"time"

	"github.com/mohammad-safakhou/researcher/config"
)

// FromConfig builds the tool set for the configured providers. Wikipedia is
// always available; web and news search need credentials.
func FromConfig(cfg config.SourcesConfig) Set {
	timeout := cfg.WebSearch.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	hc := NewHTTPClient(timeout, 2, 300*time.Millisecond)

	set := Set{&Wikipedia{Endpoint: cfg.Wikipedia.Endpoint, HTTP: hc}}

	var searcher Searcher
	switch cfg.WebSearch.Provider {
	case "brave":
		if cfg.WebSearch.BraveAPIKey != "" {
			searcher = Brave{APIKey: cfg.WebSearch.BraveAPIKey, HTTP: hc}
		}
	case "serper":
		if cfg.WebSearch.SerperAPIKey != "" {
			searcher = Serper{APIKey: cfg.WebSearch.SerperAPIKey, HTTP: hc}
		}
	}
	if searcher != nil {
		set = append(set, &WebSearch{Searcher: searcher, MaxResults: cfg.WebSearch.MaxResults})
	}

	if cfg.NewsAPI.APIKey != "" {
		set = append(set, &NewsAPI{
			APIKey:     cfg.NewsAPI.APIKey,
			Endpoint:   cfg.NewsAPI.Endpoint,
			MaxResults: cfg.NewsAPI.MaxResults,
			HTTP:       hc,
		})
	}
	return set
}
