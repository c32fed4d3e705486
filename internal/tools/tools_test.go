package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/researcher/config"
)

func testClient() *HTTPClient {
	return NewHTTPClient(5*time.Second, 2, time.Millisecond)
}

func TestHTTPClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["q"] != "x" {
			t.Errorf("body lost on retry: %#v", body)
		}
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	if err := testClient().DoJSON(context.Background(), "POST", srv.URL, nil, map[string]string{"q": "x"}, &out); err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if !out.OK || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected success on third attempt, calls=%d", calls)
	}
}

func TestHTTPClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := testClient().DoJSON(context.Background(), "GET", srv.URL, nil, nil, nil)
	var status *StatusError
	if !errors.As(err, &status) || status.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx must not be retried, calls=%d", calls)
	}
}

func wikiServer(t *testing.T, titles []string, pages map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/w/api.php":
			if r.URL.Query().Get("list") != "search" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			var results []map[string]string
			for _, title := range titles {
				results = append(results, map[string]string{"title": title})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"query": map[string]any{"search": results}})
		case strings.HasPrefix(r.URL.Path, "/api/rest_v1/page/summary/"):
			title := strings.TrimPrefix(r.URL.Path, "/api/rest_v1/page/summary/")
			body, ok := pages[title]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(body))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestWikipediaSuccess(t *testing.T) {
	srv := wikiServer(t, []string{"Go (programming language)"}, map[string]string{
		"Go_(programming_language)": `{"type":"standard","title":"Go (programming language)","extract":"Go is a statically typed language.","content_urls":{"desktop":{"page":"https://en.wikipedia.org/wiki/Go_(programming_language)"}}}`,
	})
	defer srv.Close()

	w := &Wikipedia{Endpoint: srv.URL, HTTP: testClient()}
	out, err := w.Call(context.Background(), json.RawMessage(`{"topic":"golang"}`))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	res := out.(WikipediaResult)
	if res.Status != "success" || res.Title != "Go (programming language)" || !strings.Contains(res.Summary, "statically typed") {
		t.Fatalf("unexpected result %#v", res)
	}
	if res.URL != "https://en.wikipedia.org/wiki/Go_(programming_language)" {
		t.Fatalf("unexpected url %q", res.URL)
	}
}

func TestWikipediaDisambiguation(t *testing.T) {
	srv := wikiServer(t, []string{"Mercury", "Mercury (planet)", "Mercury (element)"}, map[string]string{
		"Mercury":           `{"type":"disambiguation","title":"Mercury","extract":"Mercury may refer to:"}`,
		"Mercury_(planet)":  `{"type":"standard","title":"Mercury (planet)","extract":"Mercury is the first planet."}`,
		"Mercury_(element)": `{"type":"standard","title":"Mercury (element)","extract":"Mercury is a chemical element."}`,
	})
	defer srv.Close()

	w := &Wikipedia{Endpoint: srv.URL, HTTP: testClient()}
	res, err := w.Lookup(context.Background(), "Mercury")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.Status != "disambiguation_error" || res.Query != "Mercury" {
		t.Fatalf("unexpected result %#v", res)
	}
	if len(res.Options) != 2 || res.Options[0].Title != "Mercury (planet)" {
		t.Fatalf("unexpected options %#v", res.Options)
	}
}

func TestWikipediaNotFound(t *testing.T) {
	srv := wikiServer(t, nil, nil)
	defer srv.Close()

	w := &Wikipedia{Endpoint: srv.URL, HTTP: testClient()}
	res, err := w.Lookup(context.Background(), "zzzxq")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.Status != "error" || res.Query != "zzzxq" {
		t.Fatalf("unexpected result %#v", res)
	}
}

func TestWikipediaRequiresTopic(t *testing.T) {
	w := &Wikipedia{Endpoint: "http://unused", HTTP: testClient()}
	if _, err := w.Call(context.Background(), json.RawMessage(`{"topic":" "}`)); err == nil {
		t.Fatalf("expected error for blank topic")
	}
}

func TestBraveSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "brave-key" {
			t.Errorf("missing token header")
		}
		if r.URL.Query().Get("q") != "fusion power" {
			t.Errorf("unexpected q %q", r.URL.Query().Get("q"))
		}
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"title":"A","url":"https://a.example","description":"alpha"},
			{"title":"B","url":"https://b.example","description":"beta"},
			{"title":"C","url":"https://c.example","description":"gamma"}]}}`))
	}))
	defer srv.Close()

	tool := &WebSearch{Searcher: Brave{APIKey: "brave-key", Endpoint: srv.URL, HTTP: testClient()}, MaxResults: 2}
	out, err := tool.Call(context.Background(), json.RawMessage(`{"query":"fusion power"}`))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	results := out.([]WebResult)
	if len(results) != 2 || results[0] != (WebResult{Title: "A", Body: "alpha", Href: "https://a.example"}) {
		t.Fatalf("unexpected results %#v", results)
	}
}

func TestSerperSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("X-API-KEY") != "serper-key" {
			t.Errorf("unexpected request %s %v", r.Method, r.Header)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["q"] != "tides" {
			t.Errorf("unexpected payload %#v", body)
		}
		_, _ = w.Write([]byte(`{"organic":[{"title":"Tides","link":"https://t.example","snippet":"moon"}]}`))
	}))
	defer srv.Close()

	results, err := Serper{APIKey: "serper-key", Endpoint: srv.URL, HTTP: testClient()}.Search(context.Background(), "tides", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Href != "https://t.example" || results[0].Body != "moon" {
		t.Fatalf("unexpected results %#v", results)
	}
}

func TestNewsSearch(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("from") != "2024-03-08" || q.Get("q") != "chips" || r.Header.Get("X-Api-Key") != "news-key" {
			t.Errorf("unexpected request %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"status":"ok","articles":[
			{"source":{"name":"Wire"},"title":"Chips","description":"fabs","url":"https://n.example/1","publishedAt":"2024-03-14T10:00:00Z"}]}`))
	}))
	defer srv.Close()

	n := &NewsAPI{APIKey: "news-key", Endpoint: srv.URL, HTTP: testClient(), Now: func() time.Time { return now }}
	out, err := n.Call(context.Background(), json.RawMessage(`{"query":"chips","time_period":"w"}`))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	results := out.([]NewsResult)
	want := NewsResult{Title: "Chips", Body: "fabs", URL: "https://n.example/1", Date: "2024-03-14T10:00:00Z", Source: "Wire"}
	if len(results) != 1 || results[0] != want {
		t.Fatalf("unexpected results %#v", results)
	}

	if _, err := n.Call(context.Background(), json.RawMessage(`{"query":"chips","time_period":"q"}`)); err == nil {
		t.Fatalf("expected error for unknown time period")
	}
}

func TestFromConfig(t *testing.T) {
	set := FromConfig(config.SourcesConfig{}.Normalize())
	if names := set.Names(); len(names) != 1 || names[0] != "search_wikipedia" {
		t.Fatalf("expected wikipedia only, got %v", names)
	}

	cfg := config.SourcesConfig{
		WebSearch: config.WebSearchConfig{BraveAPIKey: "b"},
		NewsAPI:   config.NewsAPIConfig{APIKey: "n"},
	}.Normalize()
	set = FromConfig(cfg)
	if names := set.Names(); len(names) != 3 {
		t.Fatalf("expected three tools, got %v", names)
	}
	if _, ok := set.Lookup("search_news"); !ok {
		t.Fatalf("news tool missing")
	}
	if _, ok := set.Lookup("nope"); ok {
		t.Fatalf("unexpected tool")
	}
}
