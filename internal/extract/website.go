package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"
)

const (
	DefaultUserAgent = "ResearchAgent/1.0 (+contact@example.com)"
	maxPageBytes     = 10 << 20
)

// Page is raw HTML together with the URL it was served from.
type Page struct {
	URL  *url.URL
	HTML string
}

// Fetcher retrieves the HTML of a web page.
type Fetcher interface {
	Fetch(ctx context.Context, link string) (Page, error)
}

// HostCheck reports whether a host may be fetched from.
type HostCheck func(host string) bool

// checkTarget applies the rules every redirect target must meet: https only,
// and a host the check permits.
func checkTarget(u *url.URL, permit HostCheck) error {
	if u.Scheme != "https" {
		return fmt.Errorf("redirect to non-https URL %s refused", u)
	}
	if permit != nil && !permit(u.Host) {
		return fmt.Errorf("redirect to %s refused: host is not permitted", u.Host)
	}
	return nil
}

// HTTPFetcher fetches pages with a plain GET. It does not run scripts.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	permit    HostCheck
}

// NewHTTPFetcher wraps a copy of client whose redirects are re-validated.
func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	f := &HTTPFetcher{userAgent: userAgent}
	c := *client
	c.CheckRedirect = f.checkRedirect
	f.client = &c
	return f
}

// WithHostCheck subjects redirect targets to permit.
func (f *HTTPFetcher) WithHostCheck(permit HostCheck) *HTTPFetcher {
	f.permit = permit
	return f
}

func (f *HTTPFetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after %d redirects", len(via))
	}
	return checkTarget(req.URL, f.permit)
}

func (f *HTTPFetcher) Fetch(ctx context.Context, link string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Page{}, fmt.Errorf("fetch %s: unexpected status %d", link, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, fmt.Errorf("read %s: %w", link, err)
	}
	return Page{URL: resp.Request.URL, HTML: string(body)}, nil
}

// ChromedpFetcher renders pages in a long-lived headless Chrome so that
// script-built content is visible. Each fetch runs in its own tab.
type ChromedpFetcher struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancelBr    context.CancelFunc
	timeout     time.Duration
	permit      HostCheck
}

func NewChromedpFetcher(timeout time.Duration, userAgent string) *ChromedpFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(userAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	bctx, cancelBr := chromedp.NewContext(actx)
	return &ChromedpFetcher{
		allocCtx:    actx,
		cancelAlloc: cancelAlloc,
		browserCtx:  bctx,
		cancelBr:    cancelBr,
		timeout:     timeout,
	}
}

// WithHostCheck subjects the final page location to permit.
func (f *ChromedpFetcher) WithHostCheck(permit HostCheck) *ChromedpFetcher {
	f.permit = permit
	return f
}

// Close tears down Chrome resources.
func (f *ChromedpFetcher) Close() {
	if f.cancelBr != nil {
		f.cancelBr()
	}
	if f.cancelAlloc != nil {
		f.cancelAlloc()
	}
}

func (f *ChromedpFetcher) Fetch(ctx context.Context, link string) (Page, error) {
	u, err := url.Parse(link)
	if err != nil {
		return Page{}, fmt.Errorf("parse url: %w", err)
	}
	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, f.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html, location string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(link),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return Page{}, fmt.Errorf("render %s: %w", link, err)
	}
	if location != "" && location != link {
		final, err := url.Parse(location)
		if err != nil {
			return Page{}, fmt.Errorf("parse location: %w", err)
		}
		if err := checkTarget(final, f.permit); err != nil {
			return Page{}, err
		}
		u = final
	}
	return Page{URL: u, HTML: html}, nil
}

// articleText keeps the readable part of the page, title first, cut to maxChars runes.
func articleText(page Page, maxChars int) (string, error) {
	base := page.URL
	if base == nil {
		base = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(page.HTML), base)
	if err != nil {
		return "", fmt.Errorf("extract article: %w", err)
	}
	text := strings.TrimSpace(cleanText(article.TextContent))
	if title := strings.TrimSpace(cleanText(article.Title)); title != "" && !strings.HasPrefix(text, title) {
		text = title + "\n\n" + text
	}
	if r := []rune(text); maxChars > 0 && len(r) > maxChars {
		text = strings.TrimSpace(string(r[:maxChars]))
	}
	return text, nil
}
