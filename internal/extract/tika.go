package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/go-tika/tika"
	"golang.org/x/net/html"
)

// TikaBackend parses documents through an Apache Tika server.
type TikaBackend struct {
	client *tika.Client
}

// NewTikaBackend returns nil when url is empty.
func NewTikaBackend(url string, hc *http.Client) *TikaBackend {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &TikaBackend{client: tika.NewClient(hc, url)}
}

// Elements sends the file to Tika and splits the XHTML response into blocks.
func (t *TikaBackend) Elements(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	body, err := t.client.Parse(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("tika parse: %w", err)
	}
	return xhtmlBlocks(strings.NewReader(body))
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"title": true, "table": true,
}

// xhtmlBlocks collects the body text of an XHTML document, one element per
// block-level tag. Script and style bodies are skipped.
func xhtmlBlocks(r io.Reader) ([]string, error) {
	z := html.NewTokenizer(r)
	var (
		blocks []string
		cur    strings.Builder
		skip   int
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			blocks = append(blocks, s)
		}
		cur.Reset()
	}
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				flush()
				return blocks, nil
			}
			return nil, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "style" || tag == "script":
				skip++
			case tag == "td":
				cur.WriteByte('\t')
			case blockTags[tag]:
				flush()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "style" || tag == "script":
				if skip > 0 {
					skip--
				}
			case blockTags[tag]:
				flush()
			}
		case html.TextToken:
			if skip == 0 {
				cur.Write(z.Text())
			}
		}
	}
}
