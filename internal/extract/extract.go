// Package extract turns uploaded documents and web pages into plain text and
// counts their tokens.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researcher/internal/tokenizer"
)

// Content is the extracted text of one source with its token count.
type Content struct {
	Text   string
	Tokens int
}

var mediaTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".ppt":  "application/vnd.ms-powerpoint",
}

// SupportedExtensions lists accepted file extensions in a stable order.
var SupportedExtensions = []string{".pdf", ".docx", ".doc", ".xlsx", ".xls", ".pptx", ".ppt"}

// ErrNoBackend is returned for legacy binary formats when no Tika server is configured.
var ErrNoBackend = errors.New("no extraction backend available")

// Ext returns the lowercased extension of name, dot included.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// IsSupported reports whether the file name carries a supported extension.
func IsSupported(name string) bool {
	_, ok := mediaTypes[Ext(name)]
	return ok
}

// MediaType returns the media type registered for the file's extension.
func MediaType(name string) (string, bool) {
	mt, ok := mediaTypes[Ext(name)]
	return mt, ok
}

// Options configure an Extractor.
type Options struct {
	Tokenizer tokenizer.Tokenizer
	Fetcher   Fetcher
	Tika      *TikaBackend
	MaxChars  int
	Logger    *zap.Logger
}

// Extractor dispatches files to a parser by extension and web pages to a fetcher.
type Extractor struct {
	tok      tokenizer.Tokenizer
	fetcher  Fetcher
	tika     *TikaBackend
	maxChars int
	log      *zap.Logger
}

func New(opts Options) *Extractor {
	if opts.Tokenizer == nil {
		opts.Tokenizer = tokenizer.Estimator{}
	}
	if opts.Fetcher == nil {
		opts.Fetcher = NewHTTPFetcher(nil, "")
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 20000
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Extractor{
		tok:      opts.Tokenizer,
		fetcher:  opts.Fetcher,
		tika:     opts.Tika,
		maxChars: opts.MaxChars,
		log:      opts.Logger,
	}
}

func (e *Extractor) IsSupported(name string) bool { return IsSupported(name) }

func (e *Extractor) MediaType(name string) (string, bool) { return MediaType(name) }

// ExtractFile parses the file at path. Native parsers handle pdf, docx, pptx and
// xlsx; legacy formats, and native failures, go to Tika when it is configured.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (Content, error) {
	ext := Ext(path)
	if _, ok := mediaTypes[ext]; !ok {
		return Content{}, fmt.Errorf("unsupported file extension: %s", ext)
	}

	var (
		elements []string
		err      error
	)
	switch ext {
	case ".pdf":
		elements, err = pdfElements(path)
	case ".docx":
		elements, err = docxElements(path)
	case ".pptx":
		elements, err = pptxElements(path)
	case ".xlsx":
		elements, err = xlsxElements(path)
	default:
		err = ErrNoBackend
	}
	if err != nil {
		if e.tika == nil {
			return Content{}, err
		}
		if !errors.Is(err, ErrNoBackend) {
			e.log.Warn("native extraction failed, falling back to tika",
				zap.String("file", filepath.Base(path)), zap.Error(err))
		}
		elements, err = e.tika.Elements(ctx, path)
		if err != nil {
			return Content{}, err
		}
	}

	text := joinElements(elements)
	return Content{Text: text, Tokens: e.tok.Count(text)}, nil
}

// ExtractWebsite fetches the page and keeps the readable article text.
func (e *Extractor) ExtractWebsite(ctx context.Context, link string) (Content, error) {
	page, err := e.fetcher.Fetch(ctx, link)
	if err != nil {
		return Content{}, err
	}
	text, err := articleText(page, e.maxChars)
	if err != nil {
		return Content{}, err
	}
	return Content{Text: text, Tokens: e.tok.Count(text)}, nil
}

func joinElements(elements []string) string {
	out := make([]string, 0, len(elements))
	for _, el := range elements {
		el = strings.TrimSpace(cleanText(el))
		if el != "" {
			out = append(out, el)
		}
	}
	return strings.Join(out, "\n\n")
}

// cleanText drops invalid UTF-8 and NUL bytes, which Postgres text columns reject.
func cleanText(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, ""), "\x00", "")
}
