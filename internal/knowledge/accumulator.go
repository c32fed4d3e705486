package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researcher/internal/budget"
	"github.com/mohammad-safakhou/researcher/internal/extract"
)

// Extractor produces text and token counts for files and web pages.
type Extractor interface {
	IsSupported(name string) bool
	ExtractFile(ctx context.Context, path string) (extract.Content, error)
	ExtractWebsite(ctx context.Context, link string) (extract.Content, error)
}

// FileUpload is an uploaded file not yet written to disk.
type FileUpload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Batch is the outcome of a successful add: records in input order and the
// knowledge total after they are committed.
type Batch struct {
	Records []Record
	Total   int
}

// Tokens returns the tokens contributed by the batch alone.
func (b Batch) Tokens() int { return TotalTokens(b.Records) }

// Accumulator turns a batch of sources into records without exceeding the
// token ceiling. A batch either yields every record or none; persisting the
// result is up to the caller.
type Accumulator struct {
	extractor Extractor
	tracker   budget.Tracker
	tempDir   string
	hosts     HostPolicy
	log       *zap.Logger
}

func NewAccumulator(ex Extractor, tracker budget.Tracker, log *zap.Logger) *Accumulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Accumulator{extractor: ex, tracker: tracker, log: log}
}

// WithHosts restricts website sources to hosts permitted by p.
func (a *Accumulator) WithHosts(p HostPolicy) *Accumulator {
	a.hosts = p
	return a
}

// Tracker exposes the budget the accumulator enforces.
func (a *Accumulator) Tracker() budget.Tracker { return a.tracker }

// AddFiles spools, validates and extracts uploads in order. current is the
// agent's authoritative total across both scopes.
func (a *Accumulator) AddFiles(ctx context.Context, uploads []FileUpload, current int) (Batch, error) {
	if len(uploads) == 0 {
		return Batch{Total: current}, nil
	}
	dir, err := os.MkdirTemp(a.tempDir, "researcher-upload-*")
	if err != nil {
		return Batch{}, fmt.Errorf("create spool dir: %w", err)
	}
	defer os.RemoveAll(dir)

	run := a.tracker.Start(current)
	records := make([]Record, 0, len(uploads))
	for i, up := range uploads {
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}
		if !a.extractor.IsSupported(up.Name) {
			return Batch{}, &ErrUnsupportedFormat{
				Name:      up.Name,
				Extension: extract.Ext(up.Name),
				Supported: extract.SupportedExtensions,
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("%03d-%s", i, filepath.Base(up.Name)))
		if err := spool(up, path); err != nil {
			return Batch{}, &ErrExtractionFailed{Scope: ScopeFiles, Source: up.Name, Cause: err}
		}
		content, err := a.extractor.ExtractFile(ctx, path)
		if err != nil {
			return Batch{}, &ErrExtractionFailed{Scope: ScopeFiles, Source: up.Name, Cause: err}
		}
		if err := run.Admit(content.Tokens); err != nil {
			return Batch{}, err
		}
		a.log.Debug("file admitted",
			zap.String("file", up.Name), zap.Int("tokens", content.Tokens), zap.Int("total", run.Total()))
		records = append(records, Record{Name: up.Name, Text: content.Text, Tokens: content.Tokens})
	}
	return Batch{Records: records, Total: run.Total()}, nil
}

// AddWebsites validates and fetches URLs in order under the same rules as AddFiles.
func (a *Accumulator) AddWebsites(ctx context.Context, links []string, current int) (Batch, error) {
	if len(links) == 0 {
		return Batch{Total: current}, nil
	}
	run := a.tracker.Start(current)
	records := make([]Record, 0, len(links))
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}
		if err := ValidateURL(link); err != nil {
			return Batch{}, err
		}
		if u, _ := url.Parse(strings.TrimSpace(link)); !a.hosts.Permits(u.Host) {
			return Batch{}, &ErrInvalidURL{URL: link, Reason: "Host is not permitted"}
		}
		content, err := a.extractor.ExtractWebsite(ctx, link)
		if err != nil {
			return Batch{}, &ErrExtractionFailed{Scope: ScopeWebsites, Source: link, Cause: err}
		}
		if err := run.Admit(content.Tokens); err != nil {
			return Batch{}, err
		}
		a.log.Debug("website admitted",
			zap.String("url", link), zap.Int("tokens", content.Tokens), zap.Int("total", run.Total()))
		records = append(records, Record{Name: link, Text: content.Text, Tokens: content.Tokens})
	}
	return Batch{Records: records, Total: run.Total()}, nil
}

// ValidateURL accepts only absolute https URLs with a host.
func ValidateURL(link string) error {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return &ErrInvalidURL{URL: link}
	}
	return nil
}

func spool(up FileUpload, path string) error {
	if up.Open == nil {
		return fmt.Errorf("upload %s has no content", up.Name)
	}
	src, err := up.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create spool file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("write spool file: %w", err)
	}
	return dst.Close()
}
