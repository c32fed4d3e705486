package knowledge

import (
	"fmt"
	"strings"
)

// ErrUnsupportedFormat is returned when an upload's extension is not accepted.
type ErrUnsupportedFormat struct {
	Name      string
	Extension string
	Supported []string
}

func (e *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("Unsupported file extension: %s. Supported types are: %s",
		e.Extension, strings.Join(e.Supported, ", "))
}

// ErrInvalidURL is returned for website sources that are not absolute https URLs
// or whose host is not permitted.
type ErrInvalidURL struct {
	URL    string
	Reason string
}

func (e *ErrInvalidURL) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("Invalid URL: %s. %s", e.URL, e.Reason)
	}
	return fmt.Sprintf("Invalid URL: %s. Only https URLs are accepted", e.URL)
}

// ErrExtractionFailed wraps a parser or fetcher failure for one source.
type ErrExtractionFailed struct {
	Scope  Scope
	Source string
	Cause  error
}

func (e *ErrExtractionFailed) Error() string {
	kind := "file"
	if e.Scope == ScopeWebsites {
		kind = "website"
	}
	return fmt.Sprintf("Error processing %s %s: %v", kind, e.Source, e.Cause)
}

func (e *ErrExtractionFailed) Unwrap() error { return e.Cause }
