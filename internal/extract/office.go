package extract

import (
	"fmt"
	"io"
	"os"
	"strings"

	"code.sajari.com/docconv/v2"
)

type officeConverter func(io.Reader) (string, map[string]string, error)

// docxElements returns one element per non-empty paragraph.
func docxElements(path string) ([]string, error) {
	return convertOffice(path, "docx", docconv.ConvertDocx)
}

// pptxElements returns one element per non-empty paragraph, slides in the
// order the package lists them.
func pptxElements(path string) ([]string, error) {
	return convertOffice(path, "pptx", docconv.ConvertPptx)
}

func convertOffice(path, kind string, convert officeConverter) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", kind, err)
	}
	defer f.Close()

	text, _, err := convert(f)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", kind, err)
	}
	var elements []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			elements = append(elements, line)
		}
	}
	return elements, nil
}
