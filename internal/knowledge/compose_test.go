package knowledge

import (
	"strings"
	"testing"
)

func TestComposeWithoutKnowledge(t *testing.T) {
	got := Composer{}.Compose(nil, nil)
	if got != DefaultInstructions {
		t.Fatalf("expected base instructions only")
	}
	if strings.Contains(got, "Knowledge Base") {
		t.Fatalf("preamble must be omitted without records")
	}
}

func TestComposeOrdersFilesThenWebsites(t *testing.T) {
	files := []Record{{Name: "b.pdf", Text: "bee"}, {Name: "a.pdf", Text: "ay"}}
	sites := []Record{{Name: "https://z.example", Text: "zed"}}
	got := Composer{Base: "BASE"}.Compose(files, sites)

	if !strings.HasPrefix(got, "BASE\n\n## Knowledge Base") {
		t.Fatalf("unexpected prefix %q", got[:40])
	}
	order := []string{"### File: b.pdf\n\nbee", "### File: a.pdf\n\nay", "### Website: https://z.example\n\nzed"}
	last := -1
	for _, part := range order {
		idx := strings.Index(got, part)
		if idx < 0 {
			t.Fatalf("missing section %q", part)
		}
		if idx <= last {
			t.Fatalf("section %q out of order", part)
		}
		last = idx
	}
}

func TestComposeDeterministic(t *testing.T) {
	files := []Record{{Name: "f.docx", Text: "text"}}
	c := Composer{}
	if c.Compose(files, nil) != c.Compose(files, nil) {
		t.Fatalf("compose must be deterministic")
	}
}

func TestComposeWebsitesOnlyIncludesPreamble(t *testing.T) {
	got := Composer{}.Compose(nil, []Record{{Name: "https://x.example", Text: "x"}})
	if !strings.Contains(got, "## Knowledge Base") || !strings.Contains(got, "### Website: https://x.example") {
		t.Fatalf("unexpected composition %q", got)
	}
}
