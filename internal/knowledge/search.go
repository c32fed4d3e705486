package knowledge

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve"
)

const (
	chunkChars   = 1000
	chunkOverlap = 200
	snippetChars = 240
)

// Hit is one ranked passage from an agent's knowledge.
type Hit struct {
	Name    string  `json:"name"`
	Scope   Scope   `json:"scope"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

type chunk struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
	Text  string `json:"text"`
}

// Search ranks overlapping chunks of the records against query with BM25 and
// returns at most k hits. The index lives only for the duration of the call.
func Search(files, websites []Record, query string, k int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if k <= 0 {
		k = 5
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	defer index.Close()

	chunks := make(map[string]chunk)
	batch := index.NewBatch()
	add := func(scope Scope, records []Record) error {
		for ri, r := range records {
			for ci, part := range makeChunks(r.Text, chunkChars, chunkOverlap) {
				id := fmt.Sprintf("%s/%d/%d", scope, ri, ci)
				c := chunk{Name: r.Name, Scope: string(scope), Text: part}
				chunks[id] = c
				if err := batch.Index(id, c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := add(ScopeFiles, files); err != nil {
		return nil, fmt.Errorf("index files: %w", err)
	}
	if err := add(ScopeWebsites, websites); err != nil {
		return nil, fmt.Errorf("index websites: %w", err)
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("index batch: %w", err)
	}

	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	res, err := index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		c := chunks[h.ID]
		hits = append(hits, Hit{
			Name:    c.Name,
			Scope:   Scope(c.Scope),
			Snippet: snippet(c.Text),
			Score:   h.Score,
		})
	}
	return hits, nil
}

func makeChunks(text string, approx, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= approx {
		return []string{text}
	}
	var chunks []string
	for start := 0; start < len(runes); {
		end := start + approx
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > snippetChars {
		return string(r[:snippetChars]) + "..."
	}
	return text
}
