// Package knowledge ingests an agent's private sources under a token budget
// and renders them into the instructions of an answering session.
package knowledge

// Scope names one of the two knowledge collections an agent owns.
type Scope string

const (
	ScopeFiles    Scope = "files"
	ScopeWebsites Scope = "websites"
)

// Record is one ingested source. Tokens is counted once at ingestion.
type Record struct {
	Name   string `json:"name"`
	Text   string `json:"text"`
	Tokens int    `json:"tokens"`
}

// TotalTokens sums the tokens of every record in every collection given.
func TotalTokens(collections ...[]Record) int {
	total := 0
	for _, records := range collections {
		for _, r := range records {
			total += r.Tokens
		}
	}
	return total
}
