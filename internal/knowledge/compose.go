package knowledge

import "strings"

// DefaultInstructions is the base research-assistant prompt.
const DefaultInstructions = `You are a research assistant that helps users produce research reports.

Back every claim with a citation. If you are not sure about something, leave it out.
After each claim, put its source URL in square brackets: [URL].

Structure the final response as follows:
1. **Summary**: a short, clear summary of the findings
2. **Detailed Information**: paragraphs or bullet points with proper formatting
3. Every claim ends with a citation to its source [URL]
4. **References**: a numbered list of every source used

Cite information from Wikipedia, web search and news results properly.`

const knowledgePreamble = `

## Knowledge Base

The user has provided the documents and websites below as your knowledge base.
Prefer this material when it answers the question, and cite it as follows:
- information from a file: cite the filename in square brackets, for example [report.pdf]
- information from a website: cite its URL in square brackets, for example [https://example.com/page]
- information from web or news search results: cite the result's source URL in square brackets
`

// Composer renders the instructions for one answering session. The output
// depends only on its inputs.
type Composer struct {
	Base string
}

// Compose returns the base instructions, followed by the knowledge base when
// the agent has any records: files first, then websites, each in stored order.
func (c Composer) Compose(files, websites []Record) string {
	base := c.Base
	if base == "" {
		base = DefaultInstructions
	}
	if len(files) == 0 && len(websites) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString(knowledgePreamble)
	for _, r := range files {
		writeSection(&b, "File", r)
	}
	for _, r := range websites {
		writeSection(&b, "Website", r)
	}
	return b.String()
}

func writeSection(b *strings.Builder, kind string, r Record) {
	b.WriteString("\n### ")
	b.WriteString(kind)
	b.WriteString(": ")
	b.WriteString(r.Name)
	b.WriteString("\n\n")
	b.WriteString(r.Text)
	b.WriteString("\n")
}
