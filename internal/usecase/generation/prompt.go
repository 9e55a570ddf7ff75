package generation

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/kailas-cloud/pagegen/internal/domain/chunk"
)

// DefaultPromptTemplate is the instruction sent for every keyword. Lines for absent optional
// fields (search intent, reference material) are omitted entirely.
const DefaultPromptTemplate = `{{if .Brand}}You are a writer for {{.Brand}}{{with .BrandDescription}}, {{.}}{{end}}.{{else}}You are a web content writer.{{end}}
Keyword: {{.Keyword}}
{{- with .SearchIntent}}
Search intent: {{.}}
{{- end}}
Language: {{.Language}}
Word count: {{.WordCount}}

Write a {{.WordCount}} word article in {{.Language}}{{with .Brand}} for {{.}}{{end}} about the keyword "{{.Keyword}}"
{{- if .SearchIntent}} that fulfils this search intent{{end}}.
{{- if .Context}}

Use the following reference material where it is relevant:
{{- range .Context}}
---
{{.}}
{{- end}}
---
{{- end}}
{{- with .Brand}}
Conclude the article by recommending them to try {{.}}.
{{- end}}
The article should be formatted as valid HTML fragment with valid heading and paragraph HTML elements.
Use <h2> as a section header.
Article as valid HTML fragment:
`

// promptData is the template input.
type promptData struct {
	Brand            string
	BrandDescription string
	Keyword          string
	SearchIntent     string
	Language         string
	WordCount        int
	Context          []string
}

func parsePrompt(text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultPromptTemplate
	}
	t, err := template.New("prompt").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return t, nil
}

// contextTexts returns the trimmed text of each chunk, skipping blanks.
func contextTexts(chunks []chunk.Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if t := strings.TrimSpace(c.Text()); t != "" {
			out = append(out, t)
		}
	}
	return out
}
