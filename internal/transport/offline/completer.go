// Package offline provides a deterministic completion provider for dry runs and tests.
package offline

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/kailas-cloud/pagegen/internal/domain"
)

var fieldRe = regexp.MustCompile(`(?mi)^\s*(keyword|language|search intent)\s*:\s*(.+?)\s*$`)

const filler = "Lorem ipsum dolor sit amet consectetur adipisicing elit. " +
	"Accusantium, libero omnis perspiciatis animi at similique tempora mollitia in rem soluta."

// Completer returns placeholder HTML built from the "Keyword:", "Language:" and
// "Search intent:" lines of the prompt. It never calls the network.
type Completer struct {
	sections int
}

// NewCompleter creates an offline Completer that writes the given number of sections (min 1).
func NewCompleter(sections int) *Completer {
	if sections < 1 {
		sections = 3
	}
	return &Completer{sections: sections}
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.CompletionResult{}, err
	}

	fields := map[string]string{}
	for _, m := range fieldRe.FindAllStringSubmatch(req.Prompt, -1) {
		key := strings.ToLower(m[1])
		if _, seen := fields[key]; !seen {
			fields[key] = html.EscapeString(m[2])
		}
	}
	kw := fields["keyword"]
	if kw == "" {
		kw = "article"
	}
	lang := fields["language"]
	if lang == "" {
		lang = string(domain.English)
	}
	intent := ""
	if si := fields["search intent"]; si != "" {
		intent = " read " + si
	}

	para := fmt.Sprintf("<p>dummy text for keyword %s in language %s%s. %s</p>", kw, lang, intent, filler)

	var b strings.Builder
	b.WriteString(para)
	for i := 1; i < c.sections; i++ {
		fmt.Fprintf(&b, "<h2>heading for keyword %s</h2>", kw)
		b.WriteString(para)
	}

	out := b.String()
	return domain.CompletionResult{
		Text:             out,
		PromptTokens:     len(strings.Fields(req.Prompt)),
		CompletionTokens: len(strings.Fields(out)),
	}, nil
}
