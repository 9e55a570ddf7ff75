package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// MaxDescriptionRunes bounds Metadata.Description.
const MaxDescriptionRunes = 160

// DefaultLocales are the hreflang alternates; "x-default" maps to the unprefixed URL.
var DefaultLocales = []string{"x-default", "de", "es", "fr"}

// Metadata is the JSON document written next to every page.
type Metadata struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Canonical   string      `json:"canonical"`
	Hreflang    []Alternate `json:"hreflang"`
}

// Alternate is one hreflang link.
type Alternate struct {
	Lang string `json:"lang"`
	Href string `json:"href"`
}

func (r *Renderer) metadata(p Page) Metadata {
	alts := make([]Alternate, 0, len(r.locales))
	for _, l := range r.locales {
		alts = append(alts, Alternate{Lang: l, Href: r.pageURL(l, p.Slug)})
	}

	desc := strings.TrimSpace(p.SearchIntent)
	if desc == "" {
		desc = firstParagraph(p.Article.HTML())
	}

	return Metadata{
		Title:       capitalize(p.Keyword) + r.cfg.TitleSuffix,
		Description: truncateRunes(desc, MaxDescriptionRunes),
		Canonical:   r.pageURL("x-default", p.Slug),
		Hreflang:    alts,
	}
}

func (r *Renderer) pageURL(locale, slug string) string {
	if locale == "" || locale == "x-default" {
		return r.baseURL + "/" + slug
	}
	return r.baseURL + "/" + locale + "/" + slug
}

func encodeMetadata(m Metadata) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return buf.Bytes(), nil
}

// firstParagraph returns the whitespace-normalized text of the first non-empty <p>.
func firstParagraph(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	var text string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text = strings.Join(strings.Fields(s.Text()), " ")
		return text == ""
	})
	return text
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for range n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return strings.TrimSpace(s[:i])
}
