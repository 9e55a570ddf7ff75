// Package render fills page templates with generated articles and derives the JSON metadata.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/domain/article"
)

// Mode selects how the HTML page is produced.
type Mode string

const (
	// ModeTemplate renders through html/template (default).
	ModeTemplate Mode = "template"
	// ModeLegacy substitutes into a static skeleton by textual search.
	ModeLegacy Mode = "legacy"
)

// DefaultContentMarker is the skeleton placeholder replaced by the article in legacy mode.
const DefaultContentMarker = "<!-- article-content -->"

const (
	embeddedPage     = "templates/page.html.tmpl"
	embeddedSkeleton = "templates/skeleton.html"
)

//go:embed templates/*
var embedded embed.FS

var titleRe = regexp.MustCompile(`(?is)<title(\s[^>]*)?>.*?</title>`)

// Config configures a Renderer.
type Config struct {
	Mode Mode
	// HTMLTemplate is an html/template file; empty uses the embedded page.
	HTMLTemplate string
	// Skeleton is the legacy skeleton file; empty uses the embedded skeleton.
	Skeleton      string
	ContentMarker string
	BaseURL       string
	Locales       []string
	TitleSuffix   string
	// MetadataRequiresHTML suppresses the JSON document when the page failed to render.
	MetadataRequiresHTML bool
}

// Page is the input for one keyword.
type Page struct {
	Keyword      string
	SearchIntent string
	Slug         string
	Article      article.Article
}

// Output holds the rendered files of one page. HTML is nil when HTMLErr is set; Metadata is nil
// when it was suppressed.
type Output struct {
	HTML     []byte
	Metadata []byte
	HTMLErr  error
}

// Renderer renders pages with templates loaded once at construction. Safe for concurrent use.
type Renderer struct {
	cfg      Config
	page     *template.Template
	skeleton string
	marker   string
	baseURL  string
	locales  []string
	logger   *zap.Logger
}

// New loads the configured templates. A configured file that does not exist is
// domain.ErrTemplateNotFound.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeTemplate
	}

	r := &Renderer{
		cfg:     cfg,
		marker:  cfg.ContentMarker,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		locales: cfg.Locales,
		logger:  logger,
	}
	if r.marker == "" {
		r.marker = DefaultContentMarker
	}
	if len(r.locales) == 0 {
		r.locales = DefaultLocales
	}

	switch cfg.Mode {
	case ModeTemplate:
		src, err := loadTemplate(cfg.HTMLTemplate, embeddedPage)
		if err != nil {
			return nil, err
		}
		page, err := template.New("page").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse page template: %w", err)
		}
		r.page = page
	case ModeLegacy:
		src, err := loadTemplate(cfg.Skeleton, embeddedSkeleton)
		if err != nil {
			return nil, err
		}
		r.skeleton = src
	default:
		return nil, fmt.Errorf("unknown render mode %q", cfg.Mode)
	}

	logger.Debug("Renderer ready",
		zap.String("mode", string(cfg.Mode)),
		zap.String("html_template", cfg.HTMLTemplate),
		zap.String("skeleton", cfg.Skeleton),
	)
	return r, nil
}

func loadTemplate(path, fallback string) (string, error) {
	if path == "" {
		b, err := fs.ReadFile(embedded, fallback)
		if err != nil {
			return "", fmt.Errorf("embedded template %s: %w", fallback, err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", path, domain.ErrTemplateNotFound)
		}
		return "", fmt.Errorf("read template %s: %w", path, err)
	}
	return string(b), nil
}

// Render produces the page and its metadata. The returned error is set only when nothing usable
// was produced for the page; a page failure with metadata kept is reported through Output.HTMLErr.
func (r *Renderer) Render(p Page) (Output, error) {
	var out Output

	out.HTML, out.HTMLErr = r.HTML(p)
	if out.HTMLErr != nil && r.cfg.MetadataRequiresHTML {
		return Output{HTMLErr: out.HTMLErr}, out.HTMLErr
	}

	meta, err := r.Metadata(p)
	if err != nil {
		return out, err
	}
	out.Metadata = meta
	return out, nil
}

// HTML renders the page for p.
func (r *Renderer) HTML(p Page) ([]byte, error) {
	if r.cfg.Mode == ModeLegacy {
		return r.substitute(p)
	}

	data := map[string]any{
		"article_content":     template.HTML(p.Article.HTML()), //nolint:gosec // generated fragment is trusted
		"keyword_capitalized": capitalize(p.Keyword),
		"search_intent":       p.SearchIntent,
		"relative_path":       p.Slug,
		"canonical":           r.pageURL("x-default", p.Slug),
	}
	var buf bytes.Buffer
	if err := r.page.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render page %s: %w", p.Slug, err)
	}
	return buf.Bytes(), nil
}

// Metadata renders the JSON document for p: two-space indentation, trailing newline.
func (r *Renderer) Metadata(p Page) ([]byte, error) {
	return encodeMetadata(r.metadata(p))
}

// substitute replaces the first <title> element and the content marker of the skeleton.
func (r *Renderer) substitute(p Page) ([]byte, error) {
	loc := titleRe.FindStringIndex(r.skeleton)
	if loc == nil {
		return nil, fmt.Errorf("skeleton has no <title> element: %w", domain.ErrMalformedTemplate)
	}
	if !strings.Contains(r.skeleton, r.marker) {
		return nil, fmt.Errorf("skeleton has no %q marker: %w", r.marker, domain.ErrMalformedTemplate)
	}

	title := "<title>" + html.EscapeString(capitalize(p.Keyword)) + "</title>"
	doc := r.skeleton[:loc[0]] + title + r.skeleton[loc[1]:]
	doc = strings.Replace(doc, r.marker, p.Article.HTML(), 1)
	return []byte(doc), nil
}

// capitalize title-cases every word, matching the keyword_capitalized template field.
func capitalize(s string) string {
	return cases.Title(language.Und).String(s)
}
