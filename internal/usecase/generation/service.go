// Package generation turns one keyword record into an HTML article fragment via a completion provider.
package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/domain/article"
	"github.com/kailas-cloud/pagegen/internal/domain/chunk"
)

// Defaults recovered from the production prompt.
const (
	DefaultModel            = "gpt-4o"
	DefaultTemperature      = float32(0.7)
	DefaultBrand            = "InstaCams"
	DefaultBrandDescription = "a cam to cam platform"
)

var (
	htmlTagRe = regexp.MustCompile(`<[a-zA-Z][a-zA-Z0-9]*(\s[^>]*)?/?>`)
	fenceRe   = regexp.MustCompile("(?s)^```[a-zA-Z]*[ \t]*\r?\n?(.*?)\r?\n?```$")
)

// Config configures the generator. An empty Model falls back to DefaultModel; the config layer
// applies the remaining defaults.
type Config struct {
	Model            string
	Temperature      float32
	Brand            string
	BrandDescription string
	// PromptTemplate overrides DefaultPromptTemplate (text/template syntax).
	PromptTemplate string
}

// Request is the input for one article.
type Request struct {
	Keyword      string
	WordCount    int // advisory
	Language     domain.Language
	SearchIntent string
	Context      []chunk.Chunk
}

// Service generates article fragments.
type Service struct {
	completer domain.Completer
	cfg       Config
	prompt    *template.Template
	markdown  goldmark.Markdown
	logger    *zap.Logger
}

// New creates a generation service. An unparsable or unexecutable prompt template is an error.
func New(completer domain.Completer, cfg Config, logger *zap.Logger) (*Service, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	tmpl, err := parsePrompt(cfg.PromptTemplate)
	if err != nil {
		return nil, err
	}

	s := &Service{
		completer: completer,
		cfg:       cfg,
		prompt:    tmpl,
		markdown:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:    logger,
	}

	if _, err := s.Prompt(Request{Keyword: "probe", SearchIntent: "probe", WordCount: domain.DefaultWordCount}); err != nil {
		return nil, fmt.Errorf("prompt template: %w", err)
	}
	return s, nil
}

// Prompt renders the instruction for req.
func (s *Service) Prompt(req Request) (string, error) {
	lang := req.Language
	if lang == "" {
		lang = domain.English
	}
	wc := req.WordCount
	if wc <= 0 {
		wc = domain.DefaultWordCount
	}

	var buf bytes.Buffer
	err := s.prompt.Execute(&buf, promptData{
		Brand:            s.cfg.Brand,
		BrandDescription: s.cfg.BrandDescription,
		Keyword:          req.Keyword,
		SearchIntent:     strings.TrimSpace(req.SearchIntent),
		Language:         string(lang),
		WordCount:        wc,
		Context:          contextTexts(req.Context),
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// Generate writes one article. Every failure is a *domain.GenerationError naming the keyword;
// provider causes (rate limit, quota) stay detectable with errors.Is.
func (s *Service) Generate(ctx context.Context, req Request) (article.Article, error) {
	if strings.TrimSpace(req.Keyword) == "" {
		return article.Article{}, domain.NewGenerationError(req.Keyword, errors.New("keyword is required"))
	}

	prompt, err := s.Prompt(req)
	if err != nil {
		return article.Article{}, domain.NewGenerationError(req.Keyword, err)
	}

	res, err := s.completer.Complete(ctx, domain.CompletionRequest{
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		Prompt:      prompt,
	})
	if err != nil {
		return article.Article{}, domain.NewGenerationError(req.Keyword, err)
	}

	body, err := s.toHTML(res.Text)
	if err != nil {
		return article.Article{}, domain.NewGenerationError(req.Keyword, err)
	}

	a, err := article.New(req.Keyword, body, article.Usage{
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
	})
	if err != nil {
		return article.Article{}, domain.NewGenerationError(req.Keyword, fmt.Errorf("%w: %w", domain.ErrProviderError, err))
	}

	s.logger.Debug("Article generated",
		zap.String("keyword", req.Keyword),
		zap.Int("context_chunks", len(req.Context)),
		zap.Int("prompt_tokens", res.PromptTokens),
		zap.Int("completion_tokens", res.CompletionTokens),
	)
	return a, nil
}

// toHTML strips a surrounding code fence and converts tagless (Markdown) responses to HTML.
func (s *Service) toHTML(text string) (string, error) {
	body := StripFence(text)
	if body == "" || htmlTagRe.MatchString(body) {
		return body, nil
	}

	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// StripFence removes a ```html ... ``` (or bare ```) wrapper and surrounding whitespace.
func StripFence(text string) string {
	text = strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}
