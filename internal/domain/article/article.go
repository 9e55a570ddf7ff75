package article

import "errors"

// Article is the generated HTML fragment for one keyword (immutable value object).
type Article struct {
	keyword string
	html    string
	usage   Usage
}

// Usage is the token consumption of the completion that produced an article.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// New validates and creates an Article.
func New(keyword, html string, usage Usage) (Article, error) {
	if keyword == "" {
		return Article{}, errors.New("keyword is required")
	}
	if html == "" {
		return Article{}, errors.New("article content is empty")
	}
	return Article{keyword: keyword, html: html, usage: usage}, nil
}

// Keyword returns the keyword the article was written for.
func (a Article) Keyword() string { return a.keyword }

// HTML returns the article body fragment.
func (a Article) HTML() string { return a.html }

// Usage returns the completion token usage.
func (a Article) Usage() Usage { return a.usage }
