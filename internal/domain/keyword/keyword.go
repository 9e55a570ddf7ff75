package keyword

import (
	"errors"
	"strings"
)

// Record is one keyword line of the input file (immutable value object).
type Record struct {
	keyword      string
	searchIntent string
}

// New validates and creates a Record. Both values are trimmed; the keyword must be non-empty.
func New(kw, searchIntent string) (Record, error) {
	kw = strings.TrimSpace(kw)
	if kw == "" {
		return Record{}, errors.New("keyword is required")
	}
	return Record{keyword: kw, searchIntent: strings.TrimSpace(searchIntent)}, nil
}

// Keyword returns the keyword text.
func (r Record) Keyword() string { return r.keyword }

// SearchIntent returns the search intent, empty when the input carried none.
func (r Record) SearchIntent() string { return r.searchIntent }

// HasSearchIntent reports whether a search intent is present.
func (r Record) HasSearchIntent() bool { return r.searchIntent != "" }
