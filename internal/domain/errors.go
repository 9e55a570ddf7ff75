package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInputMissing signals that no keyword file was provided (or it was empty).
	ErrInputMissing = errors.New("input missing")
	// ErrDecode signals a keyword file that is not valid UTF-8 text or CSV.
	ErrDecode = errors.New("decode error")
	// ErrNoRecords signals a keyword file that parsed but yielded no usable records.
	ErrNoRecords = errors.New("no keyword records")
	// ErrDocumentRead signals an unreadable or corrupt PDF document.
	ErrDocumentRead = errors.New("document read error")
	// ErrIndexBuild signals a retrieval index that could not be built.
	ErrIndexBuild = errors.New("index build error")
	// ErrGeneration signals a failed article generation for one keyword.
	ErrGeneration = errors.New("generation error")
	// ErrTemplateNotFound signals a configured template file that does not exist.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrMalformedTemplate signals a legacy skeleton without the required slots.
	ErrMalformedTemplate = errors.New("malformed template")
	// ErrSlugCollision signals two keywords deriving the same slug.
	ErrSlugCollision = errors.New("slug collision")
	// ErrInvalidLanguage signals a language outside the supported set.
	ErrInvalidLanguage = errors.New("invalid language")
	// ErrInvalidWordCount signals a word count outside the allowed range.
	ErrInvalidWordCount = errors.New("invalid word count")

	// ErrRateLimited signals a provider rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded signals an exhausted token budget or provider quota.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrProviderError signals a completion provider failure.
	ErrProviderError = errors.New("completion provider error")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// GenerationError attaches the offending keyword to a per-item generation failure.
type GenerationError struct {
	Keyword string
	Cause   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %q: %v", e.Keyword, e.Cause)
}

// Unwrap exposes both ErrGeneration and the underlying cause to errors.Is.
func (e *GenerationError) Unwrap() []error { return []error{ErrGeneration, e.Cause} }

// NewGenerationError wraps cause for keyword.
func NewGenerationError(keyword string, cause error) error {
	return &GenerationError{Keyword: keyword, Cause: cause}
}

// DocumentReadError names the PDF that could not be read.
type DocumentReadError struct {
	File  string
	Cause error
}

func (e *DocumentReadError) Error() string {
	return fmt.Sprintf("read document %s: %v", e.File, e.Cause)
}

// Unwrap exposes both ErrDocumentRead and the underlying cause to errors.Is.
func (e *DocumentReadError) Unwrap() []error { return []error{ErrDocumentRead, e.Cause} }

// NewDocumentReadError wraps cause for file.
func NewDocumentReadError(file string, cause error) error {
	return &DocumentReadError{File: file, Cause: cause}
}
