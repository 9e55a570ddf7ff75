package chunk

import (
	"strings"
	"unicode/utf8"
)

// Chunk is a contiguous slice of a source document's cleaned text (immutable value object).
type Chunk struct {
	text     string
	sourceID string
	ordinal  int
	overlap  int
}

// New creates a Chunk. overlap is the number of leading runes shared with the previous chunk of
// the same source and is clamped to the chunk's rune length.
func New(text, sourceID string, ordinal, overlap int) Chunk {
	if overlap < 0 {
		overlap = 0
	}
	if n := utf8.RuneCountInString(text); overlap > n {
		overlap = n
	}
	return Chunk{text: text, sourceID: sourceID, ordinal: ordinal, overlap: overlap}
}

// Text returns the chunk text.
func (c Chunk) Text() string { return c.text }

// SourceID returns the identifier of the document the chunk came from.
func (c Chunk) SourceID() string { return c.sourceID }

// Ordinal returns the global position of the chunk within a run.
func (c Chunk) Ordinal() int { return c.ordinal }

// Overlap returns the number of leading runes repeated from the previous chunk.
func (c Chunk) Overlap() int { return c.overlap }

// Fresh returns the text after the overlapping prefix.
func (c Chunk) Fresh() string {
	if c.overlap == 0 {
		return c.text
	}
	i, n := 0, 0
	for i < len(c.text) && n < c.overlap {
		_, size := utf8.DecodeRuneInString(c.text[i:])
		i += size
		n++
	}
	return c.text[i:]
}

// Reconstruct concatenates chunks dropping each overlap, reproducing the text they were split from.
func Reconstruct(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Fresh())
	}
	return b.String()
}

// WithOrdinal returns a copy of c renumbered to ordinal.
func (c Chunk) WithOrdinal(ordinal int) Chunk {
	c.ordinal = ordinal
	return c
}
