package retrieval

import (
	"github.com/kailas-cloud/pagegen/internal/domain/chunk"
)

// Chunking defaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker splits cleaned text into overlapping chunks on line boundaries. Sizes are in runes.
type Chunker struct {
	size    int
	overlap int
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithChunkSize sets the maximum chunk length. Non-positive values are ignored.
func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the number of runes shared by consecutive chunks. Negative values are ignored.
func WithOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// NewChunker creates a Chunker. An overlap not smaller than the size is clamped to size/4.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

// Size returns the maximum chunk length in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts text into chunks numbered from 0. A chunk ends at the last line start that fits
// past the previous chunk's end, or mid-line when no such line start exists. The next chunk starts at the earliest line
// start within the overlap window, so chunk.Reconstruct returns text unchanged.
func (c *Chunker) Split(sourceID, text string) []chunk.Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var bounds []int // line starts after position 0
	for i := 1; i < n; i++ {
		if runes[i-1] == '\n' {
			bounds = append(bounds, i)
		}
	}

	var out []chunk.Chunk
	start, prevEnd := 0, 0
	for {
		end := n
		if start+c.size < n {
			end = start + c.size
			if b, ok := lastBound(bounds, max(start, prevEnd), end); ok {
				end = b
			}
		}

		out = append(out, chunk.New(string(runes[start:end]), sourceID, len(out), prevEnd-start))
		if end == n {
			return out
		}

		next := end
		lo := max(end-c.overlap, start+1)
		if b, ok := firstBound(bounds, lo, end); ok {
			next = b
		}
		prevEnd, start = end, next
	}
}

// lastBound returns the largest bound in (lo, hi].
func lastBound(bounds []int, lo, hi int) (int, bool) {
	for i := len(bounds) - 1; i >= 0; i-- {
		b := bounds[i]
		if b <= lo {
			break
		}
		if b <= hi {
			return b, true
		}
	}
	return 0, false
}

// firstBound returns the smallest bound in [lo, hi).
func firstBound(bounds []int, lo, hi int) (int, bool) {
	for _, b := range bounds {
		if b >= hi {
			break
		}
		if b >= lo {
			return b, true
		}
	}
	return 0, false
}
