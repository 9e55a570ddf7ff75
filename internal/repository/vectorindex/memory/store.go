// Package memory holds a run's chunk vectors in process and answers queries by brute force.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kailas-cloud/pagegen/internal/domain/chunk"
	"github.com/kailas-cloud/pagegen/internal/usecase/retrieval"
)

// Opener creates in-memory stores.
type Opener struct{}

// NewOpener returns an Opener.
func NewOpener() *Opener { return &Opener{} }

// Open implements retrieval.StoreOpener.
func (o *Opener) Open(_ context.Context, dimensions int) (retrieval.VectorStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("invalid vector dimensions %d", dimensions)
	}
	return NewStore(dimensions), nil
}

type entry struct {
	chunk  chunk.Chunk
	vector []float32
	norm   float64
}

// Store is a brute-force cosine similarity index.
type Store struct {
	mu      sync.RWMutex
	dims    int
	entries []entry
}

// NewStore creates an empty Store for vectors of dims components.
func NewStore(dims int) *Store { return &Store{dims: dims} }

// Insert adds chunk vectors. Vectors are copied.
func (s *Store) Insert(_ context.Context, chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, v := range vectors {
		if len(v) != s.dims {
			return fmt.Errorf("vector %d has %d dimensions, want %d", i, len(v), s.dims)
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		s.entries = append(s.entries, entry{chunk: chunks[i], vector: cp, norm: norm(cp)})
	}
	return nil
}

// Nearest returns up to k chunks by descending cosine similarity; equal scores keep the lower
// ordinal first.
func (s *Store) Nearest(ctx context.Context, vector []float32, k int) ([]chunk.Chunk, error) {
	if len(vector) != s.dims {
		return nil, fmt.Errorf("query has %d dimensions, want %d", len(vector), s.dims)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		idx   int
		score float64
	}
	qn := norm(vector)
	scores := make([]scored, len(s.entries))
	for i, e := range s.entries {
		scores[i] = scored{idx: i, score: cosine(vector, qn, e.vector, e.norm)}
	}
	sort.SliceStable(scores, func(a, b int) bool {
		if scores[a].score != scores[b].score {
			return scores[a].score > scores[b].score
		}
		return s.entries[scores[a].idx].chunk.Ordinal() < s.entries[scores[b].idx].chunk.Ordinal()
	})

	k = min(k, len(scores))
	out := make([]chunk.Chunk, 0, k)
	for _, sc := range scores[:k] {
		out = append(out, s.entries[sc.idx].chunk)
	}
	return out, nil
}

// Drop forgets every entry.
func (s *Store) Drop(_ context.Context) error {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
