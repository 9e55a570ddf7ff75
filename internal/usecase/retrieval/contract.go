package retrieval

import (
	"context"

	"github.com/kailas-cloud/pagegen/internal/domain/chunk"
)

// DocumentReader extracts the page text of one PDF document, pages in order.
type DocumentReader interface {
	Text(ctx context.Context, name string, data []byte) (string, error)
}

// VectorStore holds one run's chunk vectors. Implementations are not shared between runs.
type VectorStore interface {
	Insert(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error
	// Nearest returns up to k chunks by descending cosine similarity, ties by ascending ordinal.
	Nearest(ctx context.Context, vector []float32, k int) ([]chunk.Chunk, error)
	Drop(ctx context.Context) error
}

// StoreOpener creates an empty VectorStore for vectors of the given dimension.
type StoreOpener interface {
	Open(ctx context.Context, dimensions int) (VectorStore, error)
}

// Index answers similarity queries for one run. It is never mutated after construction.
type Index interface {
	Query(ctx context.Context, keyword string, k int) ([]chunk.Chunk, error)
	Len() int
	Close(ctx context.Context) error
}
