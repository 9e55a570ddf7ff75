package pipeline

import (
	"context"

	"github.com/kailas-cloud/pagegen/internal/domain/article"
	"github.com/kailas-cloud/pagegen/internal/domain/chunk"
	"github.com/kailas-cloud/pagegen/internal/domain/keyword"
	"github.com/kailas-cloud/pagegen/internal/usecase/generation"
	"github.com/kailas-cloud/pagegen/internal/usecase/input"
	"github.com/kailas-cloud/pagegen/internal/usecase/render"
	"github.com/kailas-cloud/pagegen/internal/usecase/retrieval"
)

// KeywordParser decodes an uploaded keyword file.
type KeywordParser interface {
	Parse(data []byte, format input.Format) ([]keyword.Record, error)
}

// Retriever turns uploaded PDFs into a queryable index.
type Retriever interface {
	Chunks(ctx context.Context, docs []retrieval.Source) ([]chunk.Chunk, []error)
	BuildIndex(ctx context.Context, chunks []chunk.Chunk) (retrieval.Index, error)
}

// Generator writes one article.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (article.Article, error)
}

// PageRenderer renders an article and its metadata.
type PageRenderer interface {
	Render(p render.Page) (render.Output, error)
}

// RendererFactory loads templates for one run.
type RendererFactory func() (PageRenderer, error)
