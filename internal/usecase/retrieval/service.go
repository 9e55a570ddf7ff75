package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/domain/chunk"
	"github.com/kailas-cloud/pagegen/internal/metrics"
)

// Source is one uploaded PDF document.
type Source struct {
	Name string
	Data []byte
}

// Document is the raw extracted text of one readable source.
type Document struct {
	Name string
	Text string
}

// Service extracts, chunks and indexes PDF text for keyword grounding.
type Service struct {
	reader     DocumentReader
	docEmbed   domain.Embedder
	queryEmbed domain.Embedder
	stores     StoreOpener
	chunker    *Chunker
	logger     *zap.Logger
}

// New creates a retrieval Service.
func New(reader DocumentReader, embed domain.Embedder, stores StoreOpener, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		reader:     reader,
		docEmbed:   embed,
		queryEmbed: embed,
		stores:     stores,
		chunker:    NewChunker(),
		logger:     logger,
	}
}

// WithChunker replaces the default chunker.
func (s *Service) WithChunker(c *Chunker) *Service {
	if c != nil {
		s.chunker = c
	}
	return s
}

// WithPrefixes sets the instructions prepended to chunk and query texts for asymmetric
// embedding models. Empty values leave texts unchanged.
func (s *Service) WithPrefixes(document, query string) *Service {
	s.docEmbed = domain.NewPrefixEmbedder(s.docEmbed, document)
	s.queryEmbed = domain.NewPrefixEmbedder(s.queryEmbed, query)
	return s
}

// Documents extracts every source in upload order. Unreadable sources are skipped and reported
// as *domain.DocumentReadError.
func (s *Service) Documents(ctx context.Context, docs []Source) ([]Document, []error) {
	var out []Document
	var errs []error
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return out, append(errs, err)
		}
		text, err := s.reader.Text(ctx, d.Name, d.Data)
		if err != nil {
			if ctx.Err() != nil {
				return out, append(errs, ctx.Err())
			}
			s.logger.Warn("Skipping unreadable document", zap.String("file", d.Name), zap.Error(err))
			errs = append(errs, domain.NewDocumentReadError(d.Name, err))
			continue
		}
		out = append(out, Document{Name: d.Name, Text: text})
	}
	return out, errs
}

// ExtractText returns the page text of all readable sources, upload order then page order.
func (s *Service) ExtractText(ctx context.Context, docs []Source) (string, []error) {
	extracted, errs := s.Documents(ctx, docs)
	parts := make([]string, 0, len(extracted))
	for _, d := range extracted {
		if d.Text != "" {
			parts = append(parts, d.Text)
		}
	}
	return strings.Join(parts, "\n"), errs
}

// Chunks cleans and splits every readable source. Ordinals are global across sources.
func (s *Service) Chunks(ctx context.Context, docs []Source) ([]chunk.Chunk, []error) {
	extracted, errs := s.Documents(ctx, docs)
	var out []chunk.Chunk
	for _, d := range extracted {
		for _, c := range s.chunker.Split(d.Name, Clean(d.Text)) {
			out = append(out, c.WithOrdinal(len(out)))
		}
	}
	return out, errs
}

// BuildIndex embeds every chunk and loads the vectors into a fresh store.
// Any failure is reported as domain.ErrIndexBuild.
func (s *Service) BuildIndex(ctx context.Context, chunks []chunk.Chunk) (Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no document text to index: %w", domain.ErrIndexBuild)
	}

	start := time.Now()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text()
	}
	res, err := domain.BatchEmbed(ctx, s.docEmbed, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w: %w", domain.ErrIndexBuild, err)
	}
	if len(res.Embeddings) != len(chunks) || len(res.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks: %w",
			len(res.Embeddings), len(chunks), domain.ErrIndexBuild)
	}

	store, err := s.stores.Open(ctx, len(res.Embeddings[0]))
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w: %w", domain.ErrIndexBuild, err)
	}
	if err := store.Insert(ctx, chunks, res.Embeddings); err != nil {
		if dropErr := store.Drop(context.WithoutCancel(ctx)); dropErr != nil {
			s.logger.Warn("Failed to drop partial index", zap.Error(dropErr))
		}
		return nil, fmt.Errorf("insert vectors: %w: %w", domain.ErrIndexBuild, err)
	}

	metrics.RetrievalChunksTotal.Add(float64(len(chunks)))
	s.logger.Info("Retrieval index built",
		zap.Int("chunks", len(chunks)),
		zap.Int("dimensions", len(res.Embeddings[0])),
		zap.Int("embedding_tokens", res.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)

	return &vectorIndex{store: store, embed: s.queryEmbed, size: len(chunks)}, nil
}

type vectorIndex struct {
	store VectorStore
	embed domain.Embedder
	size  int
}

// Query embeds keyword and returns its k nearest chunks.
func (ix *vectorIndex) Query(ctx context.Context, keyword string, k int) ([]chunk.Chunk, error) {
	if k <= 0 || strings.TrimSpace(keyword) == "" {
		return nil, nil
	}
	res, err := ix.embed.Embed(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := ix.store.Nearest(ctx, res.Embedding, min(k, ix.size))
	if err != nil {
		return nil, fmt.Errorf("nearest chunks: %w", err)
	}
	return hits, nil
}

func (ix *vectorIndex) Len() int { return ix.size }

// Close releases the backing store.
func (ix *vectorIndex) Close(ctx context.Context) error {
	if err := ix.store.Drop(ctx); err != nil {
		return fmt.Errorf("drop vector store: %w", err)
	}
	return nil
}

// DocumentErrors filters errs down to *domain.DocumentReadError values.
func DocumentErrors(errs []error) []*domain.DocumentReadError {
	var out []*domain.DocumentReadError
	for _, err := range errs {
		var de *domain.DocumentReadError
		if errors.As(err, &de) {
			out = append(out, de)
		}
	}
	return out
}
