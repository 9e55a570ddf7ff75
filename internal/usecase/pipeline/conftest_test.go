package pipeline

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/kailas-cloud/pagegen/internal/domain/article"
	"github.com/kailas-cloud/pagegen/internal/domain/chunk"
	"github.com/kailas-cloud/pagegen/internal/domain/run"
	"github.com/kailas-cloud/pagegen/internal/usecase/generation"
	"github.com/kailas-cloud/pagegen/internal/usecase/input"
	"github.com/kailas-cloud/pagegen/internal/usecase/render"
	"github.com/kailas-cloud/pagegen/internal/usecase/retrieval"
)

// --- mockGenerator ---

type mockGenerator struct {
	mu         sync.Mutex
	requests   []generation.Request
	GenerateFn func(ctx context.Context, req generation.Request) (article.Article, error)
}

func (m *mockGenerator) Generate(ctx context.Context, req generation.Request) (article.Article, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}
	return article.New(req.Keyword, "<h2>"+req.Keyword+"</h2><p>All about "+req.Keyword+".</p>", article.Usage{})
}

func (m *mockGenerator) calls() []generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]generation.Request(nil), m.requests...)
}

// --- mockRenderer ---

type mockRenderer struct {
	RenderFn func(p render.Page) (render.Output, error)
}

func (m *mockRenderer) Render(p render.Page) (render.Output, error) {
	return m.RenderFn(p)
}

// --- mockRetriever / mockIndex ---

type mockRetriever struct {
	ChunksFn     func(ctx context.Context, docs []retrieval.Source) ([]chunk.Chunk, []error)
	BuildIndexFn func(ctx context.Context, chunks []chunk.Chunk) (retrieval.Index, error)
}

func (m *mockRetriever) Chunks(ctx context.Context, docs []retrieval.Source) ([]chunk.Chunk, []error) {
	if m.ChunksFn != nil {
		return m.ChunksFn(ctx, docs)
	}
	return nil, nil
}

func (m *mockRetriever) BuildIndex(ctx context.Context, chunks []chunk.Chunk) (retrieval.Index, error) {
	return m.BuildIndexFn(ctx, chunks)
}

type mockIndex struct {
	mu      sync.Mutex
	closed  int
	QueryFn func(ctx context.Context, keyword string, k int) ([]chunk.Chunk, error)
}

func (m *mockIndex) Query(ctx context.Context, keyword string, k int) ([]chunk.Chunk, error) {
	return m.QueryFn(ctx, keyword, k)
}

func (m *mockIndex) Len() int { return 1 }

func (m *mockIndex) Close(context.Context) error {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	return nil
}

// --- helpers ---

func defaultRenderers(t *testing.T) RendererFactory {
	t.Helper()
	return func() (PageRenderer, error) {
		r, err := render.New(render.Config{BaseURL: "https://example.com"}, nil)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

func newTestService(t *testing.T, gen Generator, cfg Config) *Service {
	t.Helper()
	s := New(input.New(nil), gen, defaultRenderers(t), cfg, nil)
	s.newID = func() string { return "run-1" }
	return s
}

type progressLog struct {
	mu     sync.Mutex
	events []run.Progress
}

func (l *progressLog) record(p run.Progress) {
	l.mu.Lock()
	l.events = append(l.events, p)
	l.mu.Unlock()
}

func (l *progressLog) states() []run.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []run.State
	for _, e := range l.events {
		if e.Keyword == "" {
			out = append(out, e.State)
		}
	}
	return out
}

func (l *progressLog) last() run.Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

// zipEntries returns archive entry names in archive order and their contents.
func zipEntries(t *testing.T, data []byte) ([]string, map[string]string) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	names := make([]string, 0, len(zr.File))
	files := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		names = append(names, f.Name)
		files[f.Name] = string(b)
	}
	return names, files
}
