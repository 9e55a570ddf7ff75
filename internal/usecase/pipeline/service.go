// Package pipeline runs one keyword batch end to end: parse, optional PDF indexing, generation,
// rendering and archiving.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/domain/batch"
	"github.com/kailas-cloud/pagegen/internal/domain/chunk"
	"github.com/kailas-cloud/pagegen/internal/domain/keyword"
	"github.com/kailas-cloud/pagegen/internal/domain/run"
	"github.com/kailas-cloud/pagegen/internal/domain/slug"
	"github.com/kailas-cloud/pagegen/internal/logger"
	"github.com/kailas-cloud/pagegen/internal/metrics"
	"github.com/kailas-cloud/pagegen/internal/repository/archive"
	"github.com/kailas-cloud/pagegen/internal/usecase/generation"
	"github.com/kailas-cloud/pagegen/internal/usecase/input"
	"github.com/kailas-cloud/pagegen/internal/usecase/render"
	"github.com/kailas-cloud/pagegen/internal/usecase/retrieval"
	"github.com/kailas-cloud/pagegen/internal/usecase/usage"
)

// CollisionPolicy decides what happens when two keywords derive the same slug.
type CollisionPolicy string

// Slug collision policies.
const (
	// CollisionSuffix renames later occurrences to <slug>-2, <slug>-3 and so on.
	CollisionSuffix CollisionPolicy = "suffix"
	// CollisionError fails later occurrences with domain.ErrSlugCollision.
	CollisionError CollisionPolicy = "error"
)

// ParseCollisionPolicy resolves a policy name. Empty means suffix.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CollisionSuffix:
		return CollisionSuffix, nil
	case CollisionError:
		return CollisionError, nil
	default:
		return "", fmt.Errorf("unknown slug collision policy %q", s)
	}
}

// Defaults.
const (
	DefaultConcurrency = 1
	DefaultTopK        = 4
)

// Archive entry suffixes.
const (
	HTMLSuffix     = ".html"
	MetadataSuffix = ".html.json"
)

// Config tunes a Service.
type Config struct {
	Concurrency     int
	TopK            int
	OnSlugCollision CollisionPolicy
	BudgetTokens    int64
	BudgetAction    usage.Action
	// Language and WordCount apply to requests that leave them unset.
	Language  domain.Language
	WordCount int
}

// Request is everything one run needs. Zero Language and WordCount take the configured defaults.
type Request struct {
	Keywords  []byte
	Format    input.Format
	PDFs      []retrieval.Source
	Language  domain.Language
	WordCount int
}

// ProgressFunc observes a run. Calls are serialized and Completed never decreases.
type ProgressFunc func(run.Progress)

// Service orchestrates pipeline runs. It holds no per-run state and is safe for concurrent use.
type Service struct {
	parser    KeywordParser
	retriever Retriever
	generator Generator
	renderers RendererFactory
	cfg       Config
	newID     func() string
	logger    *zap.Logger
}

// New creates a pipeline service without retrieval.
func New(parser KeywordParser, gen Generator, renderers RendererFactory, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.OnSlugCollision == "" {
		cfg.OnSlugCollision = CollisionSuffix
	}
	if cfg.Language == "" {
		cfg.Language = domain.English
	}
	if cfg.WordCount == 0 {
		cfg.WordCount = domain.DefaultWordCount
	}
	return &Service{
		parser:    parser,
		generator: gen,
		renderers: renderers,
		cfg:       cfg,
		newID:     uuid.NewString,
		logger:    logger,
	}
}

// WithRetriever enables PDF grounding.
func (s *Service) WithRetriever(r Retriever) *Service {
	s.retriever = r
	return s
}

type item struct {
	record keyword.Record
	slug   string
	err    error
}

type outcome struct {
	result   batch.Result
	html     []byte
	metadata []byte
}

// Run executes one batch. Per-keyword failures are collected in the report; the returned error
// is set only for systemic failures (input, templates, index, archive, cancellation), in which
// case no archive is returned.
func (s *Service) Run(ctx context.Context, req Request, progress ProgressFunc) (run.Report, []byte, error) {
	start := time.Now()
	id := s.newID()
	log := s.logger.With(zap.String("run_id", id))
	em := &emitter{runID: id, fn: progress}
	report := run.Report{RunID: id}

	tracker := usage.NewTracker(s.cfg.BudgetTokens, s.cfg.BudgetAction, log)
	ctx = usage.ContextWithTracker(ctx, tracker)
	ctx = logger.ContextWithLogger(ctx, log)

	fail := func(err error) (run.Report, []byte, error) {
		report.Usage = tracker.Usage()
		em.state(run.StateFailed, err)
		metrics.PipelineRunsTotal.WithLabelValues(string(run.StateFailed)).Inc()
		metrics.PipelineRunDuration.Observe(time.Since(start).Seconds())
		log.Error("Run failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return report, nil, err
	}

	em.state(run.StateParsing, nil)

	lang, words, err := s.normalize(req)
	if err != nil {
		return fail(err)
	}
	renderer, err := s.renderers()
	if err != nil {
		return fail(fmt.Errorf("load templates: %w", err))
	}
	records, err := s.parser.Parse(req.Keywords, req.Format)
	if err != nil {
		return fail(fmt.Errorf("parse keywords: %w", err))
	}
	if len(records) == 0 {
		return fail(domain.ErrNoRecords)
	}
	report.Total = len(records)
	em.setTotal(len(records))

	var index retrieval.Index
	if len(req.PDFs) > 0 {
		em.state(run.StateIndexing, nil)
		index, err = s.buildIndex(ctx, req.PDFs, log)
		if err != nil {
			return fail(err)
		}
		defer func() {
			if err := index.Close(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Failed to release retrieval index", zap.Error(err))
			}
		}()
	}

	items := assignSlugs(records, s.cfg.OnSlugCollision)
	job := jobSpec{lang: lang, words: words, index: index, renderer: renderer}

	em.state(run.StateGenerating, nil)
	outcomes := s.generate(ctx, items, job, em)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	em.state(run.StateArchiving, nil)
	bundle := archive.NewBundle()
	for i, o := range outcomes {
		if o.html != nil {
			if err := bundle.Add(items[i].slug+HTMLSuffix, o.html); err != nil {
				return fail(err)
			}
		}
		if o.metadata != nil {
			if err := bundle.Add(items[i].slug+MetadataSuffix, o.metadata); err != nil {
				return fail(err)
			}
		}
		if o.result.OK() {
			report.Succeeded = append(report.Succeeded, o.result)
			metrics.PipelineItemsTotal.WithLabelValues(string(batch.StatusOK)).Inc()
		} else {
			report.Failed = append(report.Failed, o.result)
			metrics.PipelineItemsTotal.WithLabelValues(string(batch.StatusError)).Inc()
		}
	}
	data, err := bundle.Zip()
	if err != nil {
		return fail(err)
	}
	report.Usage = tracker.Usage()

	if !report.Balanced() || bundle.Count(HTMLSuffix)+len(report.Failed) != report.Total {
		log.Error("Run accounting mismatch",
			zap.Int("total", report.Total),
			zap.Int("succeeded", len(report.Succeeded)),
			zap.Int("failed", len(report.Failed)),
			zap.Int("html_entries", bundle.Count(HTMLSuffix)),
		)
	}

	em.state(run.StateDone, nil)
	metrics.PipelineRunsTotal.WithLabelValues(string(run.StateDone)).Inc()
	metrics.PipelineRunDuration.Observe(time.Since(start).Seconds())
	log.Info("Run finished",
		zap.Int("total", report.Total),
		zap.Int("succeeded", len(report.Succeeded)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("archive_bytes", len(data)),
		zap.Int("tokens", report.Usage.Total()),
		zap.Duration("duration", time.Since(start)),
	)
	return report, data, nil
}

func (s *Service) normalize(req Request) (domain.Language, int, error) {
	lang := s.cfg.Language
	if req.Language != "" {
		lang = req.Language
	}
	lang, err := domain.ParseLanguage(string(lang))
	if err != nil {
		return "", 0, err
	}
	words := req.WordCount
	if words == 0 {
		words = s.cfg.WordCount
	}
	if err := domain.ValidateWordCount(words); err != nil {
		return "", 0, err
	}
	return lang, words, nil
}

func (s *Service) buildIndex(ctx context.Context, pdfs []retrieval.Source, log *zap.Logger) (retrieval.Index, error) {
	if s.retriever == nil {
		return nil, fmt.Errorf("documents uploaded but retrieval is not configured: %w", domain.ErrIndexBuild)
	}
	chunks, errs := s.retriever.Chunks(ctx, pdfs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, de := range retrieval.DocumentErrors(errs) {
		log.Warn("Document skipped", zap.String("file", de.File), zap.Error(de.Cause))
	}
	index, err := s.retriever.BuildIndex(ctx, chunks)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("build retrieval index: %w", err)
	}
	return index, nil
}

// assignSlugs derives archive names in input order so the outcome never depends on scheduling.
func assignSlugs(records []keyword.Record, policy CollisionPolicy) []item {
	items := make([]item, len(records))
	taken := make(map[string]bool, len(records))
	next := make(map[string]int)

	for i, r := range records {
		base := slug.OrFallback(r.Keyword())
		items[i] = item{record: r, slug: base}
		if !taken[base] {
			taken[base] = true
			continue
		}
		if policy == CollisionError {
			items[i].err = fmt.Errorf("%q maps to %q: %w", r.Keyword(), base, domain.ErrSlugCollision)
			continue
		}
		n := max(next[base], 1)
		candidate := base
		for taken[candidate] {
			n++
			candidate = fmt.Sprintf("%s-%d", base, n)
		}
		next[base] = n
		taken[candidate] = true
		items[i].slug = candidate
	}
	return items
}

type jobSpec struct {
	lang     domain.Language
	words    int
	index    retrieval.Index
	renderer PageRenderer
}

// generate processes items on a bounded worker pool. Outcomes keep input positions.
func (s *Service) generate(ctx context.Context, items []item, job jobSpec, em *emitter) []outcome {
	outcomes := make([]outcome, len(items))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range min(s.cfg.Concurrency, len(items)) {
		wg.Go(func() {
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				o := s.process(ctx, items[i], job)
				outcomes[i] = o
				em.item(items[i].record.Keyword(), o.result.Err())
			}
		})
	}

feed:
	for i := range items {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return outcomes
}

func (s *Service) process(ctx context.Context, it item, job jobSpec) outcome {
	kw := it.record.Keyword()
	ctx, log := logger.With(ctx, zap.String("keyword", kw), zap.String("slug", it.slug))

	failed := func(err error) outcome {
		log.Warn("Keyword failed", zap.Error(err))
		return outcome{result: batch.NewError(kw, it.slug, err)}
	}

	if it.err != nil {
		return failed(it.err)
	}

	var grounding []chunk.Chunk
	if job.index != nil {
		hits, err := job.index.Query(ctx, kw, s.cfg.TopK)
		if err != nil {
			return failed(domain.NewGenerationError(kw, fmt.Errorf("retrieve context: %w", err)))
		}
		grounding = hits
	}

	art, err := s.generator.Generate(ctx, generation.Request{
		Keyword:      kw,
		WordCount:    job.words,
		Language:     job.lang,
		SearchIntent: it.record.SearchIntent(),
		Context:      grounding,
	})
	if err != nil {
		var genErr *domain.GenerationError
		if !errors.As(err, &genErr) {
			err = domain.NewGenerationError(kw, err)
		}
		return failed(err)
	}

	out, err := job.renderer.Render(render.Page{
		Keyword:      kw,
		SearchIntent: it.record.SearchIntent(),
		Slug:         it.slug,
		Article:      art,
	})
	if err != nil {
		return failed(err)
	}
	if out.HTMLErr != nil {
		o := failed(out.HTMLErr)
		o.metadata = out.Metadata
		return o
	}

	log.Debug("Keyword done", zap.Int("html_bytes", len(out.HTML)))
	return outcome{result: batch.NewOK(kw, it.slug), html: out.HTML, metadata: out.Metadata}
}

// emitter serializes progress events for one run.
type emitter struct {
	mu        sync.Mutex
	runID     string
	total     int
	completed int
	fn        ProgressFunc
}

func (e *emitter) setTotal(n int) {
	e.mu.Lock()
	e.total = n
	e.mu.Unlock()
}

func (e *emitter) state(st run.State, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.send(run.Progress{State: st, Err: err})
}

func (e *emitter) item(kw string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed++
	e.send(run.Progress{State: run.StateGenerating, Keyword: kw, Err: err})
}

func (e *emitter) send(p run.Progress) {
	if e.fn == nil {
		return
	}
	p.RunID = e.runID
	p.Completed = e.completed
	p.Total = e.total
	e.fn(p)
}
