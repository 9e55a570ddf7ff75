package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/pagegen/internal/config"
	"github.com/kailas-cloud/pagegen/internal/db"
	dbredis "github.com/kailas-cloud/pagegen/internal/db/redis"
	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/metrics"
	"github.com/kailas-cloud/pagegen/internal/repository/embcache"
	"github.com/kailas-cloud/pagegen/internal/repository/vectorindex/memory"
	redisindex "github.com/kailas-cloud/pagegen/internal/repository/vectorindex/redis"
	"github.com/kailas-cloud/pagegen/internal/transport/anthropic"
	"github.com/kailas-cloud/pagegen/internal/transport/gemini"
	"github.com/kailas-cloud/pagegen/internal/transport/offline"
	"github.com/kailas-cloud/pagegen/internal/transport/openai"
	"github.com/kailas-cloud/pagegen/internal/transport/pdfcpu"
	"github.com/kailas-cloud/pagegen/internal/usecase/completion"
	"github.com/kailas-cloud/pagegen/internal/usecase/embedding"
	"github.com/kailas-cloud/pagegen/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/pagegen/internal/usecase/health"
	"github.com/kailas-cloud/pagegen/internal/usecase/input"
	"github.com/kailas-cloud/pagegen/internal/usecase/pipeline"
	"github.com/kailas-cloud/pagegen/internal/usecase/render"
	"github.com/kailas-cloud/pagegen/internal/usecase/retrieval"
	"github.com/kailas-cloud/pagegen/internal/usecase/usage"
)

// app is the composition root shared by serve and generate.
type app struct {
	pipeline *pipeline.Service
	health   *healthuc.Service
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	// Explicit registration, no init().
	metrics.RegisterCompletionMetrics()
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	a := &app{}
	limiter := rate.NewLimiter(rate.Every(time.Duration(cfg.LLM.RateLimitMS)*time.Millisecond), 1)

	rawCompleter, err := buildCompleter(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	completer := completion.NewInstrumentedCompleter(rawCompleter, cfg.LLM.Provider, logger).
		WithLimiter(limiter)

	gen, err := buildGenerator(completer, cfg.Generation, logger)
	if err != nil {
		return nil, err
	}

	pipeCfg, err := pipelineConfig(cfg)
	if err != nil {
		return nil, err
	}
	svc := pipeline.New(input.New(logger), gen, rendererFactory(cfg.Render, logger), pipeCfg, logger)

	health := healthuc.New(logger).WithCompletion(newProviderHealthChecker("completion", rawCompleter))

	var store *dbredis.Store
	if cfg.NeedsDatabase() {
		store, err = dbredis.NewStore(dbredis.Config{
			Addrs:    cfg.Database.Addrs,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			DB:       cfg.Database.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create database store: %w", err)
		}
		a.closers = append(a.closers, store.Close)

		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			a.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))
		health = health.WithDatabase(store)
	}

	if cfg.Embedding.Enabled() {
		embedder := buildEmbedder(cfg.Embedding, store, limiter, logger)
		health = health.WithEmbedding(embedder)

		var opener retrieval.StoreOpener = memory.NewOpener()
		if cfg.Retrieval.Backend == config.BackendRedis {
			algo, err := db.ParseVectorAlgorithm(cfg.Retrieval.Algorithm)
			if err != nil {
				a.Close()
				return nil, err
			}
			opener = redisindex.NewOpener(store, logger).
				WithKeyPrefix(cfg.Retrieval.KeyPrefix).
				WithAlgorithm(algo, redisindex.HNSWConfig{
					M:           cfg.Retrieval.HNSWM,
					EFConstruct: cfg.Retrieval.HNSWEFConstruct,
				})
		}

		chunker := retrieval.NewChunker(
			retrieval.WithChunkSize(cfg.Retrieval.ChunkSize),
			retrieval.WithOverlap(cfg.Retrieval.ChunkOverlap),
		)
		retriever := retrieval.New(pdfcpu.NewReader(logger), embedder, opener, logger).
			WithChunker(chunker).
			WithPrefixes(cfg.Embedding.DocumentInstruction, cfg.Embedding.QueryInstruction)
		svc = svc.WithRetriever(retriever)

		logger.Info("Retrieval enabled",
			zap.String("backend", cfg.Retrieval.Backend),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("chunk_size", chunker.Size()),
			zap.Int("chunk_overlap", chunker.Overlap()),
		)
	}

	a.pipeline = svc
	a.health = health
	return a, nil
}

func buildCompleter(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (domain.Completer, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewCompleter(&openai.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Provider: cfg.Provider,
			Logger:   logger,
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewCompleter(&anthropic.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			MaxTokens: cfg.MaxTokens,
			Logger:    logger,
		}), nil
	case config.ProviderGemini:
		c, err := gemini.NewCompleter(ctx, &gemini.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini completer: %w", err)
		}
		return c, nil
	case config.ProviderOffline:
		return offline.NewCompleter(cfg.OfflineSections), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func buildGenerator(c domain.Completer, cfg config.GenerationConfig, logger *zap.Logger) (*generation.Service, error) {
	genCfg := generation.Config{
		Model:            cfg.Model,
		Brand:            cfg.Brand,
		BrandDescription: cfg.BrandDescription,
	}
	if cfg.Temperature != nil {
		genCfg.Temperature = *cfg.Temperature
	}
	if cfg.PromptTemplate != "" {
		data, err := os.ReadFile(cfg.PromptTemplate)
		if err != nil {
			return nil, fmt.Errorf("read prompt template: %w", err)
		}
		genCfg.PromptTemplate = string(data)
	}
	gen, err := generation.New(c, genCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}
	return gen, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached (opt-in) -> Instrumented.
func buildEmbedder(
	cfg config.EmbeddingConfig,
	store *dbredis.Store,
	limiter *rate.Limiter,
	logger *zap.Logger,
) *embedding.InstrumentedEmbedder {
	base := openai.NewEmbedder(&openai.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	var inner domain.Embedder = base
	if cfg.Cache.Enabled && store != nil {
		inner = embcache.New(base, store, cfg.Model, metrics.EmbeddingCacheTotal, logger).
			WithTTL(time.Duration(cfg.Cache.TTLSec) * time.Second)
	}

	return embedding.NewInstrumentedEmbedder(inner, cfg.Provider, cfg.Model, logger).
		WithLimiter(limiter).
		WithMaxBatchSize(cfg.MaxBatchSize)
}

func pipelineConfig(cfg config.Config) (pipeline.Config, error) {
	policy, err := pipeline.ParseCollisionPolicy(cfg.Output.OnSlugCollision)
	if err != nil {
		return pipeline.Config{}, err
	}
	action, err := usage.ParseAction(cfg.Generation.Budget.Action)
	if err != nil {
		return pipeline.Config{}, err
	}
	lang, err := domain.ParseLanguage(cfg.Generation.Language)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Concurrency:     cfg.Generation.Concurrency,
		TopK:            cfg.Retrieval.TopK,
		OnSlugCollision: policy,
		BudgetTokens:    cfg.Generation.Budget.MaxTokens,
		BudgetAction:    action,
		Language:        lang,
		WordCount:       cfg.Generation.WordCount,
	}, nil
}

// rendererFactory builds a fresh Renderer per run so template edits are picked up and a
// missing template fails that run.
func rendererFactory(cfg config.RenderConfig, logger *zap.Logger) pipeline.RendererFactory {
	rc := render.Config{
		Mode:                 render.Mode(cfg.Mode),
		HTMLTemplate:         cfg.HTMLTemplate,
		Skeleton:             cfg.Skeleton,
		ContentMarker:        cfg.ContentMarker,
		BaseURL:              cfg.BaseURL,
		Locales:              cfg.Locales,
		TitleSuffix:          cfg.TitleSuffix,
		MetadataRequiresHTML: cfg.MetadataRequiresHTML,
	}
	return func() (pipeline.PageRenderer, error) {
		r, err := render.New(rc, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// providerHealthChecker adapts a provider to health.Checker. Providers without a
// health endpoint always pass.
type providerHealthChecker struct {
	name     string
	provider any
}

func newProviderHealthChecker(name string, provider any) *providerHealthChecker {
	return &providerHealthChecker{name: name, provider: provider}
}

func (h *providerHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.provider.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s health check: %w", h.name, err)
		}
	}
	return nil
}
