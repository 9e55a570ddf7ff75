package completion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/metrics"
	"github.com/kailas-cloud/pagegen/internal/usecase/usage"
)

// InstrumentedCompleter wraps Completer with rate limiting, run budget enforcement and logging.
// Transport metrics are recorded by the provider adapters.
type InstrumentedCompleter struct {
	inner    domain.Completer
	provider string
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewInstrumentedCompleter wraps a completer.
func NewInstrumentedCompleter(inner domain.Completer, provider string, logger *zap.Logger) *InstrumentedCompleter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedCompleter{inner: inner, provider: provider, logger: logger}
}

// WithLimiter gates every request on l. The limiter may be shared with the embedder.
func (c *InstrumentedCompleter) WithLimiter(l *rate.Limiter) *InstrumentedCompleter {
	c.limiter = l
	return c
}

// Complete checks the run budget, waits for the limiter, delegates and records usage.
func (c *InstrumentedCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	tracker := usage.FromContext(ctx)
	if tracker != nil {
		if err := tracker.Check(ctx); err != nil {
			return domain.CompletionResult{}, fmt.Errorf("budget check: %w", err)
		}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.CompletionResult{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	res, err := c.inner.Complete(ctx, req)
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("Completion request failed",
			zap.String("provider", c.provider),
			zap.String("model", req.Model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.CompletionResult{}, fmt.Errorf("complete: %w", err)
	}

	if tracker != nil {
		tracker.RecordCompletion(res.PromptTokens, res.CompletionTokens)
		metrics.BudgetTokensRemaining.WithLabelValues("completion").Set(float64(tracker.Remaining()))
	}

	c.logger.Debug("Completion request completed",
		zap.String("provider", c.provider),
		zap.String("model", req.Model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", res.PromptTokens),
		zap.Int("completion_tokens", res.CompletionTokens),
	)
	return res, nil
}
