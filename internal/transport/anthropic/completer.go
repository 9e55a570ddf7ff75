package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/metrics"
)

// DefaultMaxTokens caps the response length when no limit is configured.
const DefaultMaxTokens = 8192

// Config holds the Anthropic provider settings.
type Config struct {
	APIKey    string
	BaseURL   string
	MaxTokens int
	System    string
	Logger    *zap.Logger
}

// Completer is a text completion provider using the Anthropic Messages API.
type Completer struct {
	client    anthropic.Client
	maxTokens int64
	system    string
	logger    *zap.Logger
}

// NewCompleter creates an Anthropic completion provider. SDK retries are disabled; the pipeline
// records a failed keyword instead of retrying.
func NewCompleter(cfg *Config) *Completer {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Completer{
		client:    anthropic.NewClient(opts...),
		maxTokens: int64(maxTokens),
		system:    cfg.System,
		logger:    logger,
	}
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}
	if c.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.system}}
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	duration := time.Since(start)

	if err != nil {
		mapped, errType := classifyError(err)
		metrics.ObserveCompletion("anthropic", req.Model, duration.Seconds(), 0, 0, errType)
		return domain.CompletionResult{}, mapped
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		metrics.ObserveCompletion("anthropic", req.Model, duration.Seconds(), 0, 0, "empty_response")
		return domain.CompletionResult{}, fmt.Errorf("no text in Claude response: %w", domain.ErrProviderError)
	}

	promptTokens := int(resp.Usage.InputTokens)
	completionTokens := int(resp.Usage.OutputTokens)
	metrics.ObserveCompletion("anthropic", req.Model, duration.Seconds(), promptTokens, completionTokens, "")

	c.logger.Debug("Completion finished",
		zap.String("provider", "anthropic"),
		zap.String("model", req.Model),
		zap.Duration("duration", duration),
		zap.String("stop_reason", string(resp.StopReason)),
	)

	return domain.CompletionResult{
		Text:             text.String(),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}, nil
}

func classifyError(err error) (error, string) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("claude API error %d: %w", apiErr.StatusCode, domain.ErrRateLimited), "rate_limited"
		case http.StatusPaymentRequired, http.StatusForbidden:
			return fmt.Errorf("claude API error %d: %w", apiErr.StatusCode, domain.ErrQuotaExceeded), "quota_exceeded"
		default:
			return fmt.Errorf("claude API error %d: %w", apiErr.StatusCode, domain.ErrProviderError), "api_error"
		}
	}
	return fmt.Errorf("claude request failed: %w: %w", domain.ErrProviderError, err), "transport_error"
}
