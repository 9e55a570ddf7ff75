package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/metrics"
)

// Completer is a text completion provider using the OpenAI-compatible chat completions API.
type Completer struct {
	client   *openai.Client
	provider string
	user     string
	logger   *zap.Logger
}

// NewCompleter creates an OpenAI-compatible completion provider. Model and Dimensions in cfg are
// ignored; the model travels with each request.
func NewCompleter(cfg *Config) *Completer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{
		client:   openai.NewClientWithConfig(clientCfg),
		provider: cfg.Provider,
		user:     cfg.User,
		logger:   logger,
	}
}

// Complete implements domain.Completer with a single user message.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		User:        c.user,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})

	duration := time.Since(start)

	if err != nil {
		mapped, errType := classifyCompletionError(err)
		metrics.ObserveCompletion(c.provider, req.Model, duration.Seconds(), 0, 0, errType)
		return domain.CompletionResult{}, mapped
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.ObserveCompletion(c.provider, req.Model, duration.Seconds(), 0, 0, "empty_response")
		return domain.CompletionResult{}, fmt.Errorf("empty completion response: %w", domain.ErrProviderError)
	}

	metrics.ObserveCompletion(c.provider, req.Model, duration.Seconds(),
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens, "")

	c.logger.Debug("Completion finished",
		zap.String("provider", c.provider),
		zap.String("model", req.Model),
		zap.Duration("duration", duration),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)

	return domain.CompletionResult{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (c *Completer) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// classifyCompletionError maps go-openai errors onto domain sentinels and a metrics label.
func classifyCompletionError(err error) (error, string) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
			return fmt.Errorf("completion API error %d: %s: %w",
				apiErr.HTTPStatusCode, apiErr.Message, domain.ErrQuotaExceeded), "quota_exceeded"
		}
	}

	switch status := statusOf(err); {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("completion API error %d: %w", status, domain.ErrRateLimited), "rate_limited"
	case status != 0:
		detail := ""
		if apiErr != nil {
			detail = apiErr.Message
		}
		var reqErr *openai.RequestError
		if detail == "" && errors.As(err, &reqErr) {
			detail = extractDetail(reqErr.Body)
		}
		return fmt.Errorf("completion API error %d: %s: %w", status, detail, domain.ErrProviderError), "api_error"
	default:
		return fmt.Errorf("completion request failed: %w: %w", domain.ErrProviderError, err), "transport_error"
	}
}
