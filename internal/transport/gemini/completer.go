package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/metrics"
)

// Config holds the Gemini provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Logger  *zap.Logger
}

// Completer is a text completion provider using the Gemini API.
type Completer struct {
	client *genai.Client
	logger *zap.Logger
}

// NewCompleter creates a Gemini completion provider.
func NewCompleter(ctx context.Context, cfg *Config) (*Completer, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Completer{client: client, logger: logger}, nil
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, config)
	duration := time.Since(start)

	if err != nil {
		mapped, errType := classifyError(err)
		metrics.ObserveCompletion("gemini", req.Model, duration.Seconds(), 0, 0, errType)
		return domain.CompletionResult{}, mapped
	}

	result, ok := resultFrom(resp)
	if !ok {
		metrics.ObserveCompletion("gemini", req.Model, duration.Seconds(), 0, 0, "empty_response")
		return domain.CompletionResult{}, fmt.Errorf("no text in gemini response: %w", domain.ErrProviderError)
	}
	metrics.ObserveCompletion("gemini", req.Model, duration.Seconds(),
		result.PromptTokens, result.CompletionTokens, "")

	c.logger.Debug("Completion finished",
		zap.String("provider", "gemini"),
		zap.String("model", req.Model),
		zap.Duration("duration", duration),
	)
	return result, nil
}

// resultFrom takes the text of the first candidate that has any, plus usage metadata.
func resultFrom(resp *genai.GenerateContentResponse) (domain.CompletionResult, bool) {
	if resp == nil {
		return domain.CompletionResult{}, false
	}
	var text strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" {
				text.WriteString(part.Text)
			}
		}
		if text.Len() > 0 {
			break
		}
	}
	if text.Len() == 0 {
		return domain.CompletionResult{}, false
	}

	res := domain.CompletionResult{Text: text.String()}
	if u := resp.UsageMetadata; u != nil {
		res.PromptTokens = int(u.PromptTokenCount)
		res.CompletionTokens = int(u.CandidatesTokenCount)
	}
	return res, true
}

func classifyError(err error) (error, string) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("gemini API error %d: %s: %w", apiErr.Code, apiErr.Message, domain.ErrRateLimited), "rate_limited"
		default:
			return fmt.Errorf("gemini API error %d: %s: %w", apiErr.Code, apiErr.Message, domain.ErrProviderError), "api_error"
		}
	}
	return fmt.Errorf("gemini request failed: %w: %w", domain.ErrProviderError, err), "transport_error"
}
