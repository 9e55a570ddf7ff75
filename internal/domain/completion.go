package domain

import "context"

// CompletionRequest is the provider-agnostic text completion request.
type CompletionRequest struct {
	Model       string
	Temperature float32
	Prompt      string
}

// CompletionResult carries the completion text and token usage.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens returns prompt plus completion tokens.
func (r CompletionResult) TotalTokens() int { return r.PromptTokens + r.CompletionTokens }

// Completer submits a prompt to a text-completion service. Text in, text out.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}
