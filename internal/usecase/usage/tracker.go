package usage

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/domain/run"
)

// Action defines behavior when the token budget is exceeded.
type Action string

const (
	// ActionWarn logs a warning but allows the request.
	ActionWarn Action = "warn"
	// ActionReject blocks the request with domain.ErrQuotaExceeded.
	ActionReject Action = "reject"
)

// ParseAction resolves an action name. Empty means warn.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case "", ActionWarn:
		return ActionWarn, nil
	case ActionReject:
		return ActionReject, nil
	default:
		return "", fmt.Errorf("unknown budget action %q", s)
	}
}

// Tracker is a run-scoped token budget. It counts completion and embedding tokens for one
// pipeline run and is discarded with it. A zero limit means unlimited.
type Tracker struct {
	mu     sync.Mutex
	limit  int64
	action Action
	used   run.Usage
	warned bool
	logger *zap.Logger
}

// NewTracker creates a Tracker.
func NewTracker(limit int64, action Action, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if action == "" {
		action = ActionWarn
	}
	return &Tracker{limit: limit, action: action, logger: logger}
}

// Check verifies the budget allows a new request. Warn mode logs once per run.
func (t *Tracker) Check(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.limit <= 0 || int64(t.used.Total()) < t.limit {
		return nil
	}
	if t.action == ActionReject {
		return fmt.Errorf("%d of %d tokens used: %w", t.used.Total(), t.limit, domain.ErrQuotaExceeded)
	}
	if !t.warned {
		t.warned = true
		t.logger.Warn("Token budget exceeded",
			zap.Int("used", t.used.Total()),
			zap.Int64("limit", t.limit),
		)
	}
	return nil
}

// RecordEmbedding registers embedding tokens.
func (t *Tracker) RecordEmbedding(tokens int) {
	t.mu.Lock()
	t.used.EmbeddingTokens += tokens
	t.mu.Unlock()
}

// RecordCompletion registers completion prompt and output tokens.
func (t *Tracker) RecordCompletion(prompt, completion int) {
	t.mu.Lock()
	t.used.PromptTokens += prompt
	t.used.CompletionTokens += completion
	t.mu.Unlock()
}

// Remaining returns tokens left (-1 if unlimited).
func (t *Tracker) Remaining() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.limit <= 0 {
		return -1
	}
	remaining := t.limit - int64(t.used.Total())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Limit returns the token cap (0 if unlimited).
func (t *Tracker) Limit() int64 { return t.limit }

// Usage returns a snapshot of the consumed tokens.
func (t *Tracker) Usage() run.Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}
