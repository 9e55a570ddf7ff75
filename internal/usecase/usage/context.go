package usage

import "context"

type ctxKey struct{}

// ContextWithTracker stores a run's tracker in the context.
func ContextWithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext extracts the run's tracker. Returns nil outside a run.
func FromContext(ctx context.Context) *Tracker {
	if t, ok := ctx.Value(ctxKey{}).(*Tracker); ok {
		return t
	}
	return nil
}
