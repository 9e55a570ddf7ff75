package run

import "github.com/kailas-cloud/pagegen/internal/domain/batch"

// State is a pipeline run lifecycle stage.
type State string

// Run states.
const (
	StateIdle       State = "idle"
	StateParsing    State = "parsing"
	StateIndexing   State = "indexing"
	StateGenerating State = "generating"
	StateArchiving  State = "archiving"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Progress is one event emitted to the run's observer.
// Keyword and Err are set only for per-item events.
type Progress struct {
	RunID     string
	State     State
	Completed int
	Total     int
	Keyword   string
	Err       error
}

// Fraction returns Completed/Total, 0 when Total is unknown.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

// Usage aggregates token consumption across a run.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	EmbeddingTokens  int
}

// Total returns the sum of every token counter.
func (u Usage) Total() int { return u.PromptTokens + u.CompletionTokens + u.EmbeddingTokens }

// Report summarises a finished run.
type Report struct {
	RunID     string
	Total     int
	Succeeded []batch.Result
	Failed    []batch.Result
	Usage     Usage
}

// Results returns successes followed by failures.
func (r Report) Results() []batch.Result {
	out := make([]batch.Result, 0, len(r.Succeeded)+len(r.Failed))
	out = append(out, r.Succeeded...)
	return append(out, r.Failed...)
}

// Balanced reports whether every record is accounted for exactly once.
func (r Report) Balanced() bool { return len(r.Succeeded)+len(r.Failed) == r.Total }
